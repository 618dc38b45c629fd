// internal/store/postgres.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tmunro/partyhub/internal/models"
)

// PostgresStore keeps credential records as rows and each lobby as a jsonb
// document keyed by id. Lobby state is written whole on every dispatch, so
// a document column matches the load-all/save-all contract better than a
// normalized schema would.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pgx pool from the POSTGRES_USER,
// POSTGRES_PASSWORD, PG_HOST, PG_PORT and PG_DATABASE env vars and
// ensures the schema exists.
func NewPostgresStore(ctx context.Context) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		os.Getenv("PG_HOST"),
		os.Getenv("PG_PORT"),
		os.Getenv("PG_DATABASE"),
	)

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	ps := &PostgresStore{pool: pool}
	if err := ps.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return ps, nil
}

func (ps *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := ps.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS lobbies (
			id    UUID PRIMARY KEY,
			state JSONB NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// LoadAll reads every credential and lobby record.
func (ps *PostgresStore) LoadAll(ctx context.Context) (*State, error) {
	state := NewState()

	rows, err := ps.pool.Query(ctx, `SELECT username, password FROM users`)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.Username, &u.Password); err != nil {
			return nil, err
		}
		state.Users[u.Username] = &u
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lrows, err := ps.pool.Query(ctx, `SELECT id, state FROM lobbies`)
	if err != nil {
		return nil, fmt.Errorf("load lobbies: %w", err)
	}
	defer lrows.Close()
	for lrows.Next() {
		var id uuid.UUID
		var doc []byte
		if err := lrows.Scan(&id, &doc); err != nil {
			return nil, err
		}
		var l models.Lobby
		if err := json.Unmarshal(doc, &l); err != nil {
			return nil, fmt.Errorf("decode lobby %s: %w", id, err)
		}
		state.Lobbies[id] = &l
	}
	if err := lrows.Err(); err != nil {
		return nil, err
	}
	return state, nil
}

// SaveAll upserts every record in state within one transaction.
func (ps *PostgresStore) SaveAll(ctx context.Context, state *State) error {
	return pgx.BeginTxFunc(ctx, ps.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, u := range state.Users {
			if _, err := tx.Exec(ctx, `
				INSERT INTO users (username, password) VALUES ($1, $2)
				ON CONFLICT (username) DO UPDATE SET password = EXCLUDED.password
			`, u.Username, u.Password); err != nil {
				return err
			}
		}
		for _, l := range state.Lobbies {
			doc, err := json.Marshal(l)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO lobbies (id, state) VALUES ($1, $2)
				ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state
			`, l.ID, doc); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveLobby upserts one lobby document.
func (ps *PostgresStore) SaveLobby(ctx context.Context, lobby models.Lobby) error {
	doc, err := json.Marshal(lobby)
	if err != nil {
		return fmt.Errorf("encode lobby %s: %w", lobby.ID, err)
	}
	_, err = ps.pool.Exec(ctx, `
		INSERT INTO lobbies (id, state) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state
	`, lobby.ID, doc)
	if err != nil {
		return fmt.Errorf("save lobby %s: %w", lobby.ID, err)
	}
	return nil
}

// CreateUser inserts a credential record, mapping a conflict to ErrUserExists.
func (ps *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	tag, err := ps.pool.Exec(ctx, `
		INSERT INTO users (username, password) VALUES ($1, $2)
		ON CONFLICT (username) DO NOTHING
	`, user.Username, user.Password)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserExists
	}
	return nil
}

// GetUser fetches a credential record by username.
func (ps *PostgresStore) GetUser(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := ps.pool.QueryRow(ctx,
		`SELECT username, password FROM users WHERE username = $1`, username,
	).Scan(&u.Username, &u.Password)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Close releases the pool.
func (ps *PostgresStore) Close() {
	ps.pool.Close()
}
