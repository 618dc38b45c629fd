package models

// User is a row in the credential store. The username doubles as the user's
// identity everywhere else in the system; lobbies reference users by it.
type User struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"` // argon2id encoded hash, never plaintext at rest
}
