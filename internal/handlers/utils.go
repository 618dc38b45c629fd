package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tmunro/partyhub/internal/auth"
)

// extractCookieToken extracts a named cookie value from the "Cookie"
// header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// authenticatedUser resolves the trusted username for a request from its
// auth_token cookie. Every action dispatched on behalf of the request uses
// this identity; nothing is taken from the request body.
func authenticatedUser(r *http.Request) (string, error) {
	cookie := r.Header.Get("Cookie")
	if !strings.Contains(cookie, "auth_token=") {
		return "", fmt.Errorf("missing auth_token cookie")
	}
	username, err := auth.AuthenticateJWT(extractCookieToken(cookie, "auth_token"))
	if err != nil {
		return "", fmt.Errorf("authenticate session: %w", err)
	}
	return username, nil
}
