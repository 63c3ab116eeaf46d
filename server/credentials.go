package server

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// CredentialStore validates a username and password.
//
// Implementations are queried concurrently by every session and must be safe
// for concurrent use. The server treats the store as read-only.
type CredentialStore interface {
	// Authenticate reports whether user exists and pass matches its stored
	// password.
	Authenticate(user, pass string) bool
}

// StaticCredentials is a fixed username to password mapping.
//
// A stored password that looks like a bcrypt hash ($2a$, $2b$ or $2y$ prefix)
// is compared with bcrypt; any other value is compared as plain text.
//
// The map must not be modified once handed to a Server.
type StaticCredentials map[string]string

// DefaultCredentials returns the single built-in account root/root.
func DefaultCredentials() StaticCredentials {
	return StaticCredentials{"root": "root"}
}

// Authenticate implements CredentialStore.
func (c StaticCredentials) Authenticate(user, pass string) bool {
	stored, ok := c[user]
	if !ok || stored == "" {
		return false
	}

	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(pass)) == nil
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(pass)) == 1
}

// HashPassword returns a bcrypt hash of password suitable for storing in
// StaticCredentials.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") ||
		strings.HasPrefix(s, "$2b$") ||
		strings.HasPrefix(s, "$2y$")
}
