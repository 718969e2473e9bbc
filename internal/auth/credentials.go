package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"

	"github.com/koman-maciej/insurance/internal/models"
)

// CredentialVerifier decides whether password authenticates user.
// The grant flow resolves the user first and then asks the verifier.
type CredentialVerifier interface {
	Verify(user models.User, password string) bool
}

// SharedPasswordVerifier accepts one fixed password for every user.
// This is a known weak-credential policy inherited from the upstream
// deployment; use BcryptVerifier for per-user credentials.
type SharedPasswordVerifier struct {
	Password string
}

// Verify implements CredentialVerifier.
func (v SharedPasswordVerifier) Verify(_ models.User, password string) bool {
	if v.Password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(v.Password), []byte(password)) == 1
}

// BcryptVerifier checks passwords against per-user bcrypt hashes keyed by email.
type BcryptVerifier struct {
	Hashes map[string]string
}

// Verify implements CredentialVerifier.
func (v BcryptVerifier) Verify(user models.User, password string) bool {
	hash, ok := v.Hashes[user.Email]
	if !ok || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// HashPassword returns a bcrypt hash suitable for BcryptVerifier.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
