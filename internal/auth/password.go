package auth

import (
	"errors"
	"fmt"

	"bengkel/internal/domain"
	"bengkel/internal/models"

	"golang.org/x/crypto/bcrypt"
)

var _ domain.PasswordHasher = (*BcryptHasher)(nil)

// ErrPasswordMismatch is returned by Compare when the password is wrong.
var ErrPasswordMismatch = errors.New("password mismatch")

type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash rejects passwords longer than models.MaxPasswordBytes with a
// *domain.ValidationError on the password field.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if len(password) > models.MaxPasswordBytes {
		return "", domain.NewValidationError("password is too long", "password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (h *BcryptHasher) Compare(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	if err != nil {
		return fmt.Errorf("failed to compare password: %w", err)
	}
	return nil
}
