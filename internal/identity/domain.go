package identity

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-consulting/meridian-auth/internal/catalog"
)

// Sentinel errors for the identity module.
var (
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	ErrTokenUnknown       = errors.New("identity: token unknown or expired")
	ErrAccountNotFound    = errors.New("identity: account not found")
)

// Account is a platform user account with its assigned role.
type Account struct {
	ID           uuid.UUID
	Email        string
	DisplayName  string
	Role         catalog.Role
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
