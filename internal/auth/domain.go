package auth

import (
	"time"

	"github.com/stockroom/stockroom/internal/shared"
)

// User represents an authenticated user account.
type User struct {
	ID           string
	Email        string
	Name         string
	Role         shared.Role
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the request-scoped view of the user placed in sessions.
func (u User) Identity() shared.Identity {
	return shared.Identity{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Role:   u.Role,
	}
}
