// Package users implements the credential store: user records with their
// password hash and current refresh token.
package users

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/gophaccount/internal/server/models"
)

// Fields is a partial update of a user record. Nil fields are left as is.
type Fields struct {
	FullName     *string
	Email        *string
	Avatar       *string
	CoverImage   *string
	PasswordHash *string
}

func (f Fields) empty() bool {
	return f.FullName == nil && f.Email == nil && f.Avatar == nil &&
		f.CoverImage == nil && f.PasswordHash == nil
}

// Repository is the credential store contract. Lookups return
// common.ErrorNotFound when no record matches; writes that violate username
// or email uniqueness return common.ErrorAlreadyExists.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// FindByIdentifier looks identifier up by email when it contains "@" and
	// by username otherwise.
	FindByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	// FindByUsernameOrEmail returns any user holding username or email in
	// either column.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)
	UpdateFields(ctx context.Context, id string, fields Fields) (*models.User, error)
	// SetRefreshToken overwrites the stored refresh token; an empty token
	// clears it.
	SetRefreshToken(ctx context.Context, id, token string) error
}

// identifierColumn picks the column a login identifier is matched against.
// Usernames never contain "@", so the two lookup spaces do not overlap.
func identifierColumn(identifier string) string {
	if strings.Contains(identifier, "@") {
		return "email"
	}
	return "username"
}
