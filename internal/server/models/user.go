// Package models defines the server-side user record and its public view.
package models

import "time"

// User is the persisted account record. PasswordHash and RefreshToken are
// secret and never leave the service; use Public for responses.
type User struct {
	ID           string
	UserName     string
	Email        string
	FullName     string
	Avatar       string
	CoverImage   string
	PasswordHash string
	// RefreshToken is the only live refresh token of the user; empty means
	// logged out.
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the JSON view of a User.
type PublicUser struct {
	ID         string    `json:"_id"`
	UserName   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"coverImage"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:         u.ID,
		UserName:   u.UserName,
		Email:      u.Email,
		FullName:   u.FullName,
		Avatar:     u.Avatar,
		CoverImage: u.CoverImage,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// WithoutSecrets returns a copy of u with the password hash and refresh token
// cleared.
func (u *User) WithoutSecrets() *User {
	c := *u
	c.PasswordHash = ""
	c.RefreshToken = ""
	return &c
}
