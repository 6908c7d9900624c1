package models

import "time"

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Claims returns the identity carried by the user's session token.
func (u *User) Claims() Claims {
	return Claims{ID: u.ID, Email: u.Email, Username: u.Username, Role: u.Role}
}

// Claims is the decoded identity of an authenticated caller.
type Claims struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func (c Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Session is an issued or verified bearer token.
type Session struct {
	Token     string    `json:"token"`
	ID        string    `json:"-"`
	Claims    Claims    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}
