package models

import "time"

// User represents a row in the PostgreSQL users table.
type User struct {
	ID        string
	Username  string
	Email     string
	Password  string // bcrypt hash
	Avatar    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PublicUser is the only user shape that leaves the service.
type PublicUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Public projects u for serialization.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// UserUpdate carries a partial profile change; nil fields are left alone.
// Password holds the bcrypt hash by the time it reaches the store.
type UserUpdate struct {
	Username *string
	Email    *string
	Password *string
	Avatar   *string
}

// Empty reports whether the update changes nothing.
func (u UserUpdate) Empty() bool {
	return u.Username == nil && u.Email == nil && u.Password == nil && u.Avatar == nil
}

// RegisterRequest is the JSON body for POST /api/auth/signup.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest is the JSON body for POST /api/auth/signin.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// FederatedLoginRequest is the JSON body for POST /api/auth/federated. The
// identity provider has already verified the email.
type FederatedLoginRequest struct {
	Email       string `json:"email"       validate:"required,email,max=255"`
	DisplayName string `json:"displayName" validate:"required,max=100"`
	AvatarURL   string `json:"avatarUrl"   validate:"omitempty,url"`
}

// UpdateUserRequest is the JSON body for PUT /api/user/{id}.
type UpdateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=50"`
	Email    *string `json:"email"    validate:"omitempty,email,max=255"`
	Password *string `json:"password" validate:"omitempty,min=6,max=72"`
	Avatar   *string `json:"avatar"   validate:"omitempty,url"`
}
