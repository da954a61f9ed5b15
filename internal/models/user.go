package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role represents user roles in the system
type Role string

const (
	RoleStaff        Role = "Staff"
	RoleAdmin        Role = "Admin"
	RoleReceptionist Role = "Receptionist"
)

// User represents a portal account
type User struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email             string             `bson:"email" json:"email"`
	PasswordHash      string             `bson:"password_hash" json:"-"`
	TemporaryPassword bool               `bson:"temporary_password,omitempty" json:"temporaryPassword,omitempty"`
	FirstName         string             `bson:"first_name" json:"firstName"`
	LastName          string             `bson:"last_name" json:"lastName"`
	Phone             string             `bson:"phone" json:"phone"`
	Role              Role               `bson:"role" json:"role"`
	LastLogin         *time.Time         `bson:"last_login,omitempty" json:"lastLogin,omitempty"`
	CreatedAt         time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updatedAt"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}

// ChangePasswordRequest carries the current credential for re-authentication
// together with the new password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// CreateUserRequest is the payload of the admin-only create-user-with-role call.
type CreateUserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Role      Role   `json:"role"`
}

// CreateUserResponse is returned once the account exists.
type CreateUserResponse struct {
	Success           bool   `json:"success"`
	UserID            string `json:"userId"`
	TemporaryPassword string `json:"temporaryPassword"`
}

// RoleResponse is the role document served to session resolvers.
type RoleResponse struct {
	UID  string `json:"uid"`
	Role Role   `json:"role"`
}

// Claims represents JWT claims
type Claims struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Role    Role   `json:"role"`
	TokenID string `json:"jti"`
	Exp     int64  `json:"exp"`
}

// CachedRoleEntry is the locally persisted role lookup for one uid.
type CachedRoleEntry struct {
	UID       string `json:"uid"`
	Role      Role   `json:"role"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleStaff, RoleAdmin, RoleReceptionist:
		return true
	default:
		return false
	}
}

// HasAnyRole reports whether role is one of allowed. An empty allowed list
// admits every valid role.
func HasAnyRole(role Role, allowed ...Role) bool {
	if len(allowed) == 0 {
		return IsValidRole(role)
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
