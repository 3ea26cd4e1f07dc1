package users

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserType is the user's access level
type UserType = string

const (
	// TypeNormal may only read/modify/delete its own record
	TypeNormal UserType = "normal"
	// TypeAdmin may act on any record
	TypeAdmin UserType = "admin"
)

// User is the user model
type User struct {
	bun.BaseModel     `bun:"table:users,alias:usr"`
	ID                uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email             string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Name              string     `bun:"name,notnull" json:"name,omitempty"`
	ZipCode           string     `bun:"zip_code,notnull" json:"zipCode,omitempty"`
	City              string     `bun:"city,notnull" json:"city,omitempty"`
	Phone             string     `bun:"phone,notnull" json:"phone,omitempty"`
	PasswordHash      string     `bun:"password_hash,notnull" json:"-"`
	Type              UserType   `bun:"user_type,notnull" json:"type,omitempty"`
	Verified          bool       `bun:"is_verified" json:"verified"`
	VerificationToken *string    `bun:"verification_token,nullzero" json:"-"`
	RefreshToken      *string    `bun:"refresh_token,nullzero" json:"-"`
	CreatedAt         *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt         *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsElevated reports whether the user's type grants access to records other
// than its own.
func (u *User) IsElevated() bool {
	return u.Type == TypeAdmin
}

// EnsureType defaults the type tag to normal
func (u *User) EnsureType() *User {
	if u.Type == "" {
		u.Type = TypeNormal
	}
	return u
}

// IsValid checks if the type is one of the predefined type tags. The set is
// open on the wire, but registration only accepts these two.
func IsValidUserType(t UserType) bool {
	switch t {
	case TypeNormal, TypeAdmin:
		return true
	default:
		return false
	}
}
