package users

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind distinguishes the token families the service issues.
type TokenKind = string

const (
	// TokenKindAccess is the short-lived bearer credential
	TokenKindAccess TokenKind = "access"
	// TokenKindRefresh is the longer-lived, server-tracked credential
	TokenKindRefresh TokenKind = "refresh"
	// TokenKindVerification proves control of an email address
	TokenKindVerification TokenKind = "verification"
)

// AuthClaims is the decoded identity a guard hands to downstream handlers
type AuthClaims interface {
	Subject() string
	UserID() string
	UserEmail() string
	UserType() string
	Kind() TokenKind
	IsElevated() bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims
type JWTClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid,omitempty"`
	Email    string `json:"email,omitempty"`
	UserRole string `json:"type,omitempty"`
	TokenUse string `json:"kind,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// UserEmail returns the email claim
func (c *JWTClaims) UserEmail() string {
	return c.Email
}

// UserType returns the user's type tag
func (c *JWTClaims) UserType() string {
	return c.UserRole
}

// Kind returns the token family
func (c *JWTClaims) Kind() TokenKind {
	return c.TokenUse
}

// IsElevated reports whether the claims carry the elevated type
func (c *JWTClaims) IsElevated() bool {
	return c.UserRole == TypeAdmin
}

// Expires returns the expiration time, zero when absent
func (c *JWTClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IssuedAt returns the issue time, zero when absent
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.IssuedAt.Time
}
