package users

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenService mints and verifies the three token families. Access and
// verification tokens share the primary signing key; refresh tokens use their
// own key so leaking one secret does not compromise the other family.
type TokenService interface {
	SignAccess(user *User) (string, error)
	SignRefresh(user *User) (string, error)
	SignVerification(email string) (string, error)
	Validate(tokenString string) (AuthClaims, error)
	ValidateRefresh(tokenString string) (AuthClaims, error)
	ValidateVerification(tokenString string) (AuthClaims, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey        []byte
	refreshSigningKey []byte
	accessExpiration  time.Duration
	refreshExpiration time.Duration
	verifyExpiration  time.Duration
	issuer            string
	audience          jwt.ClaimStrings
	logger            Logger
}

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg Config, logger Logger) TokenService {
	if logger == nil {
		logger = defLogger{}
	}

	refreshKey := []byte(cfg.GetRefreshSigningKey())
	if len(refreshKey) == 0 {
		refreshKey = []byte(cfg.GetSigningKey())
	}

	return &TokenServiceImpl{
		signingKey:        []byte(cfg.GetSigningKey()),
		refreshSigningKey: refreshKey,
		accessExpiration:  time.Duration(cfg.GetTokenExpiration()) * time.Minute,
		refreshExpiration: time.Duration(cfg.GetRefreshTokenExpiration()) * time.Hour,
		verifyExpiration:  time.Duration(cfg.GetVerificationTokenExpiration()) * time.Hour,
		issuer:            cfg.GetIssuer(),
		audience:          jwt.ClaimStrings(cfg.GetAudience()),
		logger:            logger,
	}
}

// SignAccess mints a short-lived token carrying {id, email, type}
func (ts *TokenServiceImpl) SignAccess(user *User) (string, error) {
	claims := ts.newClaims(user.ID.String(), TokenKindAccess, ts.accessExpiration)
	claims.Email = user.Email
	claims.UserRole = user.Type
	return ts.signClaims(claims, ts.signingKey)
}

// SignRefresh mints the longer-lived refresh token with the same claims
func (ts *TokenServiceImpl) SignRefresh(user *User) (string, error) {
	claims := ts.newClaims(user.ID.String(), TokenKindRefresh, ts.refreshExpiration)
	claims.Email = user.Email
	claims.UserRole = user.Type
	return ts.signClaims(claims, ts.refreshSigningKey)
}

// SignVerification mints the single-use email verification token. It only
// carries the email; the record lookup happens by stored value, not claims.
func (ts *TokenServiceImpl) SignVerification(email string) (string, error) {
	claims := ts.newClaims(email, TokenKindVerification, ts.verifyExpiration)
	claims.Email = email
	return ts.signClaims(claims, ts.signingKey)
}

// Validate parses and validates an access token, returning structured claims
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	return ts.validate(tokenString, ts.signingKey, TokenKindAccess)
}

// ValidateRefresh parses and validates a refresh token
func (ts *TokenServiceImpl) ValidateRefresh(tokenString string) (AuthClaims, error) {
	return ts.validate(tokenString, ts.refreshSigningKey, TokenKindRefresh)
}

// ValidateVerification parses and validates a verification token
func (ts *TokenServiceImpl) ValidateVerification(tokenString string) (AuthClaims, error) {
	return ts.validate(tokenString, ts.signingKey, TokenKindVerification)
}

func (ts *TokenServiceImpl) newClaims(subject string, kind TokenKind, ttl time.Duration) *JWTClaims {
	now := time.Now()

	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   subject,
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:      subject,
		TokenUse: kind,
	}

	ensureTokenID(&claims.RegisteredClaims)

	return claims
}

func (ts *TokenServiceImpl) signClaims(claims *JWTClaims, key []byte) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

func (ts *TokenServiceImpl) validate(tokenString string, key []byte, kind TokenKind) (AuthClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode).
			WithCode(ErrTokenMalformed.Code)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService validate could not decode or validate claims")
		return nil, ErrTokenMalformed
	}

	if claims.Kind() != kind {
		ts.logger.Error("TokenService validate token kind mismatch: want %s got %s", kind, claims.Kind())
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
