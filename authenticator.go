package users

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// LoginResult is what a successful password login hands back to the
// transport layer.
type LoginResult struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshResult carries the freshly minted access token.
type RefreshResult struct {
	AccessToken string `json:"accessToken"`
}

type Auther struct {
	repo   RepositoryManager
	tokens TokenService
	logger Logger
}

// NewAuthenticator returns a new Auther
func NewAuthenticator(repo RepositoryManager, tokens TokenService) *Auther {
	return &Auther{
		repo:   repo,
		tokens: tokens,
		logger: defLogger{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// TokenService returns the TokenService instance used by this Auther
func (s *Auther) TokenService() TokenService {
	return s.tokens
}

// Login checks the password for a verified account and mints the access and
// refresh token pair. Unknown emails and wrong passwords produce the same
// error so callers cannot probe which addresses are registered.
func (s *Auther) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			// burn a compare so unknown emails cost the same as wrong passwords
			_ = ComparePasswordAndHash(password, RandomPasswordHash())
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("Login user lookup failed: %s", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user")
	}

	if !user.Verified {
		s.logger.Warn("Login blocked, account pending verification: %s", email)
		return nil, ErrPendingVerification
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	accessToken, err := s.tokens.SignAccess(user)
	if err != nil {
		s.logger.Error("Login failed to sign access token: %s", err)
		return nil, err
	}

	refreshToken, err := s.tokens.SignRefresh(user)
	if err != nil {
		s.logger.Error("Login failed to sign refresh token: %s", err)
		return nil, err
	}

	if err := s.repo.Users().StoreRefreshToken(ctx, user.ID, refreshToken); err != nil {
		s.logger.Error("Login failed to persist refresh token: %s", err)
		return nil, err
	}

	return &LoginResult{
		ID:           user.ID.String(),
		Email:        user.Email,
		Name:         user.Name,
		Type:         user.Type,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Refresh validates a refresh token against both its signature and the copy
// stored on the account, then mints a new access token.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, ErrMissingToken
	}

	if _, err := s.tokens.ValidateRefresh(refreshToken); err != nil {
		return nil, err
	}

	user, err := s.repo.Users().GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrRefreshNotRecognized
		}
		s.logger.Error("Refresh user lookup failed: %s", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up refresh token")
	}

	accessToken, err := s.tokens.SignAccess(user)
	if err != nil {
		s.logger.Error("Refresh failed to sign access token: %s", err)
		return nil, err
	}

	return &RefreshResult{AccessToken: accessToken}, nil
}

// Logout clears the stored refresh token for whichever account holds the
// supplied value. Unknown and already cleared tokens are not errors, so the
// operation stays idempotent and leaks nothing about which tokens exist.
func (s *Auther) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	user, err := s.repo.Users().GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil
		}
		s.logger.Error("Logout user lookup failed: %s", err)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up refresh token")
	}

	if err := s.repo.Users().ClearRefreshToken(ctx, user.ID); err != nil {
		s.logger.Error("Logout failed to clear refresh token: %s", err)
		return err
	}

	return nil
}

// SessionFromToken validates an access token and returns its claims.
func (s *Auther) SessionFromToken(raw string) (AuthClaims, error) {
	claims, err := s.tokens.Validate(raw)
	if err != nil {
		s.logger.Error("SessionFromToken validation failed: %s", err)
		return nil, err
	}

	return claims, nil
}
