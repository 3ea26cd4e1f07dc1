package users

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type AccountVerificationMessage struct {
	Token      string `json:"token" example:"eyJhbGciOi..." doc:"Email verification token"`
	OnResponse func(a *AccountVerificationResponse)
}

func (e AccountVerificationMessage) Type() string { return "user.verify" }

type AccountVerificationResponse struct {
	Found    bool   `json:"found" example:"true" doc:"Has the token been matched to an account?"`
	Verified bool   `json:"verified" example:"true" doc:"Is the account now verified?"`
	Email    string `json:"email" example:"jon.doe@example.com" doc:"Email of the verified account."`
}

type AccountVerificationHandler struct {
	repo   RepositoryManager
	tokens TokenService
}

func NewAccountVerificationHandler(repo RepositoryManager, tokens TokenService) *AccountVerificationHandler {
	return &AccountVerificationHandler{
		repo:   repo,
		tokens: tokens,
	}
}

func (h *AccountVerificationHandler) Execute(ctx context.Context, event AccountVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *AccountVerificationHandler) execute(ctx context.Context, event AccountVerificationMessage) error {
	resp := &AccountVerificationResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	// An expired or tampered token never reaches the database; it behaves
	// exactly like an unknown one.
	if _, err := h.tokens.ValidateVerification(event.Token); err != nil {
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
		return nil
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().ConsumeVerificationTokenTx(ctx, tx, event.Token)
		if err != nil {
			// unknown or already consumed tokens are part of the expected flow
			if goerrors.IsNotFound(err) {
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume verification token")
		}

		resp.Found = true
		resp.Verified = user.Verified
		resp.Email = user.Email
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to execute account verification")
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
