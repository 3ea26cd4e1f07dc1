package users

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	ZipCode    string `json:"zipCode"`
	City       string `json:"city"`
	Phone      string `json:"phone"`
	UserType   string `json:"type"`
	UseHashid  bool
	OnResponse func(u *User)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

type RegisterUserHandler struct {
	repo    RepositoryManager
	tokens  TokenService
	mailer  Mailer
	logger  Logger
	baseURL string
}

func NewRegisterUserHandler(repo RepositoryManager, tokens TokenService, mailer Mailer, logger Logger, baseURL string) *RegisterUserHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return &RegisterUserHandler{
		repo:    repo,
		tokens:  tokens,
		mailer:  mailer,
		logger:  logger,
		baseURL: baseURL,
	}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.Users().GetByEmailTx(ctx, tx, event.Email); err == nil {
			return ErrAlreadyRegistered
		} else if !goerrors.IsNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check existing registration")
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		verification, err := h.tokens.SignVerification(event.Email)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign verification token")
		}

		user.PasswordHash = hash
		user.Email = event.Email
		user.Name = event.Name
		user.ZipCode = event.ZipCode
		user.City = event.City
		user.Phone = normalizePhone(event.Phone)
		user.Type = event.UserType
		user.Verified = false
		user.VerificationToken = &verification
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			if IsUniqueViolationError(err) {
				return ErrAlreadyRegistered
			}
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	if h.mailer != nil && user.VerificationToken != nil {
		// Delivery must not hold up or fail the registration response.
		go func(email, name, token string) {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second*30)
			defer scancel()
			if err := h.mailer.SendVerification(sctx, email, name, verificationLink(h.baseURL, token)); err != nil {
				h.logger.Error("failed to send verification email to %s: %s", email, err)
			}
		}(user.Email, user.Name, *user.VerificationToken)
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

func verificationLink(baseURL, token string) string {
	if baseURL == "" {
		return "/verify/" + token
	}
	return baseURL + "/verify/" + token
}

// normalizePhone stores numbers in E.164 when they parse as a valid phone,
// and keeps the raw input otherwise. Validation does not reject short local
// numbers, so this stays best effort.
func normalizePhone(raw string) string {
	if raw == "" {
		return raw
	}

	num, err := phonenumbers.Parse(raw, "DE")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return raw
	}

	return phonenumbers.Format(num, phonenumbers.E164)
}
