package users

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-users/middleware/jwtware"
)

// tokenValidatorAdapter bridges the package TokenService to the middleware's
// TokenValidator. The two interfaces have the same shape but Go interface
// types are invariant, so the concrete claims need rewrapping.
type tokenValidatorAdapter struct {
	tokens TokenService
}

func (a tokenValidatorAdapter) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := a.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// NewGuard builds the bearer-token route guard. It checks signature and
// expiry only; access tokens are not checked against the database.
func NewGuard(cfg Config, tokens TokenService, logger Logger) fiber.Handler {
	if logger == nil {
		logger = defLogger{}
	}

	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{
			Key:    []byte(cfg.GetSigningKey()),
			JWTAlg: cfg.GetSigningMethod(),
		},
		AuthScheme:     cfg.GetAuthScheme(),
		ContextKey:     cfg.GetContextKey(),
		TokenLookup:    cfg.GetTokenLookup(),
		TokenValidator: tokenValidatorAdapter{tokens: tokens},
		ErrorHandler:   MakeGuardErrorHandler(logger),
	})
}

// MakeGuardErrorHandler maps guard failures onto the wire taxonomy: a
// missing credential is 401, a credential that fails validation is 403.
func MakeGuardErrorHandler(logger Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var richErr *errors.Error

		if errors.Is(err, jwtware.ErrJWTMissing) {
			richErr = ErrMissingToken
		} else if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else {
			richErr = ErrTokenMalformed
		}

		logger.Info("guard rejected request %s %s: %s", c.Method(), c.Path(), richErr.Message)

		return WriteError(c, richErr)
	}
}

// WriteError renders any error as the uniform {error, text_code} JSON body.
// Internal detail stays in the log; clients get the sentinel message only.
func WriteError(c *fiber.Ctx, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	status := richErr.Code
	if status < fiber.StatusBadRequest {
		status = fiber.StatusInternalServerError
	}

	body := fiber.Map{"error": richErr.Message}
	if richErr.TextCode != "" {
		body["text_code"] = richErr.TextCode
	}

	return c.Status(status).JSON(body)
}

// NotFoundHandler answers every unregistered route with the same 404 body.
func NotFoundHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return WriteError(c, ErrRouteNotFound)
	}
}

// mapNotFound converts repository record-not-found errors into the uniform
// ErrUserNotFound; anything else passes through untouched.
func mapNotFound(err error) error {
	if err == nil {
		return nil
	}
	if errors.IsNotFound(err) {
		return ErrUserNotFound
	}
	return err
}

func debugDump(logger Logger, label string, v any) {
	logger.Debug("%s %s", label, print.MaybePrettyJSON(v))
}
