package jwtware_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-users/middleware/jwtware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "jwtware-test-signing-key"

func signTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString([]byte(testSigningKey))
	require.NoError(t, err)
	return raw
}

func newGuardedApp(cfg ...jwtware.Config) *fiber.App {
	app := fiber.New()

	config := jwtware.Config{
		SigningKey: jwtware.SigningKey{JWTAlg: "HS256", Key: []byte(testSigningKey)},
	}
	if len(cfg) > 0 {
		config = cfg[0]
	}

	app.Get("/protected", jwtware.New(config), func(c *fiber.Ctx) error {
		claims, ok := c.Locals("user").(jwtware.AuthClaims)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(fiber.Map{"subject": claims.Subject()})
	})

	return app
}

func TestGuardMissingToken(t *testing.T) {
	app := newGuardedApp()

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
}

func TestGuardInvalidToken(t *testing.T) {
	app := newGuardedApp()

	tests := []struct {
		name  string
		value string
	}{
		{"garbage", "Bearer garbage"},
		{"wrong scheme", "Basic abc123"},
		{"empty bearer", "Bearer "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", tc.value)

			res, err := app.Test(req)
			require.NoError(t, err)
			assert.NotEqual(t, fiber.StatusOK, res.StatusCode)
		})
	}
}

func TestGuardWrongKey(t *testing.T) {
	app := newGuardedApp()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "ann@test.com"})
	raw, err := token.SignedString([]byte("some-other-key"))
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+raw)

	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, res.StatusCode)
}

func TestGuardValidToken(t *testing.T) {
	app := newGuardedApp()

	raw := signTestToken(t, jwt.MapClaims{
		"sub":   "ann@test.com",
		"uid":   "some-user-id",
		"email": "ann@test.com",
		"type":  "normal",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+raw)

	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
}

func TestGuardExpiredToken(t *testing.T) {
	app := newGuardedApp()

	raw := signTestToken(t, jwt.MapClaims{
		"sub": "ann@test.com",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+raw)

	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, res.StatusCode)
}

func TestGuardFilterSkips(t *testing.T) {
	app := newGuardedApp(jwtware.Config{
		SigningKey: jwtware.SigningKey{JWTAlg: "HS256", Key: []byte(testSigningKey)},
		Filter:     func(c *fiber.Ctx) bool { return true },
	})

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	res, err := app.Test(req)
	require.NoError(t, err)
	// the filter bypasses the guard, so the handler runs without claims
	assert.Equal(t, fiber.StatusInternalServerError, res.StatusCode)
}

func TestKeyfuncTokenValidatorClaims(t *testing.T) {
	validator := jwtware.KeyfuncTokenValidator{
		KeyFunc: func(t *jwt.Token) (any, error) {
			return []byte(testSigningKey), nil
		},
	}

	raw := signTestToken(t, jwt.MapClaims{
		"sub":   "ann@test.com",
		"uid":   "some-user-id",
		"email": "ann@test.com",
		"type":  "admin",
	})

	claims, err := validator.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "ann@test.com", claims.Subject())
	assert.Equal(t, "some-user-id", claims.UserID())
	assert.Equal(t, "ann@test.com", claims.UserEmail())
	assert.Equal(t, "admin", claims.UserType())
	assert.True(t, claims.IsElevated())
}

func TestGetExtractors(t *testing.T) {
	app := fiber.New()
	app.Get("/q", func(c *fiber.Ctx) error {
		extractors := jwtware.GetExtractors("query:auth_token")
		raw, err := jwtware.ExtractRawToken(c, extractors)
		if err != nil || raw == "" {
			return c.SendStatus(fiber.StatusBadRequest)
		}
		return c.SendString(raw)
	})

	req := httptest.NewRequest(fiber.MethodGet, "/q?auth_token=some-token", nil)
	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
}
