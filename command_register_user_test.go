package users_test

import (
	"context"
	"strings"
	"testing"
	"time"

	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	sent chan string
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{sent: make(chan string, 1)}
}

func (m *recordingMailer) SendVerification(ctx context.Context, email, name, link string) error {
	m.sent <- link
	return nil
}

func TestRegisterUserHandler(t *testing.T) {
	db := newTestDB(t)
	repo := users.NewRepositoryManager(db)
	tokens := users.NewTokenService(newTestConfig(), nil)
	mailer := newRecordingMailer()

	handler := users.NewRegisterUserHandler(repo, tokens, mailer, nil, "http://localhost:8080")
	ctx := context.Background()

	var created *users.User
	err := handler.Execute(ctx, users.RegisterUserMessage{
		Name:     "Ann",
		Email:    "ann@test.com",
		Password: testPassword,
		ZipCode:  "12345",
		City:     "Berlin",
		Phone:    "0123",
		OnResponse: func(u *users.User) {
			created = u
		},
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.Equal(t, "ann@test.com", created.Email)
	assert.Equal(t, users.TypeNormal, created.Type)
	assert.False(t, created.Verified)
	require.NotNil(t, created.VerificationToken)

	t.Run("password is stored hashed", func(t *testing.T) {
		assert.NotEqual(t, testPassword, created.PasswordHash)
		assert.NoError(t, users.ComparePasswordAndHash(testPassword, created.PasswordHash))
	})

	t.Run("verification token is a signed credential", func(t *testing.T) {
		claims, err := tokens.ValidateVerification(*created.VerificationToken)
		require.NoError(t, err)
		assert.Equal(t, "ann@test.com", claims.Subject())
	})

	t.Run("verification mail carries the token link", func(t *testing.T) {
		select {
		case link := <-mailer.sent:
			assert.True(t, strings.HasPrefix(link, "http://localhost:8080/verify/"))
			assert.Contains(t, link, *created.VerificationToken)
		case <-time.After(5 * time.Second):
			t.Fatal("verification mail was never sent")
		}
	})

	t.Run("unparseable phone is stored raw", func(t *testing.T) {
		assert.Equal(t, "0123", created.Phone)
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		err := handler.Execute(ctx, users.RegisterUserMessage{
			Name:     "Other",
			Email:    "ann@test.com",
			Password: testPassword,
			ZipCode:  "54321",
			City:     "Hamburg",
			Phone:    "0456",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, users.ErrAlreadyRegistered)
	})
}

func TestAccountVerificationHandler(t *testing.T) {
	db := newTestDB(t)
	repo := users.NewRepositoryManager(db)
	tokens := users.NewTokenService(newTestConfig(), nil)
	ctx := context.Background()

	register := users.NewRegisterUserHandler(repo, tokens, nil, nil, "")
	var created *users.User
	require.NoError(t, register.Execute(ctx, users.RegisterUserMessage{
		Name:     "Ann",
		Email:    "ann@test.com",
		Password: testPassword,
		ZipCode:  "12345",
		City:     "Berlin",
		Phone:    "0123",
		OnResponse: func(u *users.User) {
			created = u
		},
	}))
	require.NotNil(t, created.VerificationToken)

	handler := users.NewAccountVerificationHandler(repo, tokens)

	execute := func(token string) *users.AccountVerificationResponse {
		var resp *users.AccountVerificationResponse
		require.NoError(t, handler.Execute(ctx, users.AccountVerificationMessage{
			Token: token,
			OnResponse: func(r *users.AccountVerificationResponse) {
				resp = r
			},
		}))
		require.NotNil(t, resp)
		return resp
	}

	t.Run("unknown token is reported, not an error", func(t *testing.T) {
		resp := execute("bogus-token")
		assert.False(t, resp.Found)
	})

	t.Run("valid token verifies the account", func(t *testing.T) {
		resp := execute(*created.VerificationToken)
		assert.True(t, resp.Found)
		assert.True(t, resp.Verified)
		assert.Equal(t, "ann@test.com", resp.Email)
	})

	t.Run("token is single use", func(t *testing.T) {
		resp := execute(*created.VerificationToken)
		assert.False(t, resp.Found)
	})

	t.Run("signed but never stored", func(t *testing.T) {
		orphan, err := tokens.SignVerification("ghost@test.com")
		require.NoError(t, err)

		resp := execute(orphan)
		assert.False(t, resp.Found)
	})
}
