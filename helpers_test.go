package users_test

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	users "github.com/goliatone/go-users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const sqliteCreateUsers = `CREATE TABLE users (
	id TEXT NOT NULL PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	zip_code TEXT NOT NULL,
	city TEXT NOT NULL,
	phone TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	user_type TEXT NOT NULL,
	is_verified BOOLEAN NOT NULL DEFAULT FALSE,
	verification_token TEXT,
	refresh_token TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = db.Exec(sqliteCreateUsers)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

type testConfig struct {
	accessTTL  int
	refreshTTL int
	verifyTTL  int
}

func newTestConfig() *testConfig {
	return &testConfig{
		accessTTL:  30,
		refreshTTL: 24,
		verifyTTL:  48,
	}
}

func (c *testConfig) GetSigningKey() string               { return "test-access-signing-key" }
func (c *testConfig) GetRefreshSigningKey() string        { return "test-refresh-signing-key" }
func (c *testConfig) GetSigningMethod() string            { return "HS256" }
func (c *testConfig) GetContextKey() string               { return "user" }
func (c *testConfig) GetTokenExpiration() int             { return c.accessTTL }
func (c *testConfig) GetRefreshTokenExpiration() int      { return c.refreshTTL }
func (c *testConfig) GetVerificationTokenExpiration() int { return c.verifyTTL }
func (c *testConfig) GetTokenLookup() string              { return "header:Authorization" }
func (c *testConfig) GetAuthScheme() string               { return "Bearer" }
func (c *testConfig) GetIssuer() string                   { return "go-users-test" }
func (c *testConfig) GetAudience() []string               { return nil }

const testPassword = "longpass1"

var (
	testHashOnce sync.Once
	testHash     string
	seedClock    int64
)

// sharedPasswordHash hashes testPassword once per test binary; bcrypt at the
// production cost factor is too slow to run per seeded row.
func sharedPasswordHash(t *testing.T) string {
	t.Helper()
	testHashOnce.Do(func() {
		h, err := users.HashPassword(testPassword)
		if err != nil {
			t.Fatalf("hash test password: %v", err)
		}
		testHash = h
	})
	return testHash
}

type seedOptions struct {
	email    string
	name     string
	zip      string
	city     string
	phone    string
	userType string
	verified bool
}

func seedUser(t *testing.T, repo users.RepositoryManager, opts seedOptions) *users.User {
	t.Helper()

	if opts.name == "" {
		opts.name = "Test User"
	}
	if opts.zip == "" {
		opts.zip = "12345"
	}
	if opts.city == "" {
		opts.city = "Berlin"
	}
	if opts.phone == "" {
		opts.phone = "0123"
	}

	token := uuid.NewString()

	// sqlite's CURRENT_TIMESTAMP only has second resolution, which makes
	// creation order ambiguous for rows seeded back to back.
	createdAt := time.Now().Add(time.Duration(atomic.AddInt64(&seedClock, 1)) * time.Second)

	record := &users.User{
		Email:             opts.email,
		Name:              opts.name,
		ZipCode:           opts.zip,
		City:              opts.city,
		Phone:             opts.phone,
		PasswordHash:      sharedPasswordHash(t),
		Type:              opts.userType,
		Verified:          opts.verified,
		VerificationToken: &token,
		CreatedAt:         &createdAt,
	}
	if opts.verified {
		record.VerificationToken = nil
	}

	created, err := repo.Users().Register(context.Background(), record)
	require.NoError(t, err)

	return created
}
