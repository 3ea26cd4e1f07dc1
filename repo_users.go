package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ConsumeVerificationTokenSQL = `UPDATE "users" AS "usr"
SET
	"is_verified" = TRUE,
	"verification_token" = NULL,
	"updated_at" = CURRENT_TIMESTAMP
WHERE (
	"usr"."verification_token" = ?
) RETURNING *;`

// UserFilter narrows ListUsers results. Empty fields are ignored; the ones set are
// combined with AND and matched as case-insensitive substrings.
type UserFilter struct {
	Email string
	Name  string
	Zip   string
	City  string
	Phone string
}

// HasCriteria reports whether at least one filter field is set.
func (f UserFilter) HasCriteria() bool {
	return strings.TrimSpace(f.Email) != "" ||
		strings.TrimSpace(f.Name) != "" ||
		strings.TrimSpace(f.Zip) != "" ||
		strings.TrimSpace(f.City) != "" ||
		strings.TrimSpace(f.Phone) != ""
}

// ListOptions carries offset pagination for ListUsers.
type ListOptions struct {
	Page  int
	Limit int
}

// Normalize clamps pagination to sane values.
func (o *ListOptions) Normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = DefaultPageSize
	}
	if o.Limit > MaxPageSize {
		o.Limit = MaxPageSize
	}
}

// DefaultPageSize and MaxPageSize bound the ListUsers page size.
const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

type Users interface {
	repository.Repository[*User]

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	GetByRefreshToken(ctx context.Context, token string) (*User, error)
	GetByRefreshTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	ConsumeVerificationToken(ctx context.Context, token string) (*User, error)
	ConsumeVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error)

	StoreRefreshToken(ctx context.Context, id uuid.UUID, token string) error
	ClearRefreshToken(ctx context.Context, id uuid.UUID) error

	ListUsers(ctx context.Context, filter UserFilter, opts ListOptions) ([]*User, int, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)
	return a.Repository.CreateTx(ctx, tx, user)
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	return a.getByColumnTx(ctx, tx, "email", email)
}

func (a *users) GetByRefreshToken(ctx context.Context, token string) (*User, error) {
	return a.GetByRefreshTokenTx(ctx, a.db, token)
}

func (a *users) GetByRefreshTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error) {
	return a.getByColumnTx(ctx, tx, "refresh_token", token)
}

func (a *users) getByColumnTx(ctx context.Context, tx bun.IDB, column, value string) (*User, error) {
	record := &User{}

	err := tx.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					column: value,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) ConsumeVerificationToken(ctx context.Context, token string) (*User, error) {
	return a.ConsumeVerificationTokenTx(ctx, a.db, token)
}

// ConsumeVerificationTokenTx flips is_verified and clears the stored token in
// a single statement, so two concurrent clicks on the same link cannot both
// win.
func (a *users) ConsumeVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error) {
	res, err := a.Repository.RawTx(ctx, tx, ConsumeVerificationTokenSQL, token)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"verification_token": token,
			})
	}

	return res[0], nil
}

func (a *users) StoreRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	return a.setRefreshToken(ctx, id, &token)
}

func (a *users) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	return a.setRefreshToken(ctx, id, nil)
}

func (a *users) setRefreshToken(ctx context.Context, id uuid.UUID, token *string) error {
	// NOTE: Updating through the ORM would zero every unset column, so we
	// issue the single column update by hand.
	_, err := a.db.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"refresh_token" = ?,
			"updated_at" = CURRENT_TIMESTAMP
		WHERE
			("usr".id = ?);
	`, token, id).Exec(ctx)

	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to update refresh token")
	}

	return nil
}

func (a *users) ListUsers(ctx context.Context, filter UserFilter, opts ListOptions) ([]*User, int, error) {
	opts.Normalize()

	records := []*User{}

	q := a.db.NewSelect().Model(&records)
	q = applyUserFilter(q, filter)

	total, err := q.
		Order("usr.created_at ASC").
		Limit(opts.Limit).
		Offset((opts.Page - 1) * opts.Limit).
		ScanAndCount(ctx)

	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CategoryInternal, "failed to list users")
	}

	return records, total, nil
}

func (a *users) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res, err := a.db.NewDelete().
		Model((*User)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)

	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete user")
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func applyUserFilter(q *bun.SelectQuery, filter UserFilter) *bun.SelectQuery {
	if v := strings.TrimSpace(filter.Email); v != "" {
		q = q.Where("LOWER(?TableAlias.email) LIKE ?", substringPattern(v))
	}
	if v := strings.TrimSpace(filter.Name); v != "" {
		q = q.Where("LOWER(?TableAlias.name) LIKE ?", substringPattern(v))
	}
	if v := strings.TrimSpace(filter.Zip); v != "" {
		q = q.Where("LOWER(?TableAlias.zip_code) LIKE ?", substringPattern(v))
	}
	if v := strings.TrimSpace(filter.City); v != "" {
		q = q.Where("LOWER(?TableAlias.city) LIKE ?", substringPattern(v))
	}
	if v := strings.TrimSpace(filter.Phone); v != "" {
		q = q.Where("LOWER(?TableAlias.phone) LIKE ?", substringPattern(v))
	}
	return q
}

func substringPattern(v string) string {
	return "%" + strings.ToLower(v) + "%"
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.EnsureType()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
