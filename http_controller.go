package users

import (
	"context"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RegisterUserRoutes mounts the full HTTP surface on the given router. The
// guard protects every /users route; registration, verification, login,
// token refresh and logout stay public.
func RegisterUserRoutes(app fiber.Router, guard fiber.Handler, opts ...UserControllerOption) *UserController {
	controller := NewUserController(opts...)

	app.Post(controller.Routes.Register, controller.RegistrationCreate)
	app.Get(controller.Routes.Verify, controller.VerificationShow)
	app.Post(controller.Routes.Login, controller.LoginPost)
	app.Post(controller.Routes.Token, controller.TokenRefresh)
	app.Delete(controller.Routes.Logout, controller.LogoutDelete)

	// the search route has to register before the :id route
	app.Get(controller.Routes.Search, guard, controller.UserSearch)
	app.Get(controller.Routes.Users, guard, controller.UserList)
	app.Get(controller.Routes.User, guard, controller.UserShow)
	app.Put(controller.Routes.User, guard, controller.UserUpdate)
	app.Delete(controller.Routes.User, guard, controller.UserDelete)

	return controller
}

type UserControllerRoutes struct {
	Register string
	Verify   string
	Login    string
	Token    string
	Logout   string
	Users    string
	Search   string
	User     string
}

type UserController struct {
	Debug               bool
	Logger              Logger
	Repo                RepositoryManager
	Auther              *Auther
	Tokens              TokenService
	Mailer              Mailer
	BaseURL             string
	ContextKey          string
	AllowedEmailDomains []string
	UseHashid           bool
	Routes              *UserControllerRoutes
}

type UserControllerOption func(*UserController) *UserController

func NewUserController(opts ...UserControllerOption) *UserController {
	c := &UserController{
		Logger:              defLogger{},
		ContextKey:          "user",
		AllowedEmailDomains: DefaultAllowedEmailDomains(),
		Routes: &UserControllerRoutes{
			Register: "/register",
			Verify:   "/verify/:verificationToken",
			Login:    "/login",
			Token:    "/token",
			Logout:   "/logout",
			Users:    "/users",
			Search:   "/users/search",
			User:     "/users/:id",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in user controller...")
	}

	if c.Auther == nil {
		panic("Missing Auther in user controller...")
	}

	if c.Tokens == nil {
		c.Tokens = c.Auther.TokenService()
	}

	return c
}

// DefaultAllowedEmailDomains is the fallback domain-suffix allowlist.
func DefaultAllowedEmailDomains() []string {
	return []string{".com", ".net", ".org", ".de"}
}

func WithControllerLogger(logger Logger) UserControllerOption {
	return func(c *UserController) *UserController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithRepositoryManager(repo RepositoryManager) UserControllerOption {
	return func(c *UserController) *UserController {
		c.Repo = repo
		return c
	}
}

func WithAuther(auther *Auther) UserControllerOption {
	return func(c *UserController) *UserController {
		c.Auther = auther
		return c
	}
}

func WithMailer(mailer Mailer, baseURL string) UserControllerOption {
	return func(c *UserController) *UserController {
		c.Mailer = mailer
		c.BaseURL = baseURL
		return c
	}
}

func WithAllowedEmailDomains(domains []string) UserControllerOption {
	return func(c *UserController) *UserController {
		if len(domains) > 0 {
			c.AllowedEmailDomains = domains
		}
		return c
	}
}

func WithHashids(enabled bool) UserControllerOption {
	return func(c *UserController) *UserController {
		c.UseHashid = enabled
		return c
	}
}

func WithDebug(enabled bool) UserControllerOption {
	return func(c *UserController) *UserController {
		c.Debug = enabled
		return c
	}
}

// ValidationOptions parameterizes the request payload rules.
type ValidationOptions struct {
	AllowedEmailDomains []string
}

// RegistrationCreatePayload is the registration body
type RegistrationCreatePayload struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	ZipCode  string `json:"zipCode"`
	City     string `json:"city"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	UserType string `json:"type"`
}

// Validate will run validation rules, reporting the first failing field
func (r RegistrationCreatePayload) Validate(opts ValidationOptions) error {
	return firstValidationFailure([]fieldRule{
		{"email", r.Email, []validation.Rule{
			validation.Required,
			is.Email,
			validation.By(allowedEmailDomain(opts.AllowedEmailDomains)),
		}},
		{"name", r.Name, []validation.Rule{
			validation.Required,
			validation.By(alphanumericWithSpaces),
		}},
		{"zipCode", r.ZipCode, []validation.Rule{
			validation.Required,
			validation.Length(5, 5),
		}},
		{"city", r.City, []validation.Rule{
			validation.Required,
		}},
		{"phone", r.Phone, []validation.Rule{
			validation.Required,
			is.Digit,
		}},
		{"password", r.Password, []validation.Rule{
			validation.Required,
			// bcrypt rejects inputs past 72 bytes
			validation.Length(8, 72),
		}},
		{"type", r.UserType, []validation.Rule{
			validation.In(TypeNormal, TypeAdmin),
		}},
	})
}

func (a *UserController) RegistrationCreate(c *fiber.Ctx) error {
	payload := new(RegistrationCreatePayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("register user parse payload: %s", err)
		return WriteError(c, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(a.validationOptions()); err != nil {
		a.Logger.Info("register user validate payload: %s", err)
		return WriteError(c, err)
	}

	if a.Debug {
		debugDump(a.Logger, "register payload", payload)
	}

	var created *User

	msg := RegisterUserMessage{
		Name:      payload.Name,
		Email:     payload.Email,
		Password:  payload.Password,
		ZipCode:   payload.ZipCode,
		City:      payload.City,
		Phone:     payload.Phone,
		UserType:  payload.UserType,
		UseHashid: a.UseHashid,
		OnResponse: func(u *User) {
			created = u
		},
	}

	registerUser := NewRegisterUserHandler(a.Repo, a.Tokens, a.Mailer, a.Logger, a.BaseURL)
	if err := registerUser.Execute(c.UserContext(), msg); err != nil {
		a.Logger.Error("register user execute: %s", err)
		return WriteError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (a *UserController) VerificationShow(c *fiber.Ctx) error {
	token := c.Params("verificationToken")

	var resp *AccountVerificationResponse

	msg := AccountVerificationMessage{
		Token: token,
		OnResponse: func(r *AccountVerificationResponse) {
			resp = r
		},
	}

	accountVerify := NewAccountVerificationHandler(a.Repo, a.Tokens)
	if err := accountVerify.Execute(c.UserContext(), msg); err != nil {
		a.Logger.Error("account verification execute: %s", err)
		return WriteError(c, err)
	}

	if resp == nil || !resp.Found {
		return WriteError(c, ErrUserNotFound)
	}

	return c.JSON(fiber.Map{
		"verified": resp.Verified,
		"email":    resp.Email,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return firstValidationFailure([]fieldRule{
		{"email", r.Email, []validation.Rule{validation.Required, is.Email}},
		{"password", r.Password, []validation.Rule{validation.Required}},
	})
}

func (a *UserController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload: %s", err)
		return WriteError(c, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return WriteError(c, err)
	}

	result, err := a.Auther.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return WriteError(c, err)
	}

	return c.JSON(result)
}

// RefreshRequest carries the refresh token for /token and /logout
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (a *UserController) TokenRefresh(c *fiber.Ctx) error {
	payload := new(RefreshRequest)

	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, ErrMissingToken)
	}

	result, err := a.Auther.Refresh(c.UserContext(), payload.RefreshToken)
	if err != nil {
		return WriteError(c, err)
	}

	return c.JSON(result)
}

func (a *UserController) LogoutDelete(c *fiber.Ctx) error {
	payload := new(RefreshRequest)

	// a missing or unreadable body still logs out cleanly
	_ = c.BodyParser(payload)

	if err := a.Auther.Logout(c.UserContext(), payload.RefreshToken); err != nil {
		return WriteError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// PageDescriptor points at an adjacent pagination window.
type PageDescriptor struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// UserPage is the paginated list envelope.
type UserPage struct {
	Results  []*User         `json:"results"`
	Total    int             `json:"total"`
	Next     *PageDescriptor `json:"next,omitempty"`
	Previous *PageDescriptor `json:"previous,omitempty"`
}

func (a *UserController) UserList(c *fiber.Ctx) error {
	return a.listUsers(c, UserFilter{})
}

func (a *UserController) UserSearch(c *fiber.Ctx) error {
	return a.listUsers(c, UserFilter{
		Email: c.Query("email"),
		Name:  c.Query("name"),
		Zip:   c.Query("zipCode"),
		City:  c.Query("city"),
		Phone: c.Query("phone"),
	})
}

func (a *UserController) listUsers(c *fiber.Ctx, filter UserFilter) error {
	opts := ListOptions{
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", DefaultPageSize),
	}
	opts.Normalize()

	records, total, err := a.Repo.Users().ListUsers(c.UserContext(), filter, opts)
	if err != nil {
		a.Logger.Error("list users: %s", err)
		return WriteError(c, err)
	}

	return c.JSON(paginate(records, total, opts))
}

func paginate(records []*User, total int, opts ListOptions) *UserPage {
	page := &UserPage{
		Results: records,
		Total:   total,
	}

	if opts.Page*opts.Limit < total {
		page.Next = &PageDescriptor{Page: opts.Page + 1, Limit: opts.Limit}
	}

	if opts.Page > 1 {
		page.Previous = &PageDescriptor{Page: opts.Page - 1, Limit: opts.Limit}
	}

	return page
}

func (a *UserController) UserShow(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return WriteError(c, ErrUserNotFound)
	}

	user, err := a.Repo.Users().GetByID(c.UserContext(), id)
	if err != nil {
		return WriteError(c, mapNotFound(err))
	}

	return c.JSON(user)
}

// UpdateUserPayload carries a partial profile update. Empty fields stay
// untouched; a supplied password is re-hashed before it is stored.
type UpdateUserPayload struct {
	Name     string `json:"name"`
	ZipCode  string `json:"zipCode"`
	City     string `json:"city"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	UserType string `json:"type"`
}

// Validate checks only the fields the caller supplied
func (r UpdateUserPayload) Validate() error {
	fields := []fieldRule{}

	if r.Name != "" {
		fields = append(fields, fieldRule{"name", r.Name, []validation.Rule{
			validation.By(alphanumericWithSpaces),
		}})
	}
	if r.ZipCode != "" {
		fields = append(fields, fieldRule{"zipCode", r.ZipCode, []validation.Rule{
			validation.Length(5, 5),
		}})
	}
	if r.Phone != "" {
		fields = append(fields, fieldRule{"phone", r.Phone, []validation.Rule{
			is.Digit,
		}})
	}
	if r.Password != "" {
		fields = append(fields, fieldRule{"password", r.Password, []validation.Rule{
			// bcrypt rejects inputs past 72 bytes
			validation.Length(8, 72),
		}})
	}
	if r.UserType != "" {
		fields = append(fields, fieldRule{"type", r.UserType, []validation.Rule{
			validation.In(TypeNormal, TypeAdmin),
		}})
	}

	return firstValidationFailure(fields)
}

func (a *UserController) UserUpdate(c *fiber.Ctx) error {
	id := c.Params("id")

	claims, ok := GetFiberClaims(c, a.ContextKey)
	if !ok {
		return WriteError(c, ErrNotAllowed)
	}

	if err := AuthorizeOwnerOrAdmin(claims, id); err != nil {
		return WriteError(c, err)
	}

	uid, err := uuid.Parse(id)
	if err != nil {
		return WriteError(c, ErrUserNotFound)
	}

	payload := new(UpdateUserPayload)
	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("update user parse payload: %s", err)
		return WriteError(c, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return WriteError(c, err)
	}

	// only elevated callers may change the role tag
	if payload.UserType != "" && !claims.IsElevated() {
		return WriteError(c, ErrNotAllowed)
	}

	// apply the partial payload over the stored record so an update writes
	// every column back with its current value instead of zeroing it
	record, err := a.Repo.Users().GetByID(c.UserContext(), id)
	if err != nil {
		return WriteError(c, mapNotFound(err))
	}

	record.ID = uid
	if payload.Name != "" {
		record.Name = payload.Name
	}
	if payload.ZipCode != "" {
		record.ZipCode = payload.ZipCode
	}
	if payload.City != "" {
		record.City = payload.City
	}
	if payload.Phone != "" {
		record.Phone = normalizePhone(payload.Phone)
	}
	if payload.UserType != "" {
		record.Type = payload.UserType
	}

	if payload.Password != "" {
		hash, err := HashPassword(payload.Password)
		if err != nil {
			a.Logger.Error("update user hash password: %s", err)
			return WriteError(c, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password").
				WithCode(goerrors.CodeInternal))
		}
		record.PasswordHash = hash
	}

	err = a.Repo.RunInTx(c.UserContext(), nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := a.Repo.Users().UpdateTx(ctx, tx, record, repository.UpdateByID(id))
		return err
	})
	if err != nil {
		a.Logger.Error("update user: %s", err)
		return WriteError(c, mapNotFound(err))
	}

	updated, err := a.Repo.Users().GetByID(c.UserContext(), id)
	if err != nil {
		return WriteError(c, mapNotFound(err))
	}

	return c.JSON(updated)
}

func (a *UserController) UserDelete(c *fiber.Ctx) error {
	id := c.Params("id")

	claims, ok := GetFiberClaims(c, a.ContextKey)
	if !ok {
		return WriteError(c, ErrNotAllowed)
	}

	if err := AuthorizeOwnerOrAdmin(claims, id); err != nil {
		return WriteError(c, err)
	}

	uid, err := uuid.Parse(id)
	if err != nil {
		return WriteError(c, ErrUserNotFound)
	}

	if err := a.Repo.Users().DeleteByID(c.UserContext(), uid); err != nil {
		return WriteError(c, mapNotFound(err))
	}

	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("User with id: %s is deleted.", id),
	})
}

func (a *UserController) validationOptions() ValidationOptions {
	return ValidationOptions{
		AllowedEmailDomains: a.AllowedEmailDomains,
	}
}

type fieldRule struct {
	name  string
	value any
	rules []validation.Rule
}

// firstValidationFailure evaluates rules field by field in declaration order
// and reports only the first violation, named by field.
func firstValidationFailure(fields []fieldRule) error {
	for _, f := range fields {
		if err := validation.Validate(f.value, f.rules...); err != nil {
			return goerrors.New(fmt.Sprintf("%s: %s", f.name, err.Error()), goerrors.CategoryValidation).
				WithTextCode(TextCodeValidation).
				WithCode(goerrors.CodeBadRequest)
		}
	}
	return nil
}

// allowedEmailDomain checks the address host against a suffix allowlist.
func allowedEmailDomain(domains []string) validation.RuleFunc {
	return func(value any) error {
		if len(domains) == 0 {
			return nil
		}

		s, _ := value.(string)
		at := strings.LastIndex(s, "@")
		if at < 0 {
			return fmt.Errorf("must be a valid email address")
		}

		host := strings.ToLower(s[at+1:])
		for _, domain := range domains {
			if strings.HasSuffix(host, strings.ToLower(domain)) {
				return nil
			}
		}

		return fmt.Errorf("email domain is not allowed")
	}
}

// alphanumericWithSpaces accepts letters, digits and interior spaces.
func alphanumericWithSpaces(value any) error {
	s, _ := value.(string)
	stripped := strings.ReplaceAll(s, " ", "")
	if stripped == "" {
		return fmt.Errorf("must contain letters or digits")
	}
	return is.Alphanumeric.Validate(stripped)
}
