package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-print"
	users "github.com/goliatone/go-users"
	"github.com/goliatone/go-users/config"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("users"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := gconfig.New(&config.BaseConfig{}).
		WithLogger(lgr.GetLogger("config"))

	ctx := context.Background()
	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}

	base := cfg.Raw()

	if base.GetApp().Debug {
		fmt.Println(print.MaybeHighlightJSON(base))
	}

	db, err := openDatabase(ctx, base, lgr)
	if err != nil {
		panic(err)
	}

	repo := users.NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		panic(err)
	}

	authCfg := base.GetAuth()
	tokens := users.NewTokenService(authCfg, loggerFor(lgr, "tokens"))
	auther := users.NewAuthenticator(repo, tokens).
		WithLogger(loggerFor(lgr, "auth"))

	mailer, err := buildMailer(base, lgr)
	if err != nil {
		panic(err)
	}

	app := fiber.New(fiber.Config{
		AppName:               base.GetApp().Name,
		DisableStartupMessage: !base.GetApp().Debug,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: base.GetServer().GetAllowedOrigin(),
	}))

	guard := users.NewGuard(authCfg, tokens, loggerFor(lgr, "guard"))

	users.RegisterUserRoutes(app, guard,
		users.WithControllerLogger(loggerFor(lgr, "http")),
		users.WithRepositoryManager(repo),
		users.WithAuther(auther),
		users.WithMailer(mailer, base.GetApp().BaseURL),
		users.WithAllowedEmailDomains(base.GetServer().AllowedEmails),
		users.WithHashids(authCfg.UseHashids),
		users.WithDebug(base.GetApp().Debug),
	)

	app.Use(users.NotFoundHandler())

	go func() {
		addr := fmt.Sprintf(":%d", base.GetServer().GetPort())
		if err := app.Listen(addr); err != nil {
			lgr.GetLogger("server").Error("server stopped", "error", err)
		}
	}()

	WaitExitSignal()

	if err := app.Shutdown(); err != nil {
		lgr.GetLogger("server").Error("shutdown failed", "error", err)
	}
}

func openDatabase(ctx context.Context, base *config.BaseConfig, lgr *glog.BaseLogger) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, base.GetPersistence().GetDSN())
	if err != nil {
		return nil, err
	}

	persistence.RegisterModel((*users.User)(nil))

	client, err := persistence.New(base.GetPersistence(), sqldb, sqlitedialect.New())
	if err != nil {
		return nil, err
	}

	client.SetLogger(lgr.GetLogger("persistence"))

	db := client.DB()

	if _, err := db.NewCreateTable().
		Model((*users.User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

func buildMailer(base *config.BaseConfig, lgr *glog.BaseLogger) (users.Mailer, error) {
	mail := base.GetMail()
	if !mail.Enabled {
		return users.NewLogMailer(loggerFor(lgr, "mail")), nil
	}

	return users.NewSMTPMailer(users.MailConfig{
		Host:     mail.Host,
		Port:     mail.Port,
		Username: mail.Username,
		Password: mail.Password,
		From:     mail.From,
	}, loggerFor(lgr, "mail"))
}

// glogAdapter narrows a glog logger to the printf style Logger the users
// package components expect.
type glogAdapter struct {
	l glog.Logger
}

func loggerFor(lgr *glog.BaseLogger, name string) users.Logger {
	return glogAdapter{l: lgr.GetLogger(name)}
}

func (g glogAdapter) Debug(format string, args ...any) { g.l.Debug(fmt.Sprintf(format, args...)) }
func (g glogAdapter) Info(format string, args ...any)  { g.l.Info(fmt.Sprintf(format, args...)) }
func (g glogAdapter) Warn(format string, args ...any)  { g.l.Warn(fmt.Sprintf(format, args...)) }
func (g glogAdapter) Error(format string, args ...any) { g.l.Error(fmt.Sprintf(format, args...)) }

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
