package main

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-router"
	mflash "github.com/goliatone/go-router/middleware/flash"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/config"
	"github.com/goliatone/go-accounts/mailer"
)

//go:embed views
var viewsFS embed.FS

type App struct {
	config  *config.AppConfig
	bunDB   *bun.DB
	auth    accounts.Authenticator
	auther  accounts.HTTPAuthenticator
	repo    accounts.RepositoryManager
	tokens  *accounts.ActionTokens
	gateway accounts.NotificationGateway
	srv     router.Server[*fiber.App]
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	app := &App{config: cfg}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		log.Fatal(err)
	}

	if err := WithNotifications(ctx, app); err != nil {
		log.Fatal(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		log.Fatal(err)
	}

	if err := WithAccountRoutes(ctx, app); err != nil {
		log.Fatal(err)
	}

	app.srv.Serve(cfg.ListenAddr)

	WaitExitSignal()
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := sql.Open(sqliteshim.ShimName, app.config.DBPath)
	if err != nil {
		return err
	}

	bunDB := bun.NewDB(db, sqlitedialect.New())

	if err := accounts.RunMigrations(ctx, bunDB); err != nil {
		return err
	}

	repo := accounts.NewRepositoryManager(bunDB)
	if err := repo.Validate(); err != nil {
		return err
	}

	app.bunDB = bunDB
	app.repo = repo

	return nil
}

// consoleGateway writes account emails to the process log. It stands in
// for SMTP during development, the console email backend pattern.
type consoleGateway struct{}

func (consoleGateway) Send(to, subject, body string) error {
	log.Printf("[MAIL] to=%s subject=%q\n%s", to, subject, body)
	return nil
}

// smtpGateway adapts the mailer to the notification interface.
type smtpGateway struct {
	mailer mailer.Mailer
}

func (g smtpGateway) Send(to, subject, body string) error {
	return g.mailer.QuickSend(to, subject, body)
}

func WithNotifications(ctx context.Context, app *App) error {
	smtp := app.config.SMTP

	if !smtp.Enabled {
		app.gateway = consoleGateway{}
		return nil
	}

	app.gateway = smtpGateway{
		mailer: mailer.NewMailer(mailer.SMTPConfig{
			Host:     smtp.Host,
			Port:     smtp.Port,
			Username: smtp.Username,
			Password: smtp.Password,
			From:     smtp.From,
			Address:  smtp.Address(),
		}),
	}

	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	templates, err := fs.Sub(viewsFS, "views")
	if err != nil {
		return err
	}

	engine := django.NewFileSystem(http.FS(templates), ".html")

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			StrictRouting:     false,
			PassLocalsToViews: true,
			Views:             engine,
		}))
	})

	srv.Router().Use(mflash.New(mflash.ConfigDefault))

	app.srv = srv

	return nil
}

type userTrackerAdapter struct {
	users accounts.Users
}

func (a userTrackerAdapter) GetByIdentifier(ctx context.Context, identifier string) (*accounts.User, error) {
	return a.users.GetByIdentifier(ctx, identifier)
}

func (a userTrackerAdapter) TrackAttemptedLogin(ctx context.Context, user *accounts.User) error {
	return a.users.TrackAttemptedLogin(ctx, user)
}

func (a userTrackerAdapter) TrackSuccessfulLogin(ctx context.Context, user *accounts.User) error {
	return a.users.TrackSuccessfulLogin(ctx, user)
}

func WithAccountRoutes(ctx context.Context, app *App) error {
	cfg := app.config.GetAuth()

	userProvider := accounts.NewUserProvider(userTrackerAdapter{users: app.repo.Users()})

	authenticator := accounts.NewAuthenticator(userProvider, cfg)
	app.auth = authenticator

	httpAuth, err := accounts.NewHTTPAuthenticator(authenticator, cfg)
	if err != nil {
		return err
	}
	app.auther = httpAuth

	app.tokens = accounts.NewActionTokens(
		[]byte(cfg.GetSigningKey()),
		cfg.GetVerifyTokenTTL(),
		cfg.GetResetTokenTTL(),
		cfg.GetIssuer(),
		nil,
	)

	accounts.RegisterAccountRoutes(app.srv.Router().Group("/"),
		func(ac *accounts.AccountController) *accounts.AccountController {
			ac.Debug = app.config.Debug
			ac.Auther = httpAuth
			ac.Repo = app.repo
			ac.Tokens = app.tokens
			ac.Gateway = app.gateway
			ac.BaseURL = app.config.BaseURL
			ac.Config = cfg
			return ac
		})

	accounts.RegisterAPIRoutes(app.srv.Router().Group("/"),
		func(ac *accounts.APIController) *accounts.APIController {
			ac.Auther = httpAuth
			ac.Repo = app.repo
			ac.Tokens = app.tokens
			ac.Gateway = app.gateway
			ac.BaseURL = app.config.BaseURL
			ac.Config = cfg
			return ac
		})

	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	return <-ch
}
