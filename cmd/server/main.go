// Command server runs the codeboard backend: GitHub sign-in, the token
// refresh endpoints, and the stats routes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gorilla/mux"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/codeboard/codeboard"
	cboauth2 "github.com/codeboard/codeboard/oauth2"
	"github.com/codeboard/codeboard/stats"
	fsstore "github.com/codeboard/codeboard/stores/fs"
	gormstore "github.com/codeboard/codeboard/stores/gorm"
)

// Config is assembled from the environment once at startup and stays
// immutable afterwards, signing secrets included.
type Config struct {
	Addr string `env:"CODEBOARD_ADDR" envDefault:":5000"`
	Env  string `env:"CODEBOARD_ENV" envDefault:"development"`

	// DatabaseURL selects the postgres store; when empty the server falls
	// back to the file store under DataDir (development only).
	DatabaseURL string `env:"CODEBOARD_DATABASE_URL"`
	DataDir     string `env:"CODEBOARD_DATA_DIR" envDefault:"./data"`

	AccessSecret  string        `env:"CODEBOARD_ACCESS_SECRET,required"`
	RefreshSecret string        `env:"CODEBOARD_REFRESH_SECRET,required"`
	AccessTTL     time.Duration `env:"CODEBOARD_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"CODEBOARD_REFRESH_TTL" envDefault:"168h"`

	GithubClientID     string `env:"CODEBOARD_GITHUB_CLIENT_ID"`
	GithubClientSecret string `env:"CODEBOARD_GITHUB_CLIENT_SECRET"`
	GithubCallbackURL  string `env:"CODEBOARD_GITHUB_CALLBACK_URL" envDefault:"http://localhost:5000/auth/github/callback"`

	LoginRedirectURL string `env:"CODEBOARD_LOGIN_REDIRECT_URL" envDefault:"/"`
}

func (c Config) production() bool {
	return c.Env == "production"
}

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	accounts, err := openAccountStore(cfg, logger)
	if err != nil {
		return err
	}

	if cfg.AccessSecret == cfg.RefreshSecret {
		return errors.New("access and refresh secrets must differ")
	}

	issuer := &codeboard.Issuer{
		AccessSecret:  []byte(cfg.AccessSecret),
		RefreshSecret: []byte(cfg.RefreshSecret),
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
		Name:          "codeboard",
	}
	sessions := &codeboard.Sessions{
		Accounts: accounts,
		Issuer:   issuer,
		Logger:   logger,
	}
	api := &codeboard.API{
		Sessions:         sessions,
		CookieSecure:     cfg.production(),
		LoginRedirectURL: cfg.LoginRedirectURL,
		Logger:           logger,
	}
	middleware := &codeboard.Middleware{Issuer: issuer}

	github := cboauth2.NewGithubOAuth2(
		cfg.GithubClientID, cfg.GithubClientSecret, cfg.GithubCallbackURL,
		api.HandleProfileCallback,
	)

	statsHandlers := &stats.Handlers{
		Client:   &stats.Client{Logger: logger},
		Accounts: accounts,
		Logger:   logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	}).Methods(http.MethodGet)

	r.HandleFunc("/auth/github", github.HandleRedirect).Methods(http.MethodGet)
	r.HandleFunc("/auth/github/callback", github.HandleCallback).Methods(http.MethodGet)
	r.HandleFunc("/auth/refresh", api.HandleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", api.HandleLogout).Methods(http.MethodPost)

	me := r.PathPrefix("/api/me").Subrouter()
	me.Use(middleware.RequireAccount)
	me.HandleFunc("", api.HandleMe).Methods(http.MethodGet)
	me.HandleFunc("/stats", statsHandlers.HandleMine).Methods(http.MethodGet)
	me.HandleFunc("/stats/refresh", statsHandlers.HandleRefreshMine).Methods(http.MethodPost)

	r.HandleFunc("/api/stats/github/{username}", statsHandlers.HandleGithub).Methods(http.MethodGet)
	r.HandleFunc("/api/stats/codeforces/{handle}", statsHandlers.HandleCodeforces).Methods(http.MethodGet)
	r.HandleFunc("/api/stats/leetcode/{username}", statsHandlers.HandleLeetCode).Methods(http.MethodGet)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Addr, "env", cfg.Env)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(cfg Config) *slog.Logger {
	if cfg.production() {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func openAccountStore(cfg Config, logger *slog.Logger) (codeboard.AccountStore, error) {
	if cfg.DatabaseURL == "" {
		if cfg.production() {
			return nil, errors.New("CODEBOARD_DATABASE_URL is required in production")
		}
		logger.Warn("no database configured, using file store", "dir", cfg.DataDir)
		return fsstore.NewAccountStore(cfg.DataDir), nil
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := gormstore.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return gormstore.NewAccountStore(db), nil
}
