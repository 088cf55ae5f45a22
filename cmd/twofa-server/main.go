package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/jwtauth/v5"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-2fa/pkg/config"
	"github.com/tendant/simple-2fa/pkg/twofa"
	"github.com/tendant/simple-2fa/pkg/twofa/api"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	config.LoadEnvFile()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		slog.Error("Failed to load config", "err", err)
		os.Exit(-1)
	}

	if _, err := api.GetSwagger(); err != nil {
		slog.Error("Embedded OpenAPI document is invalid", "err", err)
		os.Exit(-1)
	}

	var db twofa.DBTX
	if cfg.Persistence.Type == "postgres" || cfg.Persistence.Type == "postgresql" {
		dbConfig := cfg.Database.ToDbConfig()
		pool, err := dbutils.NewDbPool(context.Background(), dbConfig)
		if err != nil {
			slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
			os.Exit(-1)
		}
		if err := twofa.Migrate(context.Background(), pool); err != nil {
			slog.Error("Failed to migrate 2FA schema", "err", err)
			os.Exit(-1)
		}
		db = pool
	}

	service, cleanup, err := newTwoFactorService(cfg, db)
	if err != nil {
		slog.Error("Failed to create 2FA service", "err", err)
		os.Exit(-1)
	}
	defer cleanup()

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)

	tokenAuth := jwtauth.New("HS256", []byte(cfg.JWT.Secret), nil)
	closeRoutes := mountTwoFA(server.R, cfg, service, tokenAuth)
	defer closeRoutes()

	slog.Info("2FA service ready",
		"enabled", cfg.Enabled,
		"persistence", cfg.Persistence.Type,
		"email", cfg.Email.IsConfigured(),
		"sms", cfg.Twilio.IsConfigured())

	server.Run()
}
