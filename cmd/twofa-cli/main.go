package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/tendant/simple-2fa/pkg/config"
	"github.com/tendant/simple-2fa/pkg/otpsession"
	"github.com/tendant/simple-2fa/pkg/twofaclient"
)

func main() {
	// Logs go to stderr and stay quiet so they don't interleave with the prompt.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	config.LoadEnvFile()

	method := flag.String("method", "", "Start a flow right away: email, phone_number or google_authenticator")
	flow := flag.String("flow", "login", "Flow kind: login or enable")
	destination := flag.String("destination", "", "Address shown in the prompt for delivered codes")
	qrOut := flag.String("qr-out", "", "Write the authenticator QR code as PNG to this file")
	flag.Parse()

	cfg, err := config.LoadClientConfig()
	if err != nil {
		slog.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	if cfg.Token == "" {
		fmt.Fprintln(os.Stderr, "Warning: TWOFA_TOKEN is empty, requests will be rejected")
	}

	client, err := twofaclient.New(cfg.BaseURL,
		twofaclient.WithToken(cfg.Token),
		twofaclient.WithAuthScheme(cfg.AuthScheme))
	if err != nil {
		slog.Error("Failed to create 2FA client", "err", err)
		os.Exit(1)
	}

	var store otpsession.IssuedAtStore = otpsession.NewMemoryIssuedAtStore()
	if cfg.StoreDir != "" {
		fileStore, err := otpsession.NewFileIssuedAtStore(cfg.StoreDir)
		if err != nil {
			slog.Error("Failed to open issued-at store", "dir", cfg.StoreDir, "err", err)
			os.Exit(1)
		}
		store = fileStore
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s := newSession(os.Stdout, client, *qrOut,
		otpsession.WithStore(store),
		otpsession.WithWindow(cfg.Window),
		otpsession.WithAccount(cfg.Account))
	defer s.close()

	if *method != "" {
		if err := s.start(ctx, *method, *flow, *destination); err != nil {
			s.printf("! %v\n", err)
		}
	} else {
		s.printf("Type \"start <method> [login|enable]\" to begin, or \"help\".\n")
	}
	s.run(ctx, os.Stdin)
}
