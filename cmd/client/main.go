package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/entitykeeper/internal/buildinfo"
	"github.com/dmitrijs2005/entitykeeper/internal/client/api"
	"github.com/dmitrijs2005/entitykeeper/internal/client/artifacts"
	"github.com/dmitrijs2005/entitykeeper/internal/client/cli"
	"github.com/dmitrijs2005/entitykeeper/internal/client/config"
	"github.com/dmitrijs2005/entitykeeper/internal/client/metrics"
	"github.com/dmitrijs2005/entitykeeper/internal/client/session"
	"github.com/dmitrijs2005/entitykeeper/internal/client/storage"
	"github.com/dmitrijs2005/entitykeeper/internal/logging"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logging.NewLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && ctx.Err() == nil {
		log.Error(ctx, "client stopped", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logging.Logger) error {
	policy, err := session.ParsePolicy(cfg.TokenPolicy)
	if err != nil {
		return err
	}

	db, err := storage.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open session database: %w", err)
	}
	defer db.Close()

	// sign-in and refresh bypass the gateway
	authClient := api.NewAuthClient(cfg.APIBaseURL, &http.Client{Timeout: cfg.RequestTimeout})
	store := session.NewStore(db, authClient,
		session.WithPolicy(policy),
		session.WithLeeway(cfg.TokenLeeway),
		session.WithLogger(log.With("component", "session")),
	)

	gatewayOpts := []api.GatewayOption{api.WithGatewayLogger(log.With("component", "gateway"))}
	if cfg.MetricsAddr != "" {
		collector := metrics.New()
		gatewayOpts = append(gatewayOpts, api.WithObserver(collector))
		defer collector.Track(ctx, store)()
		go func() {
			if err := collector.Serve(ctx, cfg.MetricsAddr, log); err != nil {
				log.Error(ctx, "metrics server", "error", err)
			}
		}()
	}
	gateway := api.NewGateway(store, gatewayOpts...)

	sink, err := artifacts.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("artifact sink: %w", err)
	}

	if !storage.IsMemory(cfg.DatabasePath) {
		go func() {
			if err := store.Watch(ctx, cfg.DatabasePath); err != nil {
				log.Warn(ctx, "cross-process session updates disabled", "error", err)
			}
		}()
	}

	app := cli.NewApp(cli.Deps{
		Session:   store,
		Registrar: authClient,
		Entities:  api.NewClient(cfg.APIBaseURL, gateway.HTTPClient(cfg.RequestTimeout)),
		Sink:      sink,
		Logger:    log.With("component", "cli"),
	}, os.Stdin, os.Stdout)

	return app.Run(ctx)
}
