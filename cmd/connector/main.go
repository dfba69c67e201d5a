// The connector relays Stripe billing events into QuickBooks Online.
// Webhook deliveries are verified, queued in Redis, and drained by a
// worker pool that drives the ledger through a generalized CRUD gateway.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/solarix/connector/pkg/adapters"
	"github.com/solarix/connector/pkg/config"
	"github.com/solarix/connector/pkg/connector"
	zerologadapter "github.com/solarix/connector/pkg/connector/logger/zerolog"
	prommetrics "github.com/solarix/connector/pkg/connector/metrics/prometheus"
	"github.com/solarix/connector/pkg/dispatch"
	"github.com/solarix/connector/pkg/intuit"
	"github.com/solarix/connector/pkg/mail"
	"github.com/solarix/connector/pkg/queue"
	"github.com/solarix/connector/pkg/server"
	"github.com/solarix/connector/pkg/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "connector: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	zl := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.Env == "development" {
		zl = zl.Output(zerolog.ConsoleWriter{Out: os.Stdout}).Level(zerolog.DebugLevel)
	} else {
		zl = zl.Level(zerolog.InfoLevel)
	}
	logger := zerologadapter.NewLogger(zl)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := prommetrics.NewMetrics(registry, "connector")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	store, err := intuit.NewTokenStore(rdb, intuit.DefaultTokenKey)
	if err != nil {
		return err
	}

	var alerts intuit.AlertSender
	if cfg.Mail.AdminAddress != "" {
		mailer, err := mail.NewMailer(mail.Config{
			Host:         cfg.Mail.Host,
			Port:         cfg.Mail.Port,
			Username:     cfg.Mail.Username,
			Password:     cfg.Mail.Password,
			FromAddress:  cfg.Mail.FromAddress,
			FromName:     cfg.Mail.FromName,
			AdminAddress: cfg.Mail.AdminAddress,
			Logger:       logger,
		})
		if err != nil {
			return err
		}
		alerts = mailer
	} else {
		logger.Warn("admin alert address not configured, alerts disabled")
	}

	auth, err := intuit.NewAuthorizer(intuit.AuthorizerConfig{
		ClientID:       cfg.Intuit.ClientID,
		ClientSecret:   cfg.Intuit.ClientSecret,
		TokenURL:       cfg.Intuit.TokenURL,
		RedirectURL:    cfg.Intuit.RedirectURL,
		ReauthorizeURL: cfg.Routes.Root + cfg.Routes.Prefix + "/intuit/authorize",
		Store:          store,
		Alerts:         alerts,
		Logger:         logger,
		Metrics:        metrics,
	})
	if err != nil {
		return err
	}

	ledger, err := intuit.NewClient(intuit.ClientConfig{
		BaseURL:      cfg.Intuit.APIBaseURL,
		CompanyID:    cfg.Intuit.CompanyID,
		MinorVersion: cfg.Intuit.MinorVersion,
		Auth:         auth,
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		return err
	}

	products, err := dispatch.NewStripeProducts(cfg.Stripe.Secret)
	if err != nil {
		return err
	}

	service, err := dispatch.NewService(dispatch.ServiceConfig{
		Ledger:   ledger,
		Products: products,
		Account: adapters.AccountRef{
			ID:   cfg.Intuit.Account.ID,
			Name: cfg.Intuit.Account.Name,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	queueCfg := queue.DefaultConfig()
	queueCfg.Name = cfg.Queue.Name
	queueCfg.Attempts = cfg.Queue.Attempts
	queueCfg.Backoff = cfg.Queue.Backoff
	queueCfg.Delay = cfg.Queue.Delay
	q, err := queue.New(rdb, queueCfg)
	if err != nil {
		return err
	}

	worker := queue.NewWorker(q, service.Registry(), queue.WorkerConfig{
		Concurrency: cfg.Queue.Concurrency,
		Logger:      logger,
		Metrics:     metrics,
	})

	hook, err := webhook.NewHandler(webhook.Config{
		SigningSecret: cfg.Stripe.WebhookSecret,
		Queue:         q,
		Logger:        logger,
		Metrics:       metrics,
	})
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Prefix:            cfg.Routes.Prefix,
		StripeWebhookPath: cfg.Routes.StripeWebhook,
		Webhook:           hook,
		Auth:              auth,
		Ledger:            ledger,
		ConsentURL:        cfg.AuthorizeConsentURL,
		Registry:          registry,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	scheduler := intuit.NewScheduler(auth, ledger,
		cfg.Intuit.RefreshInterval, cfg.Intuit.HealthcheckInterval, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return worker.Run(ctx)
	})
	g.Go(func() error {
		scheduler.Run(ctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("http server listening",
			connector.Field{Key: "addr", Value: httpServer.Addr})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	logger.Info("connector stopped")
	return nil
}
