// Package cmd assembles and runs the bot: configuration, logging, optional
// order archive, flow registry, engine, and transport.
package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/ventaflow/ventabot/core/config"
	"github.com/ventaflow/ventabot/core/document"
	"github.com/ventaflow/ventabot/core/engine"
	"github.com/ventaflow/ventabot/core/engine/session"
	"github.com/ventaflow/ventabot/core/flows"
	"github.com/ventaflow/ventabot/core/logger"
	"github.com/ventaflow/ventabot/core/mailer"
	"github.com/ventaflow/ventabot/core/sender"
	"github.com/ventaflow/ventabot/core/storage"
	"github.com/ventaflow/ventabot/core/transport"
	"github.com/ventaflow/ventabot/core/verify"
)

// Options describe how to locate configuration.
type Options struct {
	ConfigEnvVar      string
	DefaultConfigPath string
}

// Run loads configuration and starts the bot until SIGINT/SIGTERM.
func Run(opts Options) error {
	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	cfgPath := os.Getenv(env)
	if cfgPath == "" {
		cfgPath = opts.DefaultConfigPath
	}
	if cfgPath == "" {
		return fmt.Errorf("cmd: config path not provided via %s or DefaultConfigPath", env)
	}

	startedAt := time.Now()
	log.Printf("loading config: %s", cfgPath)
	cfg, err := coreconfig.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}

	if err := logger.InitLogger(cfg); err != nil {
		return fmt.Errorf("cmd: logger init failed: %w", err)
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	// The order archive is optional: without a database host the bot runs
	// with conversation features only.
	var archive *storage.Orders
	var db *sqlx.DB
	if cfg.Database.Host != "" {
		db, err = storage.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("cmd: database initialization failed: %w", err)
		}
		defer db.Close()
		if err := storage.RunMigrations(cfg.Database); err != nil {
			return fmt.Errorf("cmd: migrations failed: %w", err)
		}
		archive = storage.NewOrders(db)
	} else {
		logger.Info(logger.Background(), "app", "archive.disabled")
	}

	reg, err := flows.Build(flows.Deps{
		Verifier: verify.NewClient(cfg.Verification),
		Mailer:   mailer.NewSMTP(cfg.SMTP),
		Renderer: document.NewPDFRenderer(),
		Archive:  archive,
		Pricing:  cfg.Pricing,
		Contact:  cfg.Contact,
	})
	if err != nil {
		return fmt.Errorf("cmd: flow registry build failed: %w", err)
	}

	dispatcher := sender.NewDispatcher(sender.Options{})
	defer dispatcher.Close()

	provider, err := transport.NewTelegram(cfg, dispatcher)
	if err != nil {
		return fmt.Errorf("cmd: transport build failed: %w", err)
	}

	eng := engine.New(reg, session.NewMemoryStore(), provider, engine.Config{
		SessionTTL:    cfg.Engine.SessionTTL,
		SweepInterval: cfg.Engine.SweepInterval,
		MailboxSize:   cfg.Engine.MailboxSize,
	})
	defer eng.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	eng.Start(ctx)

	logger.Info(ctx, "app", "ready",
		slog.Int("flows", len(reg.Names())),
		slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
	)

	err = provider.Start(ctx, eng)
	logger.Info(logger.Background(), "app", "shutdown")
	return err
}
