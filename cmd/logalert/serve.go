package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/logalert/internal/api"
	"github.com/good-yellow-bee/logalert/internal/api/health"
	"github.com/good-yellow-bee/logalert/internal/logger"
	"github.com/good-yellow-bee/logalert/internal/logsource"
	"github.com/good-yellow-bee/logalert/internal/metrics"
	"github.com/good-yellow-bee/logalert/internal/notifier"
	"github.com/good-yellow-bee/logalert/pkg/buildinfo"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background refresh cycle",
	RunE:  runServe,
}

// buildDispatcher registers every configured channel. The webhook channel is
// always present so its default URL can be set by a config reload.
func buildDispatcher(cfg *Config) (*notifier.Dispatcher, *notifier.WebhookNotifier, error) {
	dispatcher := notifier.NewDispatcher(cfg.dispatcherConfig())

	webhook, err := notifier.NewWebhookNotifier(notifier.WebhookConfig{
		DefaultURL: cfg.Alerting.DefaultWebhookURL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create webhook channel: %w", err)
	}
	dispatcher.Register(webhook)

	if cfg.LocalNotifications.Enabled {
		dispatcher.Register(notifier.NewLocalNotifier(notifier.NewTerminalFacility(cfg.LocalNotifications.Mode)))
	}

	if cfg.Kafka.Enabled {
		kafka, err := notifier.NewKafkaNotifier(cfg.kafkaConfig())
		if err != nil {
			dispatcher.Close()
			return nil, nil, fmt.Errorf("create kafka channel: %w", err)
		}
		dispatcher.Register(kafka)
	}

	return dispatcher, webhook, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.WithComponent("serve")
	metrics.SetBuildInfo(buildinfo.Version, buildinfo.Commit, buildinfo.BuildTime)

	store, err := openStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info().Str("path", cfg.Database.Path).Msg("database initialized")

	dispatcher, webhook, err := buildDispatcher(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dispatcher.Close(); err != nil {
			log.Warn().Err(err).Msg("closing notification channels")
		}
	}()

	engine := newEngine(store, dispatcher, cfg)

	srv, err := api.New(&api.Config{
		Address: cfg.Server.HTTPAddress,
		Verbose: cfg.Verbose,
	}, engine, dispatcher)
	if err != nil {
		return fmt.Errorf("create api server: %w", err)
	}
	srv.RegisterHealthChecker(health.NewSQLiteChecker(store.DB()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(gctx)
	})

	if cfg.Server.MetricsAddress != "" {
		ms := metrics.NewServer(cfg.Server.MetricsAddress)
		g.Go(func() error {
			return ms.Run(gctx)
		})
	}

	if cfg.LogSource.URL != "" {
		source, err := logsource.NewHTTPSource(logsource.HTTPConfig{
			URL:     cfg.LogSource.URL,
			Timeout: cfg.logSourceTimeout(),
		})
		if err != nil {
			return fmt.Errorf("create log source: %w", err)
		}
		r := newRefresher(source, engine)
		srv.RegisterHealthChecker(health.NewRefreshChecker(r.LastSuccess, 3*cfg.PollInterval()))
		g.Go(func() error {
			return r.Run(gctx, cfg.PollInterval())
		})
	} else {
		log.Info().Msg("no log source configured, evaluation only via API")
	}

	if configFile != "" {
		g.Go(func() error {
			err := watchConfig(gctx, configFile, func(c *Config) {
				applyReload(c, engine, webhook)
			})
			if err != nil {
				log.Warn().Err(err).Msg("config hot reload disabled")
			}
			return nil
		})
	}

	log.Info().
		Str("version", buildinfo.Version).
		Dur("cooldown", engine.Cooldown()).
		Strs("channels", dispatcher.Names()).
		Msg("starting logalert")

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run server: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}
