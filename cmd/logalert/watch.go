package main

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/good-yellow-bee/logalert/internal/alerting"
	"github.com/good-yellow-bee/logalert/internal/logger"
	"github.com/good-yellow-bee/logalert/internal/notifier"
)

// watchConfig reloads path whenever it changes and passes the new config
// to onChange. A file that fails to load or validate is logged and the
// previous settings stay active. It runs until ctx is canceled.
func watchConfig(ctx context.Context, path string, onChange func(*Config)) error {
	log := logger.WithComponent("config")
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Editors save by renaming a temp file over the original, which drops a
	// watch on the file itself. Watching the directory survives that.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	log.Info().Str("path", path).Msg("watching config for changes")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			// A rename into place arrives as Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := LoadConfig(path)
			if err != nil {
				log.Error().Err(err).Str("path", path).Msg("config reload failed, keeping previous settings")
				continue
			}

			log.Info().Str("path", path).Msg("config reloaded")
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("config watcher error")
		}
	}
}

// applyReload pushes the settings that can change at runtime into the
// running engine and webhook channel.
func applyReload(cfg *Config, engine *alerting.Engine, webhook *notifier.WebhookNotifier) {
	engine.SetCooldown(cfg.Cooldown())
	if webhook != nil {
		webhook.SetDefaultURL(cfg.Alerting.DefaultWebhookURL)
	}
	log := logger.WithComponent("config")
	log.Info().
		Int("cooldown_minutes", cfg.Alerting.CooldownMinutes).
		Bool("default_webhook", cfg.Alerting.DefaultWebhookURL != "").
		Msg("runtime settings applied")
}
