package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/logalert/internal/alerting"
	"github.com/good-yellow-bee/logalert/internal/logsource"
	"github.com/good-yellow-bee/logalert/internal/models"
)

var evaluateFlags struct {
	file     string
	noNotify bool
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run one evaluation pass over logs read from a JSON file",
	Long: `Run one evaluation pass over log records read from a JSON file.
The file holds either an array of records or an object with a "logs" or
"data" array. Fired events are printed as JSON and, unless --no-notify is
set, sent to every configured channel. Cooldown state is recorded either way.`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVarP(&evaluateFlags.file, "file", "f", "", "JSON file with log records")
	evaluateCmd.Flags().BoolVar(&evaluateFlags.noNotify, "no-notify", false, "do not send notifications")
	_ = evaluateCmd.MarkFlagRequired("file")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	logs, err := logsource.NewFileSource(evaluateFlags.file).Fetch(ctx)
	if err != nil {
		return err
	}

	store, err := openStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	var engine *alerting.Engine
	if evaluateFlags.noNotify {
		engine = newEngine(store, nil, cfg)
	} else {
		dispatcher, _, err := buildDispatcher(cfg)
		if err != nil {
			return err
		}
		// Close waits for in-flight sends before the process exits.
		defer dispatcher.Close()
		engine = newEngine(store, dispatcher, cfg)
	}

	events := engine.Evaluate(ctx, logs)
	if events == nil {
		events = make([]*models.AlertEvent, 0)
	}

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
