package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/logalert/internal/alerting"
	"github.com/good-yellow-bee/logalert/internal/models"
	"github.com/good-yellow-bee/logalert/internal/notifier"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage alert rules",
}

var rulesJSON bool

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alert rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, engine *alerting.Engine) error {
			return printRules(ctx, cmd.OutOrStdout(), engine, rulesJSON)
		})
	},
}

var ruleFlags struct {
	name       string
	severities []string
	source     string
	message    string
	threshold  int
	window     int
	webhook    string
	disabled   bool
}

var rulesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an alert rule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := ruleInputFromFlags(cmd)
		if in.WebhookURL != nil && *in.WebhookURL != "" {
			if err := notifier.ValidateWebhookURL(*in.WebhookURL); err != nil {
				return err
			}
		}
		return withEngine(func(ctx context.Context, engine *alerting.Engine) error {
			rule, err := engine.Rules().Add(ctx, in)
			if err != nil {
				return fmt.Errorf("add rule: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added rule %s (%s)\n", rule.ID, rule.Name)
			return nil
		})
	},
}

var rulesRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an alert rule and its cooldown entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, engine *alerting.Engine) error {
			if err := engine.RemoveRule(ctx, args[0]); err != nil {
				return fmt.Errorf("remove rule: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed rule %s\n", args[0])
			return nil
		})
	},
}

var rulesEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable an alert rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRuleEnabled(cmd.OutOrStdout(), args[0], true)
	},
}

var rulesDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable an alert rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRuleEnabled(cmd.OutOrStdout(), args[0], false)
	},
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Add every rule defined in a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs, err := alerting.LoadRuleInputsFromFile(args[0])
		if err != nil {
			return err
		}
		return withEngine(func(ctx context.Context, engine *alerting.Engine) error {
			return importRules(ctx, cmd.OutOrStdout(), engine.Rules(), inputs)
		})
	},
}

func init() {
	rulesListCmd.Flags().BoolVar(&rulesJSON, "json", false, "print rules as JSON")

	f := rulesAddCmd.Flags()
	f.StringVar(&ruleFlags.name, "name", "", "rule name")
	f.StringSliceVar(&ruleFlags.severities, "severity", nil, "severity to match (repeatable, empty matches all)")
	f.StringVar(&ruleFlags.source, "source", "", "case-insensitive substring of the log source")
	f.StringVar(&ruleFlags.message, "message", "", "case-insensitive substring of the log message")
	f.IntVar(&ruleFlags.threshold, "threshold", models.DefaultThreshold, "matches needed to fire")
	f.IntVar(&ruleFlags.window, "window", models.DefaultWindowMinutes, "window length in minutes")
	f.StringVar(&ruleFlags.webhook, "webhook", "", "webhook URL for this rule")
	f.BoolVar(&ruleFlags.disabled, "disabled", false, "create the rule disabled")

	rulesCmd.AddCommand(rulesListCmd, rulesAddCmd, rulesRemoveCmd, rulesEnableCmd, rulesDisableCmd, rulesImportCmd)
}

// withEngine opens the store and runs fn with an engine that has no channels.
func withEngine(fn func(ctx context.Context, engine *alerting.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(context.Background(), newEngine(store, nil, cfg))
}

// ruleInputFromFlags sets only the fields the user passed, leaving the rest
// to the repository defaults.
func ruleInputFromFlags(cmd *cobra.Command) models.RuleInput {
	var in models.RuleInput
	f := cmd.Flags()
	if f.Changed("name") {
		in.Name = &ruleFlags.name
	}
	if f.Changed("severity") {
		in.Severities = ruleFlags.severities
	}
	if f.Changed("source") {
		in.SourceIncludes = &ruleFlags.source
	}
	if f.Changed("message") {
		in.MessageIncludes = &ruleFlags.message
	}
	if f.Changed("threshold") {
		in.Threshold = &ruleFlags.threshold
	}
	if f.Changed("window") {
		in.WindowMinutes = &ruleFlags.window
	}
	if f.Changed("webhook") {
		in.WebhookURL = &ruleFlags.webhook
	}
	if f.Changed("disabled") {
		enabled := !ruleFlags.disabled
		in.Enabled = &enabled
	}
	return in
}

func setRuleEnabled(out io.Writer, id string, enabled bool) error {
	return withEngine(func(ctx context.Context, engine *alerting.Engine) error {
		if _, ok := engine.Rules().Get(ctx, id); !ok {
			return fmt.Errorf("rule %s not found", id)
		}
		if err := engine.Rules().SetEnabled(ctx, id, enabled); err != nil {
			return fmt.Errorf("update rule: %w", err)
		}
		state := "disabled"
		if enabled {
			state = "enabled"
		}
		fmt.Fprintf(out, "%s rule %s\n", state, id)
		return nil
	})
}

func importRules(ctx context.Context, out io.Writer, repo *alerting.RuleRepository, inputs []models.RuleInput) error {
	for i, in := range inputs {
		if in.WebhookURL != nil && *in.WebhookURL != "" {
			if err := notifier.ValidateWebhookURL(*in.WebhookURL); err != nil {
				return fmt.Errorf("rule %d: %w", i+1, err)
			}
		}
	}
	for _, in := range inputs {
		rule, err := repo.Add(ctx, in)
		if err != nil {
			return fmt.Errorf("add rule: %w", err)
		}
		fmt.Fprintf(out, "added rule %s (%s)\n", rule.ID, rule.Name)
	}
	return nil
}

type ruleRow struct {
	*models.AlertRule
	LastFiredAt *time.Time `json:"lastFiredAt,omitempty"`
}

func printRules(ctx context.Context, out io.Writer, engine *alerting.Engine, asJSON bool) error {
	rules := engine.Rules().List(ctx)
	rows := make([]ruleRow, 0, len(rules))
	for _, r := range rules {
		row := ruleRow{AlertRule: r}
		if t, ok := engine.LastFired(ctx, r.ID); ok {
			row.LastFiredAt = &t
		}
		rows = append(rows, row)
	}

	if asJSON {
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(rows) == 0 {
		fmt.Fprintln(out, "no rules defined")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tENABLED\tTHRESHOLD\tWINDOW\tSEVERITIES\tLAST FIRED")
	for _, row := range rows {
		severities := "*"
		if len(row.Severities) > 0 {
			severities = strings.Join(row.Severities, ",")
		}
		lastFired := "-"
		if row.LastFiredAt != nil {
			lastFired = row.LastFiredAt.Local().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%dm\t%s\t%s\n",
			row.ID, row.Name, row.Enabled, row.Threshold, row.WindowMinutes, severities, lastFired)
	}
	return w.Flush()
}
