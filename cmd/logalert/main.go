package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/logalert/internal/alerting"
	"github.com/good-yellow-bee/logalert/internal/kvstore"
	"github.com/good-yellow-bee/logalert/internal/logger"
	"github.com/good-yellow-bee/logalert/pkg/buildinfo"
)

var (
	configFile string
	dbPath     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "logalert",
	Short: "logalert - alert rules for a log dashboard",
	Long: `logalert evaluates alert rules against recent log records and
notifies webhook, terminal and Kafka channels when a rule's threshold is
reached inside its time window.`,
	SilenceUsage: true,
}

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if versionJSON {
			data, _ := json.MarshalIndent(buildinfo.Get(), "", "  ")
			fmt.Println(string(data))
			return
		}
		fmt.Println(buildinfo.Get())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print build info as JSON")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(evaluateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file if one was given and applies CLI flags.
func loadConfig() (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if configFile != "" {
		cfg, err = LoadConfig(configFile)
	} else {
		cfg, err = DefaultConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	cfg.Verbose = verbose
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// openStore opens and migrates the SQLite store, creating its directory.
func openStore(path string) (*kvstore.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	store := kvstore.NewSQLiteStore(path)
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return store, nil
}

// newEngine builds an engine over store. dispatcher may be nil.
func newEngine(store kvstore.Store, dispatcher alerting.EventDispatcher, cfg *Config) *alerting.Engine {
	opts := alerting.DefaultEngineOptions()
	opts.Cooldown = cfg.Cooldown()

	repo := alerting.NewRuleRepository(store, nil)
	tracker := alerting.NewCooldownTracker(store)
	return alerting.NewEngine(repo, tracker, dispatcher, opts)
}
