// Package cli implements the agent-bridge CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/agent-bridge/internal/config"
	"github.com/rcliao/agent-bridge/internal/logging"
	"github.com/rcliao/agent-bridge/internal/store"
)

var (
	dbPath     string
	configPath string
	logLevel   string
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "agent-bridge",
	Short: "Bridge a player session to a remote AI companion",
	Long:  "A small client for the AI companion backend: free chat, a guided calendar-event dialogue, and a local SQLite memory of preferences and conversation.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Configure(logging.Config{Level: logLevel, Output: os.Stderr})
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $AGENT_BRIDGE_DB or ~/.agent-bridge/bridge.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: config log_level)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

// loadConfig layers the persistent flags over file and environment settings.
func loadConfig() config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logging.Configure(logging.Config{Level: cfg.LogLevel, Output: os.Stderr})
	return cfg
}

func openStore(cfg config.Config) (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.DBPath)
}

func printJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
