package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/voiceloop/internal/config"
	"github.com/aretw0/voiceloop/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	v       = config.New()
	cfg     *config.Config
	logger  *slog.Logger = logging.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "voiceloop",
	Short: "voiceloop is a turn controller for spoken dialogue",
	Long: `voiceloop drives a spoken conversation between a speech service and a
language model. It decides when to listen, what to say and how to react to
silence, and it keeps a snapshot of every session.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd); err != nil {
			return err
		}
		if err := config.LoadDotEnv(); err != nil {
			return err
		}
		c, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		l, err := c.Logger()
		if err != nil {
			return err
		}
		cfg, logger = c, l
		slog.SetDefault(logger)
		if c.ConfigFile != "" {
			logger.Debug("config loaded", "file", c.ConfigFile)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./voiceloop.yaml or $HOME/.voiceloop/voiceloop.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("store", config.StoreMemory, "snapshot store: memory, file or redis")
	pf.String("store-dir", "", "directory of the file store (default .voiceloop/sessions)")
	pf.String("redis-addr", "localhost:6379", "redis address for the redis store")

}

// flagKeys maps config keys to the flags that override them. Several commands
// define the same flag, so binding happens once the command is known.
var flagKeys = map[string]string{
	"log.level":             "log-level",
	"log.format":            "log-format",
	"store.kind":            "store",
	"store.dir":             "store-dir",
	"store.redis.addr":      "redis-addr",
	"dialogue.variant":      "variant",
	"dialogue.catalog_file": "menu",
	"dialogue.max_silences": "max-silences",
	"dialogue.recovery":     "recover",
	"backend":               "backend",
	"server.addr":           "addr",
	"server.metrics_addr":   "metrics-addr",
	"server.mcp_addr":       "mcp-addr",
	"server.mcp_base_url":   "base-url",
}

func bindFlags(cmd *cobra.Command) error {
	for key, name := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// addDialogueFlags registers the flags of commands that host sessions.
func addDialogueFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("variant", "ordering", "dialogue variant: ordering or chat")
	f.String("backend", config.BackendOllama, "completion backend: ollama or openai")
	f.String("model", "", "model name for the selected backend")
	f.String("menu", "", "YAML menu file (default: built-in menu)")
	f.Int("max-silences", 1, "silences re-prompted before the dialogue ends")
	f.Bool("recover", false, "continue the dialogue when the model fails")
}
