package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hearthware/souschef/pkg/cli"
)

var (
	// Global flags
	verbose      bool
	configPath   string
	contextName  string
	outputFormat string
	jqExpr       string

	// Global configuration (loaded at init time)
	globalConfig *cli.Config
)

var rootCmd = &cobra.Command{
	Use:   "souschef",
	Short: "Voice cooking assistant client and server",
	Long: `souschef - command line client and server for the voice cooking assistant.

The server ("serve") mints room tokens, accepts realtime connections, and
fans control events out to every client in a room. The client ("cook")
joins a room, follows the agent's control events — timers, recipe steps,
grocery edits, dish suggestions — and renders the cook-along state in the
terminal. Timers survive restarts: deadlines are absolute and persisted.

Configuration lives in ~/.souschef/config.yaml as named contexts
(server URL, API key/secret, default room and identity).

Examples:
  # Configure a context and make it current
  souschef config add dev --server http://localhost:8090 --api-key key --api-secret secret
  souschef config use dev

  # Run a server, then join the kitchen from another terminal
  souschef serve
  souschef cook --room home

  # Mint a token, inspect room state
  souschef token --room home --identity alice
  souschef state --room home --jq '.timers[].label'`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig, initLogging)

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&configPath, "config", "", "config file path (default ~/.souschef/config.yaml)")
	pf.StringVarP(&contextName, "context", "c", "", "context name to use")
	pf.StringVarP(&outputFormat, "output", "o", "yaml", "output format (yaml, json, raw)")
	pf.StringVar(&jqExpr, "jq", "", "jq expression applied to the output")
}

// configLoadErr stores the error from config loading for deferred reporting.
var configLoadErr error

func initConfig() {
	cfg, err := cli.LoadConfigWithPath(configPath)
	if err != nil {
		// Store error for deferred reporting. Commands that need config
		// get a clear error via GetConfig(); commands like 'version'
		// keep working without one.
		configLoadErr = err
		return
	}
	globalConfig = cfg
}

func initLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// GetConfig returns the global configuration.
func GetConfig() (*cli.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		cfg, err := cli.LoadConfigWithPath(configPath)
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

// ResolveContext returns the context selected by --context, falling back to
// the current context.
func ResolveContext() (*cli.Context, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	return cfg.ResolveContext(contextName)
}

// OutputOptions builds output options from the global flags.
func OutputOptions() cli.OutputOptions {
	return cli.OutputOptions{
		Format: cli.OutputFormat(outputFormat),
		JQ:     jqExpr,
	}
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}
