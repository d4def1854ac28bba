// Package cli implements the metabo command-line interface: search and
// lookup commands over the compound store, schema migrations and a small
// load generator for the search strategies.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/metabo-search/internal/config"
	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/metabo-search/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	NoColor      bool
	Timeout      time.Duration
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	OutputFormat string
	NoColor      bool
	Timeout      time.Duration
}

// NewRootCommand creates the root command with its global flags and every
// subcommand.  factory builds the search runtime on demand so that commands
// which never touch the store (version, help) need no database.
func NewRootCommand(factory RuntimeFactory) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "metabo",
		Short: "Compound search over a metabolite and drug entity store",
		Long: "metabo searches compounds by identifier, molecular formula, substructure\n" +
			"and fingerprint similarity, and resolves compound details, vocabulary terms\n" +
			"and literature references.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./metabo.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "text", "output format (text, json)")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "global operation timeout")

	cmd.AddCommand(
		newSearchCmd(factory),
		newCompoundCmd(factory),
		newPublicationsCmd(factory),
		newAutocompleteCmd(factory),
		newTermsCmd(factory),
		newMigrateCmd(),
		newBenchCmd(factory),
	)

	return cmd
}

// persistentPreRun loads config, builds the logger and stores CLIContext.
func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	switch strings.ToLower(opts.OutputFormat) {
	case outputText, outputJSON:
	default:
		return errors.Newf(errors.ErrCodeValidation, "unsupported output format %q (must be text|json)", opts.OutputFormat)
	}

	cfg, err := initConfig(opts)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger, err := initLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}
	logging.SetDefault(logger)

	if opts.NoColor {
		color.NoColor = true
	}

	cliCtx := &CLIContext{
		Config:       cfg,
		Logger:       logger,
		OutputFormat: strings.ToLower(opts.OutputFormat),
		NoColor:      opts.NoColor,
		Timeout:      opts.Timeout,
	}

	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cliCtx))
	return nil
}

// initConfig loads configuration with priority: env > file > defaults.
func initConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}

	searchPaths := []string{"./metabo.yaml"}
	if homeDir, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(homeDir, ".metabo", "config.yaml"))
	}
	searchPaths = append(searchPaths, "/etc/metabo/config.yaml")

	for _, p := range searchPaths {
		if _, statErr := os.Stat(p); statErr == nil {
			return config.Load(p)
		}
	}

	return config.LoadFromEnv()
}

// initLogger creates a console logger on stderr so stdout stays parseable.
func initLogger(cfg *config.Config, opts *RootOptions) (logging.Logger, error) {
	level := cfg.Log.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}

	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// GetCLIContext extracts CLIContext from a cobra command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "command context is nil")
	}

	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "CLIContext not found in command context")
	}
	return cliCtx, nil
}

// commandContext bounds cmd's context by the global timeout.
func commandContext(cmd *cobra.Command, cliCtx *CLIContext) (context.Context, context.CancelFunc) {
	if cliCtx.Timeout <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), cliCtx.Timeout)
}

// Execute is the main entry point for the CLI application.
func Execute() error {
	rootCmd := NewRootCommand(NewRuntime)

	if err := rootCmd.Execute(); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}
