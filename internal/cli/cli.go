package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/icewatch/ticketwatch/internal/config"
	"github.com/icewatch/ticketwatch/internal/logger"
)

const (
	ExitSuccess = 0
	ExitError   = 1
	ExitChanges = 2
)

// Version is set at build time with -ldflags "-X ...cli.Version=..."
var Version = "dev"

var (
	flagConfig   string
	flagDryRun   bool
	flagLogLevel string
)

// exitError carries a non-zero exit code without an error message
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// NewRootCmd creates the root command. Without a subcommand it behaves like
// run.
func NewRootCmd() *cobra.Command {
	runCmd := newRunCmd()

	cmd := &cobra.Command{
		Use:   "ticketwatch",
		Short: "Watch the club ticket page and notify Telegram subscribers",
		Long: `Watches the hockey club's ticket page and notifies subscribed
Telegram chats when tickets for a new match go on sale or a match
disappears from the page.`,
		RunE:          runCmd.RunE,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", os.Getenv("CONFIG_PATH"), "Path to a YAML config file (or env: CONFIG_PATH)")
	cmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "Print messages instead of sending them")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn or error")
	cmd.Flags().AddFlagSet(runCmd.Flags())

	cmd.AddCommand(runCmd, newCheckCmd(), newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}

// loadConfig reads the configuration, applies flag overrides, validates it
// and installs the default logger. dryRun forces dry-run mode on top of the
// flag.
func loadConfig(dryRun bool) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDryRun || dryRun {
		cfg.DryRun = true
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.SetDefault(logger.New(cfg.Level(), os.Stderr))
	return cfg, nil
}

// Execute runs the CLI
func Execute() {
	err := NewRootCmd().Execute()
	_ = logger.Default().Sync()

	var exit *exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}
