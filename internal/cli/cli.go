// Package cli provides the command-line interface for flagsim.
//
// flagsim drives the flagcube engine over a simulated dataset: it declares a
// set of clip agents over one shared store, runs them time slot by time slot
// and prints the resulting report.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/flagcube"
	"github.com/hupe1980/flagcube/codec"
	"github.com/hupe1980/flagcube/internal/config"
	"github.com/hupe1980/flagcube/internal/fs"
)

// Exit codes.
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitResource   = 2
	ExitInternal   = 3
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "dev"
	BuildDate = "unknown"
)

// CLI holds the command-line interface state.
type CLI struct {
	rootCmd *cobra.Command
	cfg     *config.Config
	out     io.Writer
	errOut  io.Writer
	fs      fs.FileSystem

	// Global flags
	configPath string
	jsonOutput bool
	quiet      bool
	logLevel   string
}

// New creates a new CLI instance writing to stdout and stderr.
func New() *CLI {
	return NewWithOutput(os.Stdout, os.Stderr)
}

// NewWithOutput creates a CLI writing results to out and diagnostics to
// errOut.
func NewWithOutput(out, errOut io.Writer) *CLI {
	c := &CLI{out: out, errOut: errOut, fs: fs.Default}
	c.rootCmd = c.newRootCmd()
	return c
}

// SetFileSystem replaces the file system used for output files.
func (c *CLI) SetFileSystem(fsys fs.FileSystem) {
	c.fs = fsys
}

// SetArgs overrides the command-line arguments.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// Execute runs the CLI and returns the process exit code.
func (c *CLI) Execute() int {
	return c.ExecuteContext(context.Background())
}

// ExecuteContext is Execute with a context for cancelling a run.
func (c *CLI) ExecuteContext(ctx context.Context) int {
	if err := c.rootCmd.ExecuteContext(ctx); err != nil {
		c.errorf("flagsim: %v\n", err)
		return exitCode(err)
	}
	return ExitSuccess
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, flagcube.ErrMemoryLimitExceeded), errors.Is(err, flagcube.ErrCapacityExceeded):
		return ExitResource
	case errors.Is(err, errValidation),
		errors.Is(err, flagcube.ErrInvalidShape),
		errors.Is(err, flagcube.ErrInvalidMask):
		return ExitValidation
	default:
		return ExitInternal
	}
}

var errValidation = errors.New("invalid configuration")

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flagsim",
		Short: "flagsim - multi-agent flagging simulator",
		Long: `flagsim runs flagging agents over a simulated visibility dataset.

Every agent shares one bit-packed flag store. Pre-existing flags are loaded
per time slot, agents raise and clear their own flags, and the merged result
is published back and summarised in a report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig()
		},
	}
	cmd.SetOut(c.out)
	cmd.SetErr(c.errOut)

	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ~/.flagsim/config.yaml)")
	cmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "machine-readable output")
	cmd.PersistentFlags().BoolVar(&c.quiet, "quiet", false, "suppress non-essential output")
	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level (overrides config)")

	cmd.AddCommand(c.newRunCmd())
	cmd.AddCommand(c.newEstimateCmd())
	cmd.AddCommand(c.newConfigCmd())
	cmd.AddCommand(c.newVersionCmd())

	return cmd
}

func (c *CLI) initConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("%w: %w", errValidation, err)
	}
	c.cfg = cfg

	if c.logLevel != "" {
		c.cfg.Logging.Level = c.logLevel
	}
	return nil
}

// logger builds the engine logger from the logging config.
func (c *CLI) logger() (*flagcube.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.cfg.Logging.Level)); err != nil {
		return nil, fmt.Errorf("%w: logging.level: %w", errValidation, err)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(c.cfg.Logging.Format) {
	case "json":
		return flagcube.NewLogger(slog.NewJSONHandler(c.errOut, opts)), nil
	case "", "text":
		return flagcube.NewLogger(slog.NewTextHandler(c.errOut, opts)), nil
	default:
		return nil, fmt.Errorf("%w: unknown logging.format %q", errValidation, c.cfg.Logging.Format)
	}
}

// output encodes v with the configured codec.
func (c *CLI) output(v any) error {
	enc, err := codec.ByName(c.cfg.Output.Codec)
	if err != nil {
		enc = codec.Default
	}
	return enc.Encode(c.out, v)
}

func (c *CLI) printf(format string, args ...any) {
	if !c.quiet {
		fmt.Fprintf(c.out, format, args...)
	}
}

func (c *CLI) errorf(format string, args ...any) {
	fmt.Fprintf(c.errOut, format, args...)
}
