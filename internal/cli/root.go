package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/bookingwatch/internal/app"
	"github.com/nhle/bookingwatch/internal/logger"
	"github.com/nhle/bookingwatch/internal/model"
	"github.com/nhle/bookingwatch/internal/source"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags and the state shared by subcommands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string

	// NewApp builds the App; tests replace it.
	NewApp func(ctx context.Context, cfg *model.AppConfig, log *zap.Logger) (*app.App, error)

	Config *model.AppConfig
}

// NewRootCommand creates the root command of the CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{
		NewApp: func(ctx context.Context, cfg *model.AppConfig, log *zap.Logger) (*app.App, error) {
			return app.New(ctx, cfg, log)
		},
	})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookingwatch",
		Short: "Booking notifications for the ServiceFinder marketplace",
		Long: `bookingwatch polls the ServiceFinder API and turns what changed since
the last poll into notifications: new booking requests, cancellations,
status updates, provider notes and new reviews.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			cfg, err := model.LoadConfig(opts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "loading config", err)
			}
			if opts.Verbose {
				cfg.Log.Level = "debug"
			}
			opts.Config = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", model.DefaultConfigPath(), "path to config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewInboxCommand(opts))
	cmd.AddCommand(NewAvailabilityCommand(opts))
	cmd.AddCommand(NewBookCommand(opts))
	cmd.AddCommand(NewCancelCommand(opts))
	cmd.AddCommand(NewStateCommand(opts))

	return cmd
}

// formatter returns the output formatter for w.
func (o *RootOptions) formatter(w io.Writer) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: w}
}

// open builds the App with a stderr logger.
func (o *RootOptions) open(ctx context.Context) (*app.App, error) {
	log, err := logger.New(o.Config.Log.Level, o.Config.Log.Dev)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "creating logger", err)
	}
	return o.openWithLogger(ctx, log)
}

func (o *RootOptions) openWithLogger(ctx context.Context, log *zap.Logger) (*app.App, error) {
	a, err := o.NewApp(ctx, o.Config, log)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "starting", err)
	}
	return a, nil
}

// openSession builds the App and restores the saved session.
func (o *RootOptions) openSession(ctx context.Context) (*app.App, error) {
	a, err := o.open(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := a.Resume(); err != nil {
		a.Close()
		return nil, classify("restoring session", err)
	}
	return a, nil
}

// classify maps session problems to ExitAuthError.
func classify(message string, err error) error {
	if errors.Is(err, app.ErrNotLoggedIn) || source.IsAuthError(err) {
		return WrapExitError(ExitAuthError, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}
