package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/bookingwatch/internal/app"
	"github.com/nhle/bookingwatch/internal/logger"
	"github.com/nhle/bookingwatch/internal/model"
)

// WatchOptions holds flags for the watch and inbox commands.
type WatchOptions struct {
	*RootOptions
	MetricsAddr string
	Duration    time.Duration
}

// NewWatchCommand creates the watch command, which prints notifications
// as they are synthesized.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll for changes and print notifications as they happen",
		Long: `Start the pollers for the signed-in user and print each new
notification on its own line until interrupted.

Example:
  bookingwatch watch
  bookingwatch watch --format json --metrics-addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if opts.Duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.Duration)
				defer cancel()
			}

			a, err := opts.openSession(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if srv := serveMetrics(opts.metricsAddr(), a.Log); srv != nil {
				defer srv.Close()
			}

			return streamNotifications(ctx, a, opts.formatter(cmd.OutOrStdout()))
		},
	}

	opts.bindFlags(cmd)
	return cmd
}

// NewInboxCommand creates the inbox command, the interactive view of the
// same pollers.
func NewInboxCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Poll for changes and browse notifications interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// The terminal belongs to the UI, so logs go to a file.
			logPath := filepath.Join(filepath.Dir(opts.ConfigPath), "bookingwatch.log")
			log, err := logger.ToFile(logPath, opts.Config.Log.Level)
			if err != nil {
				return WrapExitError(ExitFailure, "opening log file", err)
			}
			defer log.Sync()

			a, err := opts.openWithLogger(ctx, log)
			if err != nil {
				return err
			}
			defer a.Close()
			if _, err := a.Resume(); err != nil {
				return classify("restoring session", err)
			}

			if srv := serveMetrics(opts.metricsAddr(), log); srv != nil {
				defer srv.Close()
			}
			if err := a.Watch(ctx); err != nil {
				return classify("starting pollers", err)
			}

			p := tea.NewProgram(app.NewModel(a), tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return WrapExitError(ExitFailure, "running inbox", err)
			}
			return nil
		},
	}

	opts.bindFlags(cmd)
	return cmd
}

func (o *WatchOptions) bindFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides config)")
	cmd.Flags().DurationVar(&o.Duration, "for", 0, "stop after this long (0 runs until interrupted)")
}

func (o *WatchOptions) metricsAddr() string {
	if o.MetricsAddr != "" {
		return o.MetricsAddr
	}
	return o.Config.Metrics.Addr
}

// streamNotifications starts the pollers and writes every notification
// once, oldest first, until ctx is done.
func streamNotifications(ctx context.Context, a *app.App, out *OutputFormatter) error {
	changes := a.Inbox.Subscribe()
	if err := a.Watch(ctx); err != nil {
		return classify("starting pollers", err)
	}

	printed := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
		}

		list := a.Inbox.List()
		for i := len(list) - 1; i >= 0; i-- {
			n := list[i]
			if printed[n.ID] {
				continue
			}
			printed[n.ID] = true
			if err := out.Line(n, formatNotification(n)); err != nil {
				return WrapExitError(ExitFailure, "writing output", err)
			}
		}
	}
}

func formatNotification(n model.Notification) string {
	return fmt.Sprintf("%s  %-20s %s: %s",
		n.CreatedAt.Format(time.TimeOnly), n.Type, n.Title, n.Message)
}

// serveMetrics exposes /metrics on addr. It returns nil when addr is empty.
func serveMetrics(addr string, log *zap.Logger) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
	return srv
}
