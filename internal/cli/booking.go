package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/bookingwatch/internal/model"
	"github.com/nhle/bookingwatch/internal/theme"
)

// NewAvailabilityCommand creates the availability command.
func NewAvailabilityCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "availability <provider-id>",
		Short: "List a provider's availability slots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			providerID, err := parseID("provider id", args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := rootOpts.openSession(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			slots, err := a.Availability(ctx, providerID)
			if err != nil {
				return classify("fetching availability", err)
			}

			return rootOpts.formatter(cmd.OutOrStdout()).Success(slots, formatSlots(slots))
		},
	}
}

// BookOptions holds flags for the book command.
type BookOptions struct {
	*RootOptions
	ServiceID      int64
	ProviderID     int64
	AvailabilityID int64
	At             string
	Address        string
	Notes          string
}

// NewBookCommand creates the book command.
func NewBookCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BookOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "book",
		Short: "Request a booking",
		Long: `Request a booking for a service. When --availability is given the
slot is marked as taken in the local availability cache right away.

Example:
  bookingwatch book --service 3 --at 2026-11-02T09:00:00Z --availability 41 --provider 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := time.Parse(time.RFC3339, opts.At)
			if err != nil {
				return WrapExitError(ExitCommandError, "parsing --at (RFC 3339)", err)
			}

			ctx := cmd.Context()
			a, err := opts.openSession(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			b, err := a.Book(ctx, model.BookingCreateRequest{
				ServiceID:         opts.ServiceID,
				ScheduledDateTime: model.NewLocalTime(at),
				CustomerAddress:   opts.Address,
				Notes:             opts.Notes,
				AvailabilityID:    opts.AvailabilityID,
			}, opts.ProviderID)
			if err != nil {
				return classify("creating booking", err)
			}

			return opts.formatter(cmd.OutOrStdout()).Success(b,
				fmt.Sprintf("Your booking request for %q has been submitted (booking %d, %s).",
					b.ServiceName("your service"), b.ID, b.Status))
		},
	}

	cmd.Flags().Int64Var(&opts.ServiceID, "service", 0, "service id (required)")
	cmd.Flags().StringVar(&opts.At, "at", "", "scheduled time, RFC 3339 (required)")
	cmd.Flags().Int64Var(&opts.AvailabilityID, "availability", 0, "availability slot id")
	cmd.Flags().Int64Var(&opts.ProviderID, "provider", 0, "provider id, used when the response omits it")
	cmd.Flags().StringVar(&opts.Address, "address", "", "service address")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes for the provider")
	_ = cmd.MarkFlagRequired("service")
	_ = cmd.MarkFlagRequired("at")

	return cmd
}

// NewCancelCommand creates the cancel command.
func NewCancelCommand(rootOpts *RootOptions) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel <booking-id>",
		Short: "Cancel a booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookingID, err := parseID("booking id", args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := rootOpts.openSession(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			b, err := a.Cancel(ctx, bookingID, reason)
			if err != nil {
				return classify("cancelling booking", err)
			}

			return rootOpts.formatter(cmd.OutOrStdout()).Success(b,
				fmt.Sprintf("Booking %d cancelled.", b.ID))
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "cancellation reason")
	return cmd
}

func parseID(what, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid %s %q", what, s))
	}
	return id, nil
}

func formatSlots(slots []model.AvailabilitySlot) string {
	if len(slots) == 0 {
		return "No availability."
	}

	var sb strings.Builder
	for i, s := range slots {
		state := theme.StatusStyle(model.StatusConfirmed).Render("free")
		if s.IsBooked {
			state = theme.StatusStyle(model.StatusCancelled).Render("booked")
		}
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%-6d %s - %s  %s",
			s.ID,
			s.StartDateTime.Local().Format("Mon Jan 2 15:04"),
			s.EndDateTime.Local().Format("15:04"),
			state)
	}
	return sb.String()
}
