package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/bookingwatch/internal/dedup"
	"github.com/nhle/bookingwatch/internal/model"
)

// NewStateCommand creates the state command group for inspecting the
// persisted de-duplication state.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset what the pollers have already seen",
	}

	var userID int64

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the seen ids and last statuses per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := rootOpts.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			uid, err := resolveUser(a.Vault.LoadSession, userID)
			if err != nil {
				return err
			}

			summary := make(map[dedup.Category]stateSummary, len(dedup.Categories))
			var lines []string
			for _, cat := range dedup.Categories {
				s := summarize(a.Dedup.Load(ctx, uid, cat))
				summary[cat] = s
				lines = append(lines, fmt.Sprintf("%-26s %s", cat, s))
			}

			return rootOpts.formatter(cmd.OutOrStdout()).Success(summary,
				fmt.Sprintf("user %d\n%s", uid, strings.Join(lines, "\n")))
		},
	}
	show.Flags().Int64Var(&userID, "user", 0, "user id (defaults to the signed-in user)")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget everything seen, so the next poll seeds again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := rootOpts.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			uid, err := resolveUser(a.Vault.LoadSession, userID)
			if err != nil {
				return err
			}
			a.Dedup.Clear(ctx, uid)

			return rootOpts.formatter(cmd.OutOrStdout()).Success(nil,
				fmt.Sprintf("Cleared state for user %d.", uid))
		},
	}
	clearCmd.Flags().Int64Var(&userID, "user", 0, "user id (defaults to the signed-in user)")

	users := &cobra.Command{
		Use:   "users",
		Short: "List users with persisted state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := rootOpts.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			ids := a.Dedup.Users(ctx)
			text := make([]string, len(ids))
			for i, id := range ids {
				text[i] = fmt.Sprint(id)
			}
			if len(text) == 0 {
				text = []string{"No state stored."}
			}
			return rootOpts.formatter(cmd.OutOrStdout()).Success(ids, strings.Join(text, "\n"))
		},
	}

	cmd.AddCommand(show, clearCmd, users)
	return cmd
}

// resolveUser returns explicit when set, otherwise the signed-in user.
func resolveUser(load func() (*model.Session, error), explicit int64) (int64, error) {
	if explicit > 0 {
		return explicit, nil
	}
	sess, err := load()
	if err != nil {
		return 0, WrapExitError(ExitAuthError, "no --user given and not logged in", err)
	}
	return sess.UserID, nil
}

type stateSummary struct {
	SeenBookings []int64                       `json:"seenBookings,omitempty"`
	LastStatus   map[int64]model.BookingStatus `json:"lastStatus,omitempty"`
	SeenRatings  []int64                       `json:"seenRatings,omitempty"`
	NotesTracked int                           `json:"notesTracked,omitempty"`
}

func summarize(st dedup.State) stateSummary {
	return stateSummary{
		SeenBookings: sortedIDs(st.SeenBookings),
		LastStatus:   st.LastStatus,
		SeenRatings:  sortedIDs(st.SeenRatings),
		NotesTracked: len(st.LastNotes),
	}
}

func (s stateSummary) String() string {
	var parts []string
	if len(s.SeenBookings) > 0 {
		parts = append(parts, fmt.Sprintf("%d bookings seen", len(s.SeenBookings)))
	}
	if len(s.LastStatus) > 0 {
		parts = append(parts, fmt.Sprintf("%d statuses", len(s.LastStatus)))
	}
	if len(s.SeenRatings) > 0 {
		parts = append(parts, fmt.Sprintf("%d ratings seen", len(s.SeenRatings)))
	}
	if s.NotesTracked > 0 {
		parts = append(parts, fmt.Sprintf("%d notes", s.NotesTracked))
	}
	if len(parts) == 0 {
		return "empty"
	}
	return strings.Join(parts, ", ")
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
