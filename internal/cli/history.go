package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mrz1836/deskpilot/internal/domain"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
	"github.com/mrz1836/deskpilot/internal/history"
	"github.com/mrz1836/deskpilot/internal/logging"
	"github.com/mrz1836/deskpilot/internal/tui"
)

// shortIDLen is how many characters of a session ID the list shows.
const shortIDLen = 8

// historyTaskWidth caps the task column of history list.
const historyTaskWidth = 48

// AddHistoryCommand adds the history command group to the root command.
func AddHistoryCommand(root *cobra.Command, flags *GlobalFlags, deps *Deps) {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past task sessions",
		Long: `Inspect past task sessions saved under ~/.deskpilot/history.

Session IDs may be abbreviated to any unique prefix.`,
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistoryList(cmd.Context(), cmd.OutOrStdout(), limit, flags, deps)
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "show at most this many sessions (0 for all)")

	show := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session and its execution log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(cmd.Context(), cmd.OutOrStdout(), args[0], flags, deps)
		},
	}

	del := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryDelete(cmd.Context(), cmd.OutOrStdout(), args[0], flags, deps)
		},
	}

	var assumeYes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistoryClear(cmd.Context(), cmd.OutOrStdout(), assumeYes, flags, deps)
		},
	}
	clearCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")

	cmd.AddCommand(list, show, del, clearCmd)
	root.AddCommand(cmd)
}

// openStore opens the history store configured for this invocation.
func openStore(ctx context.Context, deps *Deps) (*history.FileStore, error) {
	cfg, err := loadConfig(ctx, deps, nil)
	if err != nil {
		return nil, err
	}
	dir, err := cfg.HistoryDir()
	if err != nil {
		return nil, err
	}
	return history.NewFileStore(dir, history.WithLogger(GetLogger().With().Str("component", "history").Logger()))
}

// resolveSessionID expands a unique prefix into a full session ID.
func resolveSessionID(ctx context.Context, store history.Store, arg string) (string, error) {
	arg = strings.ToLower(strings.TrimSpace(arg))
	if _, err := uuid.Parse(arg); err == nil {
		return arg, nil
	}
	if arg == "" {
		return "", fmt.Errorf("%w: empty session id", dperrors.ErrSessionNotFound)
	}

	results, err := store.List(ctx)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, r := range results {
		if strings.HasPrefix(r.SessionID, arg) {
			matches = append(matches, r.SessionID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", dperrors.ErrSessionNotFound, arg)
	case 1:
		return matches[0], nil
	default:
		return "", dperrors.NewExitCode2Error(fmt.Errorf("session id %q is ambiguous: %d matches", arg, len(matches)))
	}
}

func runHistoryList(ctx context.Context, w io.Writer, limit int, flags *GlobalFlags, deps *Deps) error {
	out := newOutput(w, flags)
	store, err := openStore(ctx, deps)
	if err != nil {
		return err
	}
	results, err := store.List(ctx)
	if err != nil {
		return err
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	if flags.Output == OutputJSON {
		if results == nil {
			results = []*domain.TaskResult{}
		}
		return out.JSON(results)
	}
	if len(results) == 0 {
		out.Info("No saved sessions")
		return nil
	}

	now := time.Now()
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			shortID(r.SessionID),
			tui.FormatStatus(r.Status),
			strconv.Itoa(r.StepsCompleted) + "/" + strconv.Itoa(r.StepsTaken),
			tui.RelativeTime(r.StartedAt, now),
			logging.Truncate(r.Task, historyTaskWidth),
		})
	}
	out.Table([]string{"ID", "STATUS", "STEPS", "STARTED", "TASK"}, rows)
	return nil
}

func runHistoryShow(ctx context.Context, w io.Writer, arg string, flags *GlobalFlags, deps *Deps) error {
	out := newOutput(w, flags)
	store, err := openStore(ctx, deps)
	if err != nil {
		return err
	}
	id, err := resolveSessionID(ctx, store, arg)
	if err != nil {
		return err
	}
	r, err := store.Get(ctx, id)
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		return out.JSON(r)
	}

	styles := tui.NewOutputStyles()
	lines := []string{
		styles.Header.Render("Session " + r.SessionID),
		"Task:     " + r.Task,
		"Status:   " + tui.FormatStatus(r.Status),
		"Steps:    " + strconv.Itoa(r.StepsCompleted) + " completed of " + strconv.Itoa(r.StepsTaken) + " taken",
		"Started:  " + r.StartedAt.Local().Format(time.DateTime),
		"Duration: " + tui.FormatDuration(r.FinishedAt.Sub(r.StartedAt)),
		"Message:  " + r.Message,
	}
	if r.Error != "" {
		lines = append(lines, "Error:    "+styles.Error.Render(r.Error))
	}
	lines = append(lines, "")
	for _, e := range r.ExecutionLog {
		lines = append(lines, tui.FormatEntry(e, styles))
		if flags.Verbose && e.Reasoning != "" {
			lines = append(lines, "    "+styles.Dim.Render(e.Reasoning))
		}
	}
	_, err = fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

func runHistoryDelete(ctx context.Context, w io.Writer, arg string, flags *GlobalFlags, deps *Deps) error {
	out := newOutput(w, flags)
	store, err := openStore(ctx, deps)
	if err != nil {
		return err
	}
	id, err := resolveSessionID(ctx, store, arg)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, id); err != nil {
		return err
	}
	if flags.Output == OutputJSON {
		return out.JSON(map[string]string{"deleted": id})
	}
	out.Success("Deleted session " + id)
	return nil
}

func runHistoryClear(ctx context.Context, w io.Writer, assumeYes bool, flags *GlobalFlags, deps *Deps) error {
	out := newOutput(w, flags)
	store, err := openStore(ctx, deps)
	if err != nil {
		return err
	}

	if !assumeYes && deps.Interactive() {
		ok, err := tui.Confirm("Delete every saved session in "+store.Dir()+"?", false)
		if err != nil {
			return err
		}
		if !ok {
			out.Info("Nothing deleted")
			return nil
		}
	}

	n, err := store.Clear(ctx)
	if err != nil {
		return err
	}
	if flags.Output == OutputJSON {
		return out.JSON(map[string]int{"deleted": n})
	}
	out.Success(fmt.Sprintf("Deleted %d sessions", n))
	return nil
}

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}
