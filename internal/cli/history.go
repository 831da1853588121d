package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"sheetsplit/internal/history"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit   int
	Session string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently recorded pipeline requests",
		Long: `List pipeline requests recorded by run and serve, newest first.

Example:
  sheetsplit history --limit 20
  sheetsplit history --session 2f1c... --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", history.DefaultLimit, "maximum number of entries")
	cmd.Flags().StringVar(&opts.Session, "session", "", "only entries of this session")

	return cmd
}

func showHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	if opts.Limit <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--limit must be positive: %d", opts.Limit))
	}
	if opts.Config.Paths.HistoryDB == "" {
		return NewExitError(ExitCommandError, "history is disabled: paths.history_db is empty")
	}

	store, err := history.Open(opts.Config.Paths.HistoryDB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open history database", err)
	}
	defer store.Close()

	var entries []history.Entry
	if opts.Session != "" {
		entries, err = store.ListSession(cmd.Context(), opts.Session, opts.Limit)
	} else {
		entries, err = store.List(cmd.Context(), opts.Limit)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}

	return writeHistory(cmd.OutOrStdout(), opts.Format, entries)
}

func writeHistory(w io.Writer, format string, entries []history.Entry) error {
	if format == "json" {
		return json.NewEncoder(w).Encode(entries)
	}

	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No recorded requests.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tSESSION\tREQUEST\tSTATUS\tSTAGE\tPATH\tMESSAGE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID,
			e.CreatedAt.Local().Format(time.DateTime),
			shortID(e.SessionID),
			e.Request,
			e.Status,
			e.Stage,
			e.Path,
			e.Message,
		)
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
