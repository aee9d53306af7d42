package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// Opener connects the helpers when a command runs.
type Opener func() (*JobsCLI, error)

// NewRootCommand builds the atelierctl command tree.
func NewRootCommand(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "atelierctl",
		Short:         "Operate the atelier console's background jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(warmupCommand(open), invalidateCommand(open), queueCommand(open))
	return root
}

func warmupCommand(open Opener) *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "warmup --session <id> [resource...]",
		Short: "Queue a refill of the shared query store for a session",
		Long: "Queues a warmup of the named resources, or of every resource when none is named. " +
			"Pages load with the session's tokens and are cached for its user only.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := open()
			if err != nil {
				return err
			}
			defer ops.Close()
			info, err := ops.Warmup(cmd.Context(), session, args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s as %s\n", info.Type, info.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "console session id to warm for")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func invalidateCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <resource>",
		Short: "Mark a resource stale on every console",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := open()
			if err != nil {
				return err
			}
			defer ops.Close()
			info, err := ops.Invalidate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s as %s\n", info.Type, info.ID)
			return nil
		},
	}
}

func queueCommand(open Opener) *cobra.Command {
	var (
		asJSON    bool
		scheduled int
	)
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show the job queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := open()
			if err != nil {
				return err
			}
			defer ops.Close()
			stats, err := ops.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(stats)
			}
			writeStats(out, stats)
			if scheduled <= 0 {
				return nil
			}
			tasks, err := ops.ListScheduled(cmd.Context(), scheduled)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tNEXT RUN")
			for _, task := range tasks {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", task.ID, task.Type, task.NextProcessAt.UTC().Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the queue counters as JSON")
	cmd.Flags().IntVar(&scheduled, "scheduled", 0, "also list up to this many scheduled tasks")
	return cmd
}

func writeStats(w io.Writer, stats QueueStats) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "queue\t%s\n", stats.Queue)
	fmt.Fprintf(tw, "pending\t%d\n", stats.Pending)
	fmt.Fprintf(tw, "active\t%d\n", stats.Active)
	fmt.Fprintf(tw, "scheduled\t%d\n", stats.Scheduled)
	fmt.Fprintf(tw, "retry\t%d\n", stats.Retry)
	fmt.Fprintf(tw, "archived\t%d\n", stats.Archived)
	_ = tw.Flush()
}
