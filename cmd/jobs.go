package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/skiptrace/internal/model"
	"github.com/sells-group/skiptrace/internal/store"
)

var (
	jobsStatus    string
	jobsLimit     int
	jobsOlderThan time.Duration
	jobsMark      bool
	jobsYes       bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage upload jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		jobs, err := st.ListJobs(ctx, store.JobFilter{Status: model.JobStatus(jobsStatus), Limit: jobsLimit})
		if err != nil {
			return eris.Wrap(err, "jobs: list")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFILE\tSTATUS\tROWS\tREQUESTS\tUPDATED")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d\t%s\n",
				j.ID, j.FileName, j.Status, j.RowsProcessed, j.TotalRows, j.RequestCount,
				j.UpdatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Print one job's status as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		j, err := st.GetJob(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "jobs: get %s", args[0])
		}
		j.Content = ""

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(j)
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a job that has not completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.CancelJob(ctx, args[0]); err != nil {
			return eris.Wrapf(err, "jobs: cancel %s", args[0])
		}
		zap.L().Info("job cancelled", zap.String("job_id", args[0]))
		return nil
	},
}

var jobsStaleCmd = &cobra.Command{
	Use:   "stale",
	Short: "List processing jobs with no recent progress, optionally failing them",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		before := time.Now().Add(-jobsOlderThan)
		if jobsMark {
			n, err := st.MarkStale(ctx, before)
			if err != nil {
				return eris.Wrap(err, "jobs: mark stale")
			}
			zap.L().Info("stale jobs marked failed", zap.Int("count", n))
			return nil
		}

		jobs, err := st.ListJobs(ctx, store.JobFilter{Status: model.JobStatusProcessing, UpdatedBefore: before})
		if err != nil {
			return eris.Wrap(err, "jobs: list stale")
		}
		for _, j := range jobs {
			fmt.Printf("%s\t%s\t%d/%d\t%s\n", j.ID, j.FileName, j.RowsProcessed, j.TotalRows, j.UpdatedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var jobsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every job",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !jobsYes {
			return eris.New("jobs: purge deletes every job; pass --yes to confirm")
		}
		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.DeleteAll(ctx)
		if err != nil {
			return eris.Wrap(err, "jobs: purge")
		}
		zap.L().Info("jobs purged", zap.Int("count", n))
		return nil
	},
}

func init() {
	jobsListCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by status (processing, completed, failed, cancelled)")
	jobsListCmd.Flags().IntVar(&jobsLimit, "limit", 50, "max jobs to list")
	jobsStaleCmd.Flags().DurationVar(&jobsOlderThan, "older-than", time.Hour, "minimum time since last progress")
	jobsStaleCmd.Flags().BoolVar(&jobsMark, "mark", false, "mark stale jobs as failed")
	jobsPurgeCmd.Flags().BoolVar(&jobsYes, "yes", false, "confirm deletion")

	jobsCmd.AddCommand(jobsListCmd, jobsStatusCmd, jobsCancelCmd, jobsStaleCmd, jobsPurgeCmd)
	rootCmd.AddCommand(jobsCmd)
}
