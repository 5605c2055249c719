package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/jobqueue/job"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.store.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			printf(cmd, "store migrated\n")
			return nil
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	var (
		priority int
		attempts int
		timeout  time.Duration
		dir      string
		env      []string
	)

	cmd := &cobra.Command{
		Use:   "add <command>",
		Short: "Submit a shell command as a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := Command{Command: args[0], Dir: dir}
			if len(env) > 0 {
				c.Env = make(map[string]string, len(env))
				for _, kv := range env {
					k, v, ok := strings.Cut(kv, "=")
					if !ok {
						return fmt.Errorf("invalid --env %q, want KEY=VALUE", kv)
					}
					c.Env[k] = v
				}
			}

			s, err := a.newScheduler()
			if err != nil {
				return err
			}
			jobID, err := s.AddJob(cmd.Context(), a.cfg.Worker.Name, c,
				job.WithPriority(priority),
				job.WithAttempts(attempts),
				job.WithTimeout(timeout),
				job.WithoutStart(),
			)
			if err != nil {
				return err
			}
			printf(cmd, "%s\n", jobID)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVarP(&priority, "priority", "p", 0, "priority, higher runs first")
	f.IntVarP(&attempts, "attempts", "a", 0, "failed attempts allowed before the job fails terminally")
	f.DurationVarP(&timeout, "timeout", "t", 0, "per-execution timeout (0 disables)")
	f.StringVar(&dir, "dir", "", "working directory")
	f.StringArrayVarP(&env, "env", "e", nil, "extra environment variable KEY=VALUE (repeatable)")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var (
		all    bool
		status string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in selection order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				records []*job.Record
				err     error
			)
			if all {
				records, err = a.store.GetJobsWithDeleted(cmd.Context())
			} else {
				records, err = a.store.GetJobs(cmd.Context())
			}
			if err != nil {
				return err
			}
			if status != "" {
				records = filterStatus(records, job.Status(status))
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tWORKER\tSTATUS\tPRIORITY\tFAILED\tCREATED\tDELETED")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d/%d\t%s\t%t\n",
					r.ID, r.WorkerName, r.Status, r.Priority,
					r.MetaData.FailedAttempts, r.Attempts,
					r.Created.Format(time.RFC3339), r.IsDeleted)
			}
			return tw.Flush()
		},
	}

	f := cmd.Flags()
	f.BoolVar(&all, "all", false, "include soft-deleted jobs")
	f.StringVar(&status, "status", "", "only jobs with this status")
	f.BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func filterStatus(records []*job.Record, status job.Status) []*job.Record {
	out := records[:0]
	for _, r := range records {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show job counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, st := range []job.Status{
				job.StatusIdle, job.StatusProcessing, job.StatusFinished,
				job.StatusFailed, job.StatusCancelled,
			} {
				n, err := a.store.CountJobs(cmd.Context(), job.CountOpts{
					Status:      st,
					WithDeleted: st == job.StatusFinished,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%d\n", st, n)
			}
			total, err := a.store.CountJobs(cmd.Context(), job.CountOpts{WithDeleted: true})
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "total\t%d\n", total)
			return tw.Flush()
		},
	}
}

// newRequeueCmd returns failed or cancelled jobs to idle. The job runs on
// the next "jobq run".
func newRequeueCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <job-id>...",
		Short: "Return failed or cancelled jobs to the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs []error
			for _, jobID := range args {
				r, err := a.store.GetJob(cmd.Context(), jobID)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", jobID, err))
					continue
				}
				r.Failed = nil
				r.Status = job.StatusIdle
				r.Active = false
				r.IsDeleted = false
				if err := a.store.UpdateJob(cmd.Context(), r); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", jobID, err))
					continue
				}
				printf(cmd, "requeued %s\n", jobID)
			}
			return errors.Join(errs...)
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	var permanent bool

	cmd := &cobra.Command{
		Use:   "rm <job-id>...",
		Short: "Remove jobs (soft delete unless --permanent)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs []error
			for _, jobID := range args {
				var err error
				if permanent {
					err = a.store.RemoveJobPermanently(cmd.Context(), jobID)
				} else {
					err = a.store.RemoveJob(cmd.Context(), jobID)
				}
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", jobID, err))
					continue
				}
				printf(cmd, "removed %s\n", jobID)
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVar(&permanent, "permanent", false, "delete the record instead of marking it deleted")
	return cmd
}

func newPurgeCmd(a *app) *cobra.Command {
	var (
		workerName string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete all jobs, or soft delete one worker's jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if workerName != "" {
				if err := a.store.RemoveJobsByWorkerName(cmd.Context(), workerName); err != nil {
					return err
				}
				printf(cmd, "removed jobs of worker %s\n", workerName)
				return nil
			}
			if !yes {
				return errors.New("refusing to delete every job without --yes")
			}
			if err := a.store.DeleteAllJobs(cmd.Context()); err != nil {
				return err
			}
			printf(cmd, "deleted all jobs\n")
			return nil
		},
	}
	cmd.Flags().StringVar(&workerName, "worker", "", "only soft delete this worker's jobs")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting every job")
	return cmd
}
