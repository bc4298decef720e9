package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/job"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/joblog"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/procs"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a job and kill its browser processes",
	Long:  "Flips the job's terminal status and sweeps the host for processes carrying the job's tag. Works even when no server is running, for example after a host restart.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		jobID := args[0]

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if _, err := st.GetJob(ctx, jobID); err != nil {
			return err
		}

		tracker := procs.NewTracker(procs.NewLister(), procs.NewKiller(), st, cfg.Browser.TagPrefix)
		registry := job.NewRegistry(job.Deps{Store: st, Tracker: tracker, Logs: joblog.New(cfg.Jobs.LogBufferSize)})

		if err := registry.Cancel(ctx, jobID); err != nil {
			return err
		}

		zap.L().Info("job cancelled", zap.String("job_id", jobID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}
