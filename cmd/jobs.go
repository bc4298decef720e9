package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/store"
)

var jobsStatus string

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		jobs, err := st.ListJobs(ctx, store.JobFilter{Status: model.JobStatus(jobsStatus)})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(jobs)
	},
}

var leadsCmd = &cobra.Command{
	Use:   "leads <job-id>",
	Short: "List the qualified leads a job produced",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		leads, err := st.ListLeads(ctx, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(leads)
	},
}

func init() {
	jobsCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by status (scheduled|running|completed|failed)")
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(leadsCmd)
}
