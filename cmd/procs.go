package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/procs"
)

var procsKillYes bool

var procsCmd = &cobra.Command{
	Use:   "procs",
	Short: "Inspect and clean up tagged browser processes",
}

var procsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show live processes carrying this tool's tag",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		tracker := procs.NewTracker(procs.NewLister(), procs.NewKiller(), nil, cfg.Browser.TagPrefix)
		matches := tracker.LiveMatches(ctx)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	},
}

var procsKillCmd = &cobra.Command{
	Use:   "kill <job-id>",
	Short: "Kill every process tagged with the given job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		jobID := args[0]

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		tracker := procs.NewTracker(procs.NewLister(), procs.NewKiller(), st, cfg.Browser.TagPrefix)
		report := tracker.FindAndKillJobProcesses(ctx, jobID)

		zap.L().Info("kill sweep done",
			zap.String("job_id", jobID),
			zap.Int("found", report.Found),
			zap.Int("killed", report.Killed),
			zap.Int("failed", report.Failed),
		)
		return nil
	},
}

var procsKillAllCmd = &cobra.Command{
	Use:   "kill-all",
	Short: "Kill every process tagged by this tool, across all jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if !procsKillYes && !confirm("Kill ALL tagged browser processes?") {
			fmt.Println("aborted")
			return nil
		}

		tracker := procs.NewTracker(procs.NewLister(), procs.NewKiller(), nil, cfg.Browser.TagPrefix)
		report := tracker.KillAllScraperProcesses(ctx)

		zap.L().Info("global kill sweep done",
			zap.Int("found", report.Found),
			zap.Int("killed", report.Killed),
			zap.Int("failed", report.Failed),
		)
		return nil
	},
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func init() {
	procsKillAllCmd.Flags().BoolVar(&procsKillYes, "yes", false, "skip the confirmation prompt")
	procsCmd.AddCommand(procsStatusCmd)
	procsCmd.AddCommand(procsKillCmd)
	procsCmd.AddCommand(procsKillAllCmd)
	rootCmd.AddCommand(procsCmd)
}
