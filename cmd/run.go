package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
)

var (
	runCategories []string
	runLocations  []string
	runCountry    string
	runTarget     int
	runMinRating  float64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a lead-generation job to completion",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Registry.Rehydrate(ctx); err != nil {
			zap.L().Warn("rehydrate failed", zap.Error(err))
		}

		j := &model.Job{
			Categories:  runCategories,
			Locations:   runLocations,
			Country:     runCountry,
			MinRating:   runMinRating,
			TargetLeads: runTarget,
		}
		if err := e.Registry.Schedule(ctx, j); err != nil {
			return err
		}

		// Interrupt cancels the job; cleanup still needs a live context.
		go func() {
			<-ctx.Done()
			zap.L().Info("interrupt received, cancelling job", zap.String("job_id", j.ID))
			if err := e.Registry.Cancel(context.Background(), j.ID); err != nil {
				zap.L().Warn("cancel failed", zap.Error(err))
			}
		}()

		e.Registry.Start(context.Background(), j)
		e.Registry.Wait()

		done, err := e.Store.GetJob(context.Background(), j.ID)
		if err != nil {
			return eris.Wrap(err, "load finished job")
		}
		leads, err := e.Store.ListLeads(context.Background(), j.ID)
		if err != nil {
			return eris.Wrap(err, "load leads")
		}

		zap.L().Info("job finished",
			zap.String("job_id", done.ID),
			zap.String("status", string(done.Status)),
			zap.Int("leads_found", done.LeadsFound),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"job":   done,
			"leads": leads,
		})
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&runCategories, "categories", nil, "business categories to search (required)")
	runCmd.Flags().StringSliceVar(&runLocations, "locations", nil, "locations to search (required)")
	runCmd.Flags().StringVar(&runCountry, "country", "", "two-letter country code")
	runCmd.Flags().IntVar(&runTarget, "target", 10, "number of leads to find")
	runCmd.Flags().Float64Var(&runMinRating, "min-rating", 0, "minimum listing rating (0 disables)")
	_ = runCmd.MarkFlagRequired("categories")
	_ = runCmd.MarkFlagRequired("locations")
	rootCmd.AddCommand(runCmd)
}
