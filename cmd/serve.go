package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/api"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the job-control HTTP server",
	Long:  "Reconciles interrupted jobs from the previous run, then serves the job API and dispatches scheduled jobs until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		// Kill leftover browsers and settle jobs interrupted by the last
		// shutdown before accepting new work.
		if err := e.Registry.Rehydrate(ctx); err != nil {
			return err
		}

		go e.Registry.RunDispatcher(ctx, time.Duration(cfg.Jobs.DispatchPollSecs)*time.Second)

		handler := api.NewHandler(e.Registry, e.Store, e.Logs)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: handler.Routes(cfg.Server.AllowedOrigins),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		// Let in-flight jobs run their cleanup before the process exits.
		e.Registry.Wait()
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
