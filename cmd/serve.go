package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rankboard/internal/api"
)

var (
	servePort     int
	serveSchedule string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the catalog and ranking HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		server := api.NewServer(env.Store, env.Registry, env.Pipeline, env.Syncer, env.Stats, env.Exporter, env.Cache)
		handler := server.Router(api.Options{
			SubmissionRate:  cfg.Server.SubmissionRate,
			SubmissionBurst: cfg.Server.SubmissionBurst,
			AllowedOrigins:  cfg.Server.AllowedOrigins,
		})

		schedule := serveSchedule
		if schedule == "" {
			schedule = cfg.Sync.Schedule
		}
		if schedule != "" {
			c := cron.New()
			_, err := c.AddFunc(schedule, func() {
				if _, err := env.Syncer.SyncAll(ctx); err != nil {
					zap.L().Error("scheduled ranking sync failed", zap.Error(err))
				}
			})
			if err != nil {
				return eris.Wrapf(err, "invalid sync schedule %q", schedule)
			}
			c.Start()
			defer c.Stop()
			zap.L().Info("scheduled ranking sync enabled", zap.String("schedule", schedule))
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: handler,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveSchedule, "sync-schedule", "", "cron expression for scheduled ranking sync (default from config)")
	rootCmd.AddCommand(serveCmd)
}
