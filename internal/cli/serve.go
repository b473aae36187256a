package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gigq/gigq/internal/config"
	"github.com/gigq/gigq/internal/httpapi"
	"github.com/gigq/gigq/internal/logger"
	"github.com/gigq/gigq/internal/scheduler"
	"github.com/gigq/gigq/internal/store"
	"github.com/gigq/gigq/internal/worker"
)

// buildServeCommand wires together a worker, the optional read-only
// status API, and the optional cleanup scheduler into one long-running
// process, configured entirely from the environment (see internal/config).
// This is the deployment shape; "worker" alone is for running just the
// poll loop under an externally managed supervisor.
func buildServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run a worker plus the optional status API and cleanup scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				fail(err)
			}

			log := logger.New(os.Stdout, cfg.Environment, cfg.LogFormat == "json")

			factory, err := store.NewFileSessionFactory(cfg.DatabasePath)
			if err != nil {
				fail(err)
			}
			defer factory.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			q, err := newQueueFromFactory(ctx, factory, log)
			if err != nil {
				fail(err)
			}

			if cfg.HTTPAddress != "" {
				httpSrv := httpapi.NewServer(cfg.HTTPAddress, q, cfg.Environment, log)
				go func() {
					if err := httpSrv.ListenAndServe(); err != nil {
						log.Error("status API stopped", "error", err)
					}
				}()
			}

			if cfg.CleanupCron != "" {
				sched, err := scheduler.New(cfg.CleanupCron, q, cfg.CleanupAfter, log)
				if err != nil {
					fail(err)
				}
				sched.Start()
				defer sched.Stop()
			}

			w := worker.New(factory, builtinResolver(), worker.Options{
				PollInterval: cfg.PollInterval,
				Logger:       log,
			})

			return w.Start(ctx)
		},
	}
}
