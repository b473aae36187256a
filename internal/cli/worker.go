package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gigq/gigq/internal/logger"
	"github.com/gigq/gigq/internal/resolver"
	"github.com/gigq/gigq/internal/store"
	"github.com/gigq/gigq/internal/worker"
)

func buildWorkerCommand() *cobra.Command {
	var (
		workerID     string
		once         bool
		pollSeconds  int
		heartbeat    bool
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a worker that claims and executes jobs",
		Long: `Run a worker against the store at --db. The CLI worker only knows
the functions registered by builtinResolver; embed gigq as a library and
supply your own resolver.Resolver to run real job functions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			factory, err := store.NewFileSessionFactory(dbPath)
			if err != nil {
				fail(err)
			}
			defer factory.Close()

			log := logger.New(os.Stderr, "production", false)

			w := worker.New(factory, builtinResolver(), worker.Options{
				WorkerID:     workerID,
				PollInterval: time.Duration(pollSeconds) * time.Second,
				Logger:       log,
				Heartbeat:    heartbeat,
			})

			if once {
				claimed, err := w.ProcessOne(context.Background())
				if err != nil {
					fail(err)
				}
				if !claimed {
					log.Info("no job available")
				}
				return nil
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := w.Start(ctx); err != nil {
				fail(err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workerID, "id", "", "worker id recorded on claimed jobs (defaults to host:pid)")
	cmd.Flags().BoolVar(&once, "once", false, "process at most one job, then exit")
	cmd.Flags().IntVar(&pollSeconds, "poll", 5, "seconds between poll iterations")
	cmd.Flags().BoolVar(&heartbeat, "heartbeat", false, "log host CPU/memory stats periodically")

	return cmd
}

// builtinResolver registers the handful of functions the CLI can run
// standalone, without a host program supplying its own resolver.Resolver.
func builtinResolver() *resolver.Registry {
	reg := resolver.NewRegistry()
	reg.Register("noop", func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return params, nil
	})
	return reg
}
