// Package cli implements gigq's command line interface: submit, list,
// status, cancel, requeue, worker, and clear, all wired through a single
// --db flag and a shared Queue/SessionFactory pair.
//
// Exit codes: 0 success, 1 usage error, 2 not found, 3 conflict, 4 store
// error, mirroring gigq.ErrorKind so scripts can branch on $?.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gigq/gigq/internal/gigq"
	"github.com/gigq/gigq/internal/store"
)

var dbPath string

// BuildCLI assembles the gigq root command and its subcommands.
func BuildCLI() *cobra.Command {
	root := &cobra.Command{
		Use:           "gigq",
		Short:         "gigq: a local-first job queue backed by an embedded store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&dbPath, "db", "./gigq.db", "path to the store file")

	root.AddCommand(
		buildSubmitCommand(),
		buildListCommand(),
		buildStatusCommand(),
		buildCancelCommand(),
		buildRequeueCommand(),
		buildWorkerCommand(),
		buildClearCommand(),
		buildServeCommand(),
	)

	return root
}

// openQueue builds a Queue over dbPath, logging to stderr at warn level
// with a text handler — CLI invocations are interactive.
func openQueue(ctx context.Context) (*gigq.Queue, store.SessionFactory, error) {
	factory, err := store.NewFileSessionFactory(dbPath)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	q, err := gigq.NewQueue(ctx, factory, logger)
	if err != nil {
		factory.Close()
		return nil, nil, err
	}
	return q, factory, nil
}

// newQueueFromFactory builds a Queue over an already-open factory,
// for callers (like serve) that manage the factory's lifecycle themselves.
func newQueueFromFactory(ctx context.Context, factory store.SessionFactory, log *slog.Logger) (*gigq.Queue, error) {
	return gigq.NewQueue(ctx, factory, log)
}

// exitCode maps a gigq.Error's kind to this CLI's exit code contract.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	gigqErr, ok := err.(*gigq.Error)
	if !ok {
		return 4
	}
	switch gigqErr.Kind {
	case gigq.KindInvalidJob, gigq.KindUnknownDependency:
		return 1
	case gigq.KindNotFound:
		return 2
	case gigq.KindConflict, gigq.KindCycleDetected:
		return 3
	default:
		return 4
	}
}

// fail prints err to stderr and exits with the code its kind maps to.
func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(exitCode(err))
}
