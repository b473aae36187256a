package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func buildRequeueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <job_id>",
		Short: "Requeue a failed, cancelled, or timed-out job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]

			q, factory, err := openQueue(context.Background())
			if err != nil {
				fail(err)
			}
			defer factory.Close()

			if err := q.Requeue(context.Background(), jobID); err != nil {
				fail(err)
			}

			fmt.Println("requeued", jobID)
			return nil
		},
	}
}
