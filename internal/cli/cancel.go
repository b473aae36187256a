package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func buildCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job_id>",
		Short: "Cancel a pending or failed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]

			q, factory, err := openQueue(context.Background())
			if err != nil {
				fail(err)
			}
			defer factory.Close()

			if err := q.Cancel(context.Background(), jobID); err != nil {
				fail(err)
			}

			fmt.Println("cancelled", jobID)
			return nil
		},
	}
}
