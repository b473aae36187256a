package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gigq/gigq/internal/gigq"
)

func buildListCommand() *cobra.Command {
	var (
		status     string
		workflowID string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, factory, err := openQueue(context.Background())
			if err != nil {
				fail(err)
			}
			defer factory.Close()

			jobs, err := q.List(context.Background(), gigq.ListFilter{
				Status:     status,
				WorkflowID: workflowID,
				Limit:      limit,
			})
			if err != nil {
				fail(err)
			}

			if len(jobs) == 0 {
				fmt.Println("no jobs")
				return nil
			}

			for _, j := range jobs {
				fmt.Printf("%s\t%-10s\t%-20s\tattempts=%d/%d\tpriority=%d\n",
					j.ID, j.Status, j.Name, j.Attempts, j.MaxAttempts, j.Priority)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&workflowID, "workflow", "", "filter by workflow id")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of jobs to return")

	return cmd
}
