package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func buildStatusCommand() *cobra.Command {
	var showResult bool

	cmd := &cobra.Command{
		Use:   "status <job_id>",
		Short: "Show a job's status and execution history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]

			q, factory, err := openQueue(context.Background())
			if err != nil {
				fail(err)
			}
			defer factory.Close()

			record, err := q.GetStatus(context.Background(), jobID)
			if err != nil {
				fail(err)
			}

			j := record.Job
			fmt.Printf("id:         %s\n", j.ID)
			fmt.Printf("name:       %s\n", j.Name)
			fmt.Printf("function:   %s\n", j.FunctionIdentifier)
			fmt.Printf("status:     %s\n", j.Status)
			fmt.Printf("attempts:   %d/%d\n", j.Attempts, j.MaxAttempts)
			fmt.Printf("priority:   %d\n", j.Priority)
			if j.WorkerID != nil {
				fmt.Printf("worker:     %s\n", *j.WorkerID)
			}
			if j.Error != nil {
				fmt.Printf("error:      %s\n", *j.Error)
			}
			if showResult && j.Result != nil {
				fmt.Printf("result:     %s\n", *j.Result)
			}

			fmt.Println("executions:")
			for _, e := range record.Executions {
				fmt.Printf("  %s\tworker=%s\tstatus=%s\n", e.ID, e.WorkerID, e.Status)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showResult, "show-result", false, "include the job's JSON result, if any")
	return cmd
}
