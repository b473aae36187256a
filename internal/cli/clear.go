package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func buildClearCommand() *cobra.Command {
	var beforeDays int

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete old terminal jobs and their execution history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, factory, err := openQueue(context.Background())
			if err != nil {
				fail(err)
			}
			defer factory.Close()

			count, err := q.Cleanup(context.Background(), beforeDays)
			if err != nil {
				fail(err)
			}

			fmt.Printf("removed %d job(s)\n", count)
			return nil
		},
	}

	cmd.Flags().IntVar(&beforeDays, "before", 30, "remove terminal jobs completed more than this many days ago")
	return cmd
}
