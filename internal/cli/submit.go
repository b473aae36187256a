package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gigq/gigq/internal/gigq"
)

func buildSubmitCommand() *cobra.Command {
	var (
		name           string
		params         []string
		priority       int
		maxAttempts    int
		timeoutSeconds int
		dependsOn      []string
	)

	cmd := &cobra.Command{
		Use:   "submit <function_identifier>",
		Short: "Submit a new job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			functionID := args[0]

			parameters, err := parseParams(params)
			if err != nil {
				fail(&gigq.Error{Kind: gigq.KindInvalidJob, Message: err.Error()})
			}

			jobName := name
			if jobName == "" {
				jobName = functionID
			}

			def := gigq.NewJobDefinition(jobName, functionID, parameters)
			def.Priority = priority
			if maxAttempts > 0 {
				def.MaxAttempts = maxAttempts
			}
			if timeoutSeconds > 0 {
				def.TimeoutSeconds = timeoutSeconds
			}
			def.Dependencies = dependsOn

			q, factory, err := openQueue(context.Background())
			if err != nil {
				fail(err)
			}
			defer factory.Close()

			id, err := q.Submit(context.Background(), def, nil)
			if err != nil {
				fail(err)
			}

			fmt.Println(id)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "human-readable job name (defaults to the function identifier)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "parameter as key=value; repeatable")
	cmd.Flags().IntVar(&priority, "priority", 0, "scheduling priority, higher runs first")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "maximum attempts before terminal failure")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", 0, "execution timeout in seconds")
	cmd.Flags().StringArrayVar(&dependsOn, "depends-on", nil, "job id this job depends on; repeatable")

	return cmd
}

func parseParams(kvs []string) (map[string]interface{}, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	params := make(map[string]interface{}, len(kvs))
	for _, kv := range kvs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --param %q, expected key=value", kv)
		}
		params[key] = value
	}
	return params, nil
}
