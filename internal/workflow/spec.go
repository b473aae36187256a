package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gigq/gigq/internal/gigq"
)

// Spec is the declarative, YAML-loadable description of a workflow,
// letting callers define a DAG of jobs in a file instead of in Go code.
//
// jobs:
//   - name: fetch
//     function: fetch_report
//     parameters: {url: "https://example.com/report"}
//     priority: 5
//   - name: summarize
//     function: summarize_report
//     depends_on: [fetch]
type Spec struct {
	Jobs []JobSpec `yaml:"jobs"`
}

// JobSpec is one job entry within a Spec.
type JobSpec struct {
	Name           string                 `yaml:"name"`
	Function       string                 `yaml:"function"`
	Parameters     map[string]interface{} `yaml:"parameters"`
	Priority       int                    `yaml:"priority"`
	MaxAttempts    int                    `yaml:"max_attempts"`
	TimeoutSeconds int                    `yaml:"timeout_seconds"`
	DependsOn      []string               `yaml:"depends_on"`
}

// LoadSpecFile reads and parses a workflow spec YAML file.
func LoadSpecFile(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflow: read spec file: %w", err)
	}

	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("workflow: parse spec file: %w", err)
	}
	return &spec, nil
}

// Builder converts the spec into a Builder, ready to Submit.
func (s *Spec) Builder() (*Builder, error) {
	b := NewBuilder(nil)
	for _, js := range s.Jobs {
		def := gigq.NewJobDefinition(js.Name, js.Function, js.Parameters)
		if js.Priority != 0 {
			def.Priority = js.Priority
		}
		if js.MaxAttempts != 0 {
			def.MaxAttempts = js.MaxAttempts
		}
		if js.TimeoutSeconds != 0 {
			def.TimeoutSeconds = js.TimeoutSeconds
		}
		if err := b.AddJob(js.Name, def, js.DependsOn...); err != nil {
			return nil, err
		}
	}
	return b, nil
}
