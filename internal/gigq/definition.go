package gigq

import (
	"encoding/json"
	"time"
)

// DefaultMaxAttempts and DefaultTimeoutSeconds are applied by NewJobDefinition
// when the caller doesn't care to set them explicitly.
const (
	DefaultMaxAttempts    = 3
	DefaultTimeoutSeconds = 300
)

// JobDefinition is the in-memory description of a unit of work, before it
// has been persisted. It carries everything Submit needs: what to run
// (FunctionIdentifier, resolved later by an injected Resolver), with what
// input (Parameters), under what policy (Priority, MaxAttempts,
// TimeoutSeconds), and gated behind which other jobs (Dependencies, a list
// of already-submitted job ids).
type JobDefinition struct {
	Name               string
	FunctionIdentifier string
	Parameters         map[string]interface{}
	Priority           int
	Dependencies       []string
	MaxAttempts        int
	TimeoutSeconds     int
}

// NewJobDefinition builds a JobDefinition with the package defaults for
// MaxAttempts/TimeoutSeconds, which callers can override before Submit.
func NewJobDefinition(name, functionIdentifier string, parameters map[string]interface{}) JobDefinition {
	return JobDefinition{
		Name:               name,
		FunctionIdentifier: functionIdentifier,
		Parameters:         parameters,
		MaxAttempts:        DefaultMaxAttempts,
		TimeoutSeconds:     DefaultTimeoutSeconds,
	}
}

// StatusRecord is the result of GetStatus: a job plus its execution
// history, ordered oldest attempt first.
type StatusRecord struct {
	Job        JobSummary
	Executions []ExecutionSummary
}

// JobSummary is the caller-facing projection of a persisted job row.
type JobSummary struct {
	ID                  string
	Name                string
	FunctionIdentifier  string
	Priority            int
	Dependencies        []string
	MaxAttempts         int
	Attempts            int
	TimeoutSeconds      int
	Status              string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	StartedAt           *time.Time
	CompletedAt         *time.Time
	WorkerID            *string
	Result              *string
	Error               *string
	ExecutingWorkflowID *string
}

// DecodeResult unmarshals the job's JSON-encoded result into v. Returns
// false if the job has no result yet.
func (s JobSummary) DecodeResult(v interface{}) (bool, error) {
	if s.Result == nil {
		return false, nil
	}
	return true, json.Unmarshal([]byte(*s.Result), v)
}

// ExecutionSummary is the caller-facing projection of a job_executions row.
type ExecutionSummary struct {
	ID          string
	WorkerID    string
	StartedAt   time.Time
	CompletedAt *time.Time
	Status      string
	Error       *string
}
