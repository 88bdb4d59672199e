package constant

import "strings"

type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusReady   JobStatus = "ready"
	JobStatusFailed  JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobStatusReady || s == JobStatusFailed
}

type Action string

const (
	ActionSummarize   Action = "summarize"
	ActionAddToSearch Action = "add to search"
)

// ParseAction decides the action once, at rule creation. Any text mentioning
// "search" selects the search path; everything else summarizes.
func ParseAction(text string) Action {
	if strings.Contains(strings.ToLower(text), "search") {
		return ActionAddToSearch
	}
	return ActionSummarize
}

func (a Action) String() string {
	return string(a)
}

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}

type RuleBackend string

const (
	RuleBackendRedis    RuleBackend = "redis"
	RuleBackendPostgres RuleBackend = "postgres"
)

type EventSource string

const (
	EventSourceNone EventSource = "none"
	EventSourcePoll EventSource = "poll"
	EventSourceAMQP EventSource = "amqp"
)

type ExportBackend string

const (
	ExportBackendFS    ExportBackend = "fs"
	ExportBackendMinIO ExportBackend = "minio"
)

const (
	MaxClipSeconds = 300

	SummaryPendingMessage = "Summary is being generated please wait for a while and try again."
	PendingPlaceholder    = "Pending"
)
