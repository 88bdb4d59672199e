package entities

import "nvr-orchestrator/constant"

// JobResult is the latest known state of a summary pipeline. It is never
// persisted; every read goes back to the analysis backend.
// Message carries the human readable note shown while the job is pending.
type JobResult struct {
	ID      string             `json:"id"`
	Status  constant.JobStatus `json:"status"`
	Result  string             `json:"result,omitempty"`
	Reason  string             `json:"reason,omitempty"`
	Message string             `json:"message,omitempty"`
}

func (r JobResult) Display() string {
	switch r.Status {
	case constant.JobStatusReady:
		return r.Result
	case constant.JobStatusFailed:
		return "Failed: " + r.Reason
	default:
		return constant.PendingPlaceholder
	}
}
