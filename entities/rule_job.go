package entities

import (
	"time"

	"nvr-orchestrator/constant"
)

// RuleJob is one entry of a rule's result index in the postgres backend.
// JobID holds the summary pipeline id for summarize rules and the video id for
// search rules; Payload keeps the encoded SearchResult for the latter.
type RuleJob struct {
	ID        uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	RuleID    string          `json:"rule_id" gorm:"type:varchar(255);not null;index:idx_rule_jobs_rule"`
	Kind      constant.Action `json:"kind" gorm:"type:varchar(32);not null"`
	JobID     string          `json:"job_id" gorm:"type:varchar(255);not null"`
	Payload   string          `json:"payload" gorm:"type:text"`
	CreatedAt time.Time       `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (RuleJob) TableName() string {
	return "rule_jobs"
}
