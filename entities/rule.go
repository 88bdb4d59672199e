package entities

import (
	"time"

	"nvr-orchestrator/constant"
)

type Rule struct {
	ID        string          `json:"id" gorm:"type:varchar(255);primaryKey"`
	Label     string          `json:"label" gorm:"type:varchar(255);not null;default:''"`
	Action    constant.Action `json:"action" gorm:"type:varchar(32);not null"`
	Camera    string          `json:"camera,omitempty" gorm:"type:varchar(255);not null;default:''"`
	CreatedAt time.Time       `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (Rule) TableName() string {
	return "rules"
}

// Matches reports whether the rule applies to events from camera. An empty
// camera filter matches every camera.
func (r Rule) Matches(camera string) bool {
	return r.Camera == "" || r.Camera == camera
}
