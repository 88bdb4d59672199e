package entities

type Event struct {
	ID        string    `json:"id"`
	Camera    string    `json:"camera"`
	Label     string    `json:"label"`
	StartTime float64   `json:"start_time"`
	EndTime   *float64  `json:"end_time"`
	Data      EventData `json:"data"`
	Thumbnail string    `json:"thumbnail,omitempty"`
}

type EventData struct {
	Description string  `json:"description,omitempty"`
	TopScore    float64 `json:"top_score,omitempty"`
}

// Ended reports whether the footage source has closed the event.
func (e Event) Ended() bool {
	return e.EndTime != nil && *e.EndTime > e.StartTime
}
