package entities

import "time"

// SearchResult confirms that a clip was indexed for search. A result with only
// Status set is the placeholder shown while nothing has been indexed yet.
type SearchResult struct {
	VideoID   string    `json:"videoId,omitempty"`
	Message   string    `json:"message,omitempty"`
	EventID   string    `json:"eventId,omitempty"`
	Camera    string    `json:"camera,omitempty"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}
