package entity

import "time"

// ChangelogEntry is an append-only per-field diff of a record
type ChangelogEntry struct {
	ID            int64     `json:"id"`
	RecordID      int64     `json:"record_id"`
	ActorID       int64     `json:"actor_id"`
	FieldName     string    `json:"field_name"`
	PreviousValue string    `json:"previous_value"`
	NewValue      string    `json:"new_value"`
	Category      string    `json:"category"`
	Summary       string    `json:"summary"`
	Version       int       `json:"version"`
	ParentVersion *int      `json:"parent_version,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ChangelogFilter narrows a changelog query. Zero values match everything.
type ChangelogFilter struct {
	FieldName string
	Category  string
	ActorID   *int64
	Since     *time.Time
	Until     *time.Time
	Limit     int
}
