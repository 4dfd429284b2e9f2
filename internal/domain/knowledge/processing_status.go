package knowledge

import "time"

// ProcessingState tracks how far a consuming agent has taken one content item.
type ProcessingState string

const (
	StatePending    ProcessingState = "pending"
	StateProcessing ProcessingState = "processing"
	StateProcessed  ProcessingState = "processed"
	StateFailed     ProcessingState = "failed"
	StateSkipped    ProcessingState = "skipped"
)

// Terminal reports whether no further forward transition is allowed.
func (s ProcessingState) Terminal() bool {
	switch s {
	case StateProcessed, StateFailed, StateSkipped:
		return true
	default:
		return false
	}
}

func (s ProcessingState) Valid() bool {
	switch s {
	case StatePending, StateProcessing, StateProcessed, StateFailed, StateSkipped:
		return true
	default:
		return false
	}
}

// ProcessingStatus is one agent's progress on one content item. The composite
// primary key gives exactly one row per (content, agent) pair; transitions
// only ever move forward, so the row doubles as an audit record.
type ProcessingStatus struct {
	ContentRID       string          `gorm:"column:content_rid;primaryKey" json:"content_rid"`
	AgentID          string          `gorm:"column:agent_id;primaryKey" json:"agent_id"`
	State            ProcessingState `gorm:"column:state;not null;index" json:"state"`
	FragmentCount    *int            `gorm:"column:fragment_count" json:"fragment_count,omitempty"`
	ProcessingTimeMs *int64          `gorm:"column:processing_time_ms" json:"processing_time_ms,omitempty"`
	ErrorMessage     string          `gorm:"column:error_message" json:"error_message,omitempty"`
	StartedAt        *time.Time      `gorm:"column:started_at;index" json:"started_at,omitempty"`
	CompletedAt      *time.Time      `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt        time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null;index" json:"updated_at"`
}

func (ProcessingStatus) TableName() string { return "processing_status" }

// AgentStats aggregates one agent's processing counts across all content.
type AgentStats struct {
	AgentID             string  `json:"agent_id"`
	Pending             int64   `json:"pending"`
	Processing          int64   `json:"processing"`
	Processed           int64   `json:"processed"`
	Failed              int64   `json:"failed"`
	Skipped             int64   `json:"skipped"`
	Total               int64   `json:"total"`
	AvgProcessingTimeMs float64 `json:"avg_processing_time_ms"`
}
