package usage

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies a usage event.
type Kind string

const (
	KindTokens   Kind = "tokens"
	KindDocument Kind = "document"
	KindMessage  Kind = "message"
	KindAPICall  Kind = "api_call"
)

// Record is a durable usage event. The Redis counters are the hot path;
// records are the audit trail and the fallback when Redis is cold.
type Record struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrgID     uuid.UUID `gorm:"type:uuid;index:idx_usage_org_ts;not null"`
	UserID    uuid.UUID `gorm:"type:uuid"`
	Kind      Kind      `gorm:"not null"`
	Tokens    int64
	RequestID string
	Timestamp time.Time `gorm:"index:idx_usage_org_ts;not null"`
}

// TableName returns the database table name.
func (Record) TableName() string {
	return "usage_records"
}

// Stats summarizes an organization's usage over a window.
type Stats struct {
	TotalTokens    int64         `json:"total_tokens"`
	TotalDocuments int64         `json:"total_documents"`
	TotalMessages  int64         `json:"total_messages"`
	ByDay          []*DailyUsage `json:"by_day"`
}

// DailyUsage is one day's worth of usage.
type DailyUsage struct {
	Date        string `json:"date"`
	TotalTokens int64  `json:"total_tokens"`
	Events      int64  `json:"events"`
}
