package slack

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Installation is a Slack workspace connected to an organization.
type Installation struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID       uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null" json:"org_id"`
	TeamID      string         `gorm:"not null" json:"team_id"`
	TeamName    string         `json:"team_name"`
	AccessToken string         `gorm:"not null" json:"-"`
	Scopes      pq.StringArray `gorm:"type:text[]" json:"scopes"`
	InstalledBy uuid.UUID      `gorm:"type:uuid" json:"installed_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TableName returns the database table name.
func (Installation) TableName() string {
	return "slack_installations"
}

// NotifyRequest is the payload for posting a message to Slack.
type NotifyRequest struct {
	Channel string `json:"channel" binding:"required"`
	Text    string `json:"text" binding:"required"`
}

// Slack errors.
var (
	ErrNotInstalled  = errors.New("slack is not installed for this organization")
	ErrInvalidState  = errors.New("invalid or expired oauth state")
	ErrSlackAPI      = errors.New("slack api error")
	ErrCircuitOpen   = errors.New("slack is temporarily unavailable")
	ErrMissingTeamID = errors.New("slack token response is missing the team id")
)
