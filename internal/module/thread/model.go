package thread

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Thread is a question-and-answer conversation within a project.
type Thread struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID     uuid.UUID `gorm:"type:uuid;index;not null" json:"org_id"`
	ProjectID uuid.UUID `gorm:"type:uuid;index;not null" json:"project_id"`
	CreatorID uuid.UUID `gorm:"type:uuid;not null" json:"creator_id"`
	Title     string    `gorm:"not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (Thread) TableName() string {
	return "threads"
}

// Citation points at the document passage an answer was grounded on.
type Citation struct {
	DocumentID uuid.UUID `json:"document_id"`
	Page       int       `json:"page"`
	Snippet    string    `json:"snippet,omitempty"`
}

// Message is one turn in a thread. Assistant messages carry the token
// spend of producing them and the citations backing the answer.
type Message struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ThreadID  uuid.UUID  `gorm:"type:uuid;index;not null" json:"thread_id"`
	OrgID     uuid.UUID  `gorm:"type:uuid;index;not null" json:"org_id"`
	AuthorID  uuid.UUID  `gorm:"type:uuid" json:"author_id,omitempty"`
	Role      Role       `gorm:"not null" json:"role"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	Citations []Citation `gorm:"serializer:json;type:jsonb" json:"citations,omitempty"`
	Tokens    int64      `json:"tokens,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName returns the database table name.
func (Message) TableName() string {
	return "messages"
}

// CreateThreadRequest is the payload for creating a thread.
type CreateThreadRequest struct {
	ProjectID uuid.UUID `json:"project_id" binding:"required"`
	Title     string    `json:"title" binding:"required,max=300"`
}

// PostMessageRequest is the payload for asking a question in a thread.
// MaxTokens bounds the spend reserved for answering; the monthly token
// check projects it against the plan's cap.
type PostMessageRequest struct {
	Content   string `json:"content" binding:"required"`
	MaxTokens int64  `json:"max_tokens" binding:"omitempty,min=1"`
}

// AssistantMessageInput records an answer produced by the answering
// pipeline, with the tokens it actually consumed.
type AssistantMessageInput struct {
	Content   string     `json:"content" binding:"required"`
	Citations []Citation `json:"citations"`
	Tokens    int64      `json:"tokens" binding:"omitempty,min=0"`
}
