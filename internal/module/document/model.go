package document

import (
	"time"

	"github.com/google/uuid"
)

// Project groups documents and question threads.
type Project struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID     uuid.UUID `gorm:"type:uuid;index;not null" json:"org_id"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (Project) TableName() string {
	return "projects"
}

// CreateProjectRequest is the payload for creating a project.
type CreateProjectRequest struct {
	Name string `json:"name" binding:"required,max=200"`
}

// Status tracks a document through the ingestion pipeline.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusIngested   Status = "ingested"
	StatusEmbedded   Status = "embedded"
	StatusFailed     Status = "failed"
)

// Document is an uploaded PDF belonging to an organization.
type Document struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID       uuid.UUID `gorm:"type:uuid;index;not null" json:"org_id"`
	ProjectID   uuid.UUID `gorm:"type:uuid;index" json:"project_id,omitempty"`
	UploaderID  uuid.UUID `gorm:"type:uuid;not null" json:"uploader_id"`
	Filename    string    `gorm:"not null" json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `gorm:"not null" json:"size_bytes"`
	StorageKey  string    `gorm:"uniqueIndex;not null" json:"-"`
	Status      Status    `gorm:"not null;default:'uploaded'" json:"status"`
	PageCount   int       `json:"page_count"`
	FailReason  string    `json:"fail_reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (Document) TableName() string {
	return "documents"
}

// SizeMB returns the document size rounded up to whole megabytes.
func (d *Document) SizeMB() int64 {
	const mb = 1 << 20
	return (d.SizeBytes + mb - 1) / mb
}
