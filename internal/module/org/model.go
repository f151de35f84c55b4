package org

import (
	"time"

	"github.com/google/uuid"
)

// Organization is the tenant unit. Plans and usage counters attach to
// organizations, not users.
type Organization struct {
	ID               uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name             string    `json:"name" gorm:"not null"`
	Slug             string    `json:"slug" gorm:"uniqueIndex;not null"`
	StripeCustomerID string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (Organization) TableName() string {
	return "organizations"
}

// Role of a member within an organization.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Membership links a user to an organization. The seat limit counts
// memberships, not users.
type Membership struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrgID     uuid.UUID `json:"org_id" gorm:"type:uuid;uniqueIndex:idx_org_user;not null"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;uniqueIndex:idx_org_user;not null"`
	Email     string    `json:"email" gorm:"not null"`
	Role      Role      `json:"role" gorm:"not null;default:member"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name.
func (Membership) TableName() string {
	return "org_memberships"
}

// CreateOrgRequest is the request body for creating an organization.
type CreateOrgRequest struct {
	Name string `json:"name" binding:"required,max=120"`
	Slug string `json:"slug" binding:"required,max=60"`
}

// AddMemberRequest is the request body for adding a member.
type AddMemberRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	Email  string    `json:"email" binding:"required,email"`
	Role   Role      `json:"role"`
}
