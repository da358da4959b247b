package models

import (
	"time"

	"gorm.io/gorm"
)

// Recruiter is a contact a user keeps in their job-search address book,
// optionally linked to a tracked opportunity.
type Recruiter struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UserID        uint           `gorm:"not null;index" json:"user_id"`
	OpportunityID *uint          `gorm:"index;default:null" json:"opportunity_id,omitempty"`
	Name          string         `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=1,max=150"`
	Company       string         `gorm:"type:varchar(200);default:''" json:"company"`
	Email         string         `gorm:"type:varchar(200);default:''" json:"email" validate:"omitempty,email"`
	Phone         string         `gorm:"type:varchar(50);default:''" json:"phone"`
	LinkedInURL   string         `gorm:"type:varchar(255);default:''" json:"linkedin_url" validate:"omitempty,url"`
	Notes         string         `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}
