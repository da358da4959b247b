package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ResumeKindResume      = "resume"
	ResumeKindCoverLetter = "cover_letter"
	ResumeKindLinkedInBio = "linkedin_bio"
)

// Resume is one generated or hand-edited document derived from a profile.
// Cover letters and LinkedIn bios share the table, distinguished by Kind.
type Resume struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	ProfileID   uint           `gorm:"not null;index" json:"profile_id"`
	Kind        string         `gorm:"type:varchar(30);not null;default:'resume';index" json:"kind" validate:"oneof=resume cover_letter linkedin_bio"`
	Title       string         `gorm:"type:varchar(200);not null" json:"title" validate:"required,min=1,max=200"`
	TargetRole  string         `gorm:"type:varchar(200);default:''" json:"target_role"`
	ContentJSON string         `gorm:"type:longtext" json:"content_json"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
