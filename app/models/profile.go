package models

import (
	"time"

	"gorm.io/gorm"
)

// Profile holds a user's structured career data. It is the source material
// for resume and cover letter generation.
type Profile struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UserID         uint           `gorm:"not null;index" json:"user_id"`
	Title          string         `gorm:"type:varchar(200);not null" json:"title" validate:"required,min=1,max=200"`
	Headline       string         `gorm:"type:varchar(255);default:''" json:"headline" validate:"max=255"`
	Summary        string         `gorm:"type:text" json:"summary"`
	Location       string         `gorm:"type:varchar(150);default:''" json:"location"`
	Phone          string         `gorm:"type:varchar(50);default:''" json:"phone"`
	ContactEmail   string         `gorm:"type:varchar(200);default:''" json:"contact_email" validate:"omitempty,email"`
	WebsiteURL     string         `gorm:"type:varchar(255);default:''" json:"website_url" validate:"omitempty,url"`
	LinkedInURL    string         `gorm:"type:varchar(255);default:''" json:"linkedin_url" validate:"omitempty,url"`
	ExperienceJSON string         `gorm:"type:longtext" json:"experience_json"`
	EducationJSON  string         `gorm:"type:longtext" json:"education_json"`
	SkillsJSON     string         `gorm:"type:longtext" json:"skills_json"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}
