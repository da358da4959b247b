package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	OpportunityStageWishlist  = "wishlist"
	OpportunityStageApplied   = "applied"
	OpportunityStageInterview = "interview"
	OpportunityStageOffer     = "offer"
	OpportunityStageRejected  = "rejected"
)

// Opportunity is a tracked job application moving through the pipeline stages.
type Opportunity struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	Company     string         `gorm:"type:varchar(200);not null" json:"company" validate:"required,min=1,max=200"`
	RoleTitle   string         `gorm:"type:varchar(200);not null" json:"role_title" validate:"required,min=1,max=200"`
	Stage       string         `gorm:"type:varchar(30);not null;default:'wishlist';index" json:"stage" validate:"oneof=wishlist applied interview offer rejected"`
	PostingURL  string         `gorm:"type:varchar(500);default:''" json:"posting_url" validate:"omitempty,url"`
	Location    string         `gorm:"type:varchar(150);default:''" json:"location"`
	SalaryRange string         `gorm:"type:varchar(100);default:''" json:"salary_range"`
	Notes       string         `gorm:"type:text" json:"notes"`
	AppliedAt   *time.Time     `gorm:"type:timestamp;default:null" json:"applied_at,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// ValidStage reports whether stage is a known pipeline stage.
func ValidStage(stage string) bool {
	switch stage {
	case OpportunityStageWishlist, OpportunityStageApplied, OpportunityStageInterview,
		OpportunityStageOffer, OpportunityStageRejected:
		return true
	default:
		return false
	}
}
