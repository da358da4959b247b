package models

import "time"

// Interaction records one content generation call against the external
// completion API. Each interaction consumes one `interactions` quota unit.
type Interaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	ProfileID   uint      `gorm:"index;default:0" json:"profile_id"`
	Kind        string    `gorm:"type:varchar(30);not null;index" json:"kind"`
	Model       string    `gorm:"type:varchar(100);default:''" json:"model"`
	PromptChars int       `gorm:"not null;default:0" json:"prompt_chars"`
	OutputChars int       `gorm:"not null;default:0" json:"output_chars"`
	Succeeded   bool      `gorm:"default:false;index" json:"succeeded"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
