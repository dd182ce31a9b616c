package models

import (
	"time"
)

// MilestoneAward: one record per (user, streak-day threshold), ever. The
// composite unique index is what makes milestone application idempotent —
// replayed inserts conflict and are dropped, so rewards are never granted twice.
type MilestoneAward struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID         string    `gorm:"uniqueIndex:idx_milestone_user_days;not null" json:"user_id"`
	Days           int       `gorm:"uniqueIndex:idx_milestone_user_days;not null" json:"days"`
	Code           string    `gorm:"index;not null" json:"code"` // e.g. "week-warrior"
	Name           string    `gorm:"not null" json:"name"`
	FreezesAwarded int       `gorm:"default:0" json:"freezes_awarded"`
	RewardGranted  bool      `gorm:"default:false" json:"reward_granted"`
	AchievedAt     time.Time `json:"achieved_at"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}
