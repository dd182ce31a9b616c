package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"faith-engagement-system/utils"

	"gorm.io/gorm"
)

// MaxRecentSessions bounds the embedded session history ring.
const MaxRecentSessions = 10

// BaseXPPerLevel: flat 100 XP per level. Level and XPToNextLevel are always
// derived from TotalXP, never stored, so they can never drift out of sync.
const BaseXPPerLevel = 100

// SessionSummary is one entry in the bounded recent-session history.
type SessionSummary struct {
	At              time.Time `json:"at"`
	DurationSeconds int64     `json:"duration_seconds"`
	ActivityCount   int       `json:"activity_count"`
}

// SessionList stores recent sessions as a JSON text column (newest last).
type SessionList []SessionSummary

func (l SessionList) Value() (driver.Value, error) {
	if l == nil {
		l = SessionList{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *SessionList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = SessionList{}
		return nil
	case string:
		if v == "" {
			*l = SessionList{}
			return nil
		}
		return json.Unmarshal([]byte(v), l)
	case []byte:
		if len(v) == 0 {
			*l = SessionList{}
			return nil
		}
		return json.Unmarshal(v, l)
	default:
		return fmt.Errorf("cannot scan %T into SessionList", src)
	}
}

// EngagementState is the per-user engagement aggregate (denormalized for
// performance, one row per user). Both the real-time session path and the
// maintenance sweeps read-modify-write this row; every write must go through
// the optimistic Version check in services.StateStore.
type EngagementState struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"uniqueIndex;not null" json:"user_id"` // links to profile service

	// Streak block. CurrentStreak is "consecutive active days minus one":
	// the first active day is streak 0, rendered to users as day 1.
	CurrentStreak    int        `json:"current_streak" gorm:"default:0"`
	LongestStreak    int        `json:"longest_streak" gorm:"default:0"`
	TotalActiveDays  int        `json:"total_active_days" gorm:"default:0"`
	LastActiveDate   utils.Date `json:"last_active_date" gorm:"type:text"`
	StreakStartDate  utils.Date `json:"streak_start_date" gorm:"type:text"`
	FreezesAvailable int        `json:"freezes_available" gorm:"default:0"`
	TodayCompleted   bool       `json:"today_completed" gorm:"default:false"`

	// Daily goals: exactly 5 fixed categories, all reset to false by the
	// daily maintenance job.
	GoalVerse      bool `json:"goal_verse" gorm:"default:false"`
	GoalPrayer     bool `json:"goal_prayer" gorm:"default:false"`
	GoalReflection bool `json:"goal_reflection" gorm:"default:false"`
	GoalAIChat     bool `json:"goal_ai_chat" gorm:"column:goal_ai_chat;default:false"`
	GoalCommunity  bool `json:"goal_community" gorm:"default:false"`

	// Usage block.
	TotalSessions         int64       `json:"total_sessions" gorm:"default:0"`
	TotalTimeSpentSeconds int64       `json:"total_time_spent_seconds" gorm:"default:0"`
	TodayTimeSpentSeconds int64       `json:"today_time_spent_seconds" gorm:"default:0"`
	TodayUsageDate        utils.Date  `json:"today_usage_date" gorm:"type:text"`
	LastOpenedAt          *time.Time  `json:"last_opened_at,omitempty"`
	RecentSessions        SessionList `json:"recent_sessions" gorm:"type:text"`

	// XP block.
	TotalXP     int64      `json:"total_xp" gorm:"column:total_xp;default:0"`
	TodayXP     int64      `json:"today_xp" gorm:"column:today_xp;default:0"`
	TodayXPDate utils.Date `json:"today_xp_date" gorm:"column:today_xp_date;type:text"`

	// Version is bumped on every successful save; writers must pass the
	// version they loaded and re-read on mismatch.
	Version int64 `json:"version" gorm:"default:0"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// Level derives the display level from total XP: floor(totalXP/100)+1.
func (s *EngagementState) Level() int {
	return int(s.TotalXP/BaseXPPerLevel) + 1
}

// XPToNextLevel derives remaining XP for the next level-up. At an exact
// multiple of 100 a full 100 is required (convention: never 0 remaining).
func (s *EngagementState) XPToNextLevel() int64 {
	return BaseXPPerLevel - s.TotalXP%BaseXPPerLevel
}

// CompletedGoals counts how many of the 5 daily goals are done today.
func (s *EngagementState) CompletedGoals() int {
	n := 0
	for _, done := range []bool{s.GoalVerse, s.GoalPrayer, s.GoalReflection, s.GoalAIChat, s.GoalCommunity} {
		if done {
			n++
		}
	}
	return n
}

// GoalProgressPercentage is completed/5*100, rounded to the nearest integer.
func (s *EngagementState) GoalProgressPercentage() int {
	return (s.CompletedGoals()*100 + 2) / 5 // 5 goals; +2 rounds to nearest
}

// SetGoal flags one of the 5 daily-goal categories complete. Unknown
// categories are ignored (unknown activity types carry no goal mapping).
func (s *EngagementState) SetGoal(category string) {
	switch category {
	case GoalCategoryVerse:
		s.GoalVerse = true
	case GoalCategoryPrayer:
		s.GoalPrayer = true
	case GoalCategoryReflection:
		s.GoalReflection = true
	case GoalCategoryAIChat:
		s.GoalAIChat = true
	case GoalCategoryCommunity:
		s.GoalCommunity = true
	}
}

// Goal category names, fixed at 5.
const (
	GoalCategoryVerse      = "verse"
	GoalCategoryPrayer     = "prayer"
	GoalCategoryReflection = "reflection"
	GoalCategoryAIChat     = "aiChat"
	GoalCategoryCommunity  = "community"
)

// DailyGoals returns the 5 goal flags keyed by category name.
func (s *EngagementState) DailyGoals() map[string]bool {
	return map[string]bool{
		GoalCategoryVerse:      s.GoalVerse,
		GoalCategoryPrayer:     s.GoalPrayer,
		GoalCategoryReflection: s.GoalReflection,
		GoalCategoryAIChat:     s.GoalAIChat,
		GoalCategoryCommunity:  s.GoalCommunity,
	}
}

// PushSession appends a session summary, evicting the oldest past the cap.
func (s *EngagementState) PushSession(sum SessionSummary) {
	s.RecentSessions = append(s.RecentSessions, sum)
	if len(s.RecentSessions) > MaxRecentSessions {
		s.RecentSessions = s.RecentSessions[len(s.RecentSessions)-MaxRecentSessions:]
	}
}

// UpdateColumns builds the full mutable-column map for the optimistic
// conditional UPDATE. A map (not a struct) so zero values like a reset streak
// are written rather than skipped by GORM.
func (s *EngagementState) UpdateColumns() map[string]interface{} {
	return map[string]interface{}{
		"current_streak":           s.CurrentStreak,
		"longest_streak":           s.LongestStreak,
		"total_active_days":        s.TotalActiveDays,
		"last_active_date":         s.LastActiveDate,
		"streak_start_date":        s.StreakStartDate,
		"freezes_available":        s.FreezesAvailable,
		"today_completed":          s.TodayCompleted,
		"goal_verse":               s.GoalVerse,
		"goal_prayer":              s.GoalPrayer,
		"goal_reflection":          s.GoalReflection,
		"goal_ai_chat":             s.GoalAIChat,
		"goal_community":           s.GoalCommunity,
		"total_sessions":           s.TotalSessions,
		"total_time_spent_seconds": s.TotalTimeSpentSeconds,
		"today_time_spent_seconds": s.TodayTimeSpentSeconds,
		"today_usage_date":         s.TodayUsageDate,
		"last_opened_at":           s.LastOpenedAt,
		"recent_sessions":          s.RecentSessions,
		"total_xp":                 s.TotalXP,
		"today_xp":                 s.TodayXP,
		"today_xp_date":            s.TodayXPDate,
		"version":                  s.Version,
	}
}
