package services

import (
	"log"
	"time"

	"faith-engagement-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Milestone is a fixed streak-length threshold and its one-time freeze reward.
type Milestone struct {
	Days         int
	Name         string
	FreezeReward int
}

// StreakMilestones is the fixed ascending milestone table. Reward counts are
// monotonically non-decreasing with the threshold.
var StreakMilestones = []Milestone{
	{Days: 7, Name: "week warrior", FreezeReward: 1},
	{Days: 14, Name: "fortnight faithful", FreezeReward: 1},
	{Days: 30, Name: "monthly devoted", FreezeReward: 2},
	{Days: 50, Name: "fifty day faithful", FreezeReward: 2},
	{Days: 100, Name: "century of devotion", FreezeReward: 3},
	{Days: 365, Name: "year of faith", FreezeReward: 5},
}

// CheckMilestone maps a just-incremented streak length to its milestone.
// Total over all ints: any length not in the table yields ok=false.
func CheckMilestone(streakDays int) (Milestone, bool) {
	for _, m := range StreakMilestones {
		if m.Days == streakDays {
			return m, true
		}
	}
	return Milestone{}, false
}

// Code returns the stable slug identifier, e.g. "week-warrior".
func (m Milestone) Code() string {
	return slug.Make(m.Name)
}

// DisplayName title-cases the milestone name for client display,
// e.g. "Week Warrior".
func (m Milestone) DisplayName() string {
	return cases.Title(language.English).String(m.Name)
}

type MilestoneService struct {
	DB *gorm.DB
}

func NewMilestoneService(db *gorm.DB) *MilestoneService {
	return &MilestoneService{DB: db}
}

// Apply records a crossed milestone for a user. Idempotent: the insert is
// keyed uniquely on (user_id, days) and replays hit OnConflict DoNothing, so
// it returns granted=false and the caller must not hand out the reward again.
func (s *MilestoneService) Apply(tx *gorm.DB, userID string, m Milestone, at time.Time) (bool, error) {
	award := models.MilestoneAward{
		ID:             uuid.NewString(),
		UserID:         userID,
		Days:           m.Days,
		Code:           m.Code(),
		Name:           m.DisplayName(),
		FreezesAwarded: m.FreezeReward,
		RewardGranted:  m.FreezeReward > 0,
		AchievedAt:     at,
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "days"}},
		DoNothing: true,
	}).Create(&award)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil // already achieved — no duplicate reward
	}
	log.Printf("🎖️ Milestone achieved: %s → %s (%d days, +%d freeze(s))",
		userID, award.Name, m.Days, m.FreezeReward)
	return true, nil
}

// ListForUser returns every milestone the user has crossed, oldest first.
func (s *MilestoneService) ListForUser(userID string) ([]models.MilestoneAward, error) {
	var awards []models.MilestoneAward
	err := s.DB.Where("user_id = ?", userID).
		Order("days ASC").
		Find(&awards).Error
	return awards, err
}
