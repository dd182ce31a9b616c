package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"faith-engagement-system/models"
	"faith-engagement-system/utils"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// ActivityXP is the static XP value table. Types missing here fall back to
// the caller-supplied xpEarned — a documented trust-boundary concession to
// older clients that shipped their own values.
var ActivityXP = map[string]int64{
	"daily_verse_read":  10,
	"verse_share":       5,
	"verse_bookmark":    5,
	"prayer":            15,
	"prayer_request":    10,
	"reflection":        20,
	"journal_entry":     15,
	"ai_chat_message":   5,
	"community_post":    10,
	"community_comment": 5,
}

// ActivityGoal maps activity types onto the 5 daily-goal categories.
// Unknown types complete no goal.
var ActivityGoal = map[string]string{
	"daily_verse_read":  models.GoalCategoryVerse,
	"verse_share":       models.GoalCategoryVerse,
	"verse_bookmark":    models.GoalCategoryVerse,
	"prayer":            models.GoalCategoryPrayer,
	"prayer_request":    models.GoalCategoryPrayer,
	"reflection":        models.GoalCategoryReflection,
	"journal_entry":     models.GoalCategoryReflection,
	"ai_chat_message":   models.GoalCategoryAIChat,
	"community_post":    models.GoalCategoryCommunity,
	"community_comment": models.GoalCategoryCommunity,
}

// SessionActivity is one reported activity within a session.
type SessionActivity struct {
	Type      string     `json:"type"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	XPEarned  *int64     `json:"xpEarned,omitempty"`
}

// SessionInput is the ingest request body after JSON decoding.
type SessionInput struct {
	DurationSeconds  *int64            `json:"durationSeconds"`
	Timestamp        *time.Time        `json:"timestamp,omitempty"`
	SessionStartTime *time.Time        `json:"sessionStartTime,omitempty"`
	SessionEndTime   *time.Time        `json:"sessionEndTime,omitempty"`
	Timezone         string            `json:"timezone,omitempty"`
	Activities       []SessionActivity `json:"activities,omitempty"`
}

// SessionResult is what a successful ingest returns: the committed state plus
// the display extras the client renders.
type SessionResult struct {
	State         *models.EngagementState
	StreakMessage string
	IsNewStreak   bool
	Milestone     *Milestone // non-nil only when newly granted by this call
}

// EngagementService is the synchronous session ingest engine. One invocation
// per reported session; freezes are never consulted here — spending them is
// the maintenance sweep's job.
type EngagementService struct {
	Store      *StateStore
	Milestones *MilestoneService

	clock           clockwork.Clock
	startingFreezes int
}

func NewEngagementService(db *gorm.DB, clock clockwork.Clock, startingFreezes int) *EngagementService {
	return &EngagementService{
		Store:           NewStateStore(db),
		Milestones:      NewMilestoneService(db),
		clock:           clock,
		startingFreezes: startingFreezes,
	}
}

// RecordSession validates, computes and commits one reported session.
// On a version conflict the whole computation is retried once from a fresh
// load; a second conflict surfaces as retryable ErrConflict to the caller.
func (s *EngagementService) RecordSession(userID string, in SessionInput) (*SessionResult, error) {
	if userID == "" || in.DurationSeconds == nil || *in.DurationSeconds < 0 {
		return nil, ErrInvalidInput
	}

	res, err := s.recordOnce(userID, in)
	if errors.Is(err, ErrConflict) {
		log.Printf("⚠️ [INGEST] Version conflict for user %s — retrying from fresh load", userID)
		res, err = s.recordOnce(userID, in)
	}
	return res, err
}

func (s *EngagementService) recordOnce(userID string, in SessionInput) (*SessionResult, error) {
	now := s.clock.Now()
	at := now
	if in.Timestamp != nil {
		at = *in.Timestamp
	}
	today := utils.DateOf(at, in.Timezone)

	state, err := s.Store.Load(userID)
	if errors.Is(err, ErrNotFound) {
		return s.recordFirst(userID, in, today, now)
	}
	if err != nil {
		return nil, err
	}

	expected := state.Version
	delta := utils.Delta(state.LastActiveDate, today)
	if delta < 0 {
		return nil, ErrInvalidTimestamp
	}

	isNewStreak := false
	var crossed *Milestone
	switch {
	case delta == 0:
		// Already active today — streak untouched.
	case delta == 1:
		state.CurrentStreak++
		state.TotalActiveDays++
		if state.CurrentStreak > state.LongestStreak {
			state.LongestStreak = state.CurrentStreak
		}
		if m, ok := CheckMilestone(state.CurrentStreak); ok {
			crossed = &m
		}
		state.LastActiveDate = today
		isNewStreak = true
	default:
		// Missed ≥1 full day. The real-time path resets unconditionally;
		// freeze spending happens only in the maintenance sweep between
		// sessions, so by the time we see delta>1 the freeze either already
		// paid for the gap (then delta would be 1) or the streak is gone.
		state.CurrentStreak = 0
		state.TotalActiveDays++
		state.StreakStartDate = today
		state.LastActiveDate = today
	}

	s.applyUsage(state, in, today, now)
	s.applyActivities(state, in.Activities, today)
	state.TodayCompleted = true

	var granted bool
	err = s.Store.DB.Transaction(func(tx *gorm.DB) error {
		if crossed != nil {
			ok, err := s.Milestones.Apply(tx, userID, *crossed, now)
			if err != nil {
				return err
			}
			if ok {
				state.FreezesAvailable += crossed.FreezeReward
				granted = true
			}
		}
		return s.Store.SaveTx(tx, state, expected)
	})
	if err != nil {
		return nil, err
	}

	result := &SessionResult{
		State:         state,
		StreakMessage: streakMessage(delta, state),
		IsNewStreak:   isNewStreak,
	}
	if granted {
		result.Milestone = crossed
	}
	return result, nil
}

// recordFirst lazily creates the aggregate on a user's very first session.
func (s *EngagementService) recordFirst(userID string, in SessionInput, today utils.Date, now time.Time) (*SessionResult, error) {
	state := &models.EngagementState{
		ID:               uuid.NewString(),
		UserID:           userID,
		CurrentStreak:    0,
		TotalActiveDays:  1,
		LastActiveDate:   today,
		StreakStartDate:  today,
		FreezesAvailable: s.startingFreezes,
		RecentSessions:   models.SessionList{},
	}
	s.applyUsage(state, in, today, now)
	s.applyActivities(state, in.Activities, today)
	state.TodayCompleted = true

	if err := s.Store.Create(state); err != nil {
		// Duplicate insert: a concurrent first session won the race. Surface
		// as conflict so RecordSession retries against the existing row.
		return nil, err
	}

	log.Printf("🌱 [INGEST] New engagement state created for user %s", userID)
	return &SessionResult{
		State:         state,
		StreakMessage: "Welcome! This is day 1 of your journey.",
		IsNewStreak:   false,
	}, nil
}

func (s *EngagementService) applyUsage(state *models.EngagementState, in SessionInput, today utils.Date, now time.Time) {
	if !state.TodayUsageDate.Equal(today) {
		state.TodayTimeSpentSeconds = 0
		state.TodayUsageDate = today
	}
	duration := *in.DurationSeconds
	state.TodayTimeSpentSeconds += duration
	state.TotalTimeSpentSeconds += duration
	state.TotalSessions++
	state.PushSession(models.SessionSummary{
		At:              now,
		DurationSeconds: duration,
		ActivityCount:   len(in.Activities),
	})
	state.LastOpenedAt = &now
}

func (s *EngagementService) applyActivities(state *models.EngagementState, activities []SessionActivity, today utils.Date) {
	if !state.TodayXPDate.Equal(today) {
		state.TodayXP = 0
		state.TodayXPDate = today
	}
	for _, a := range activities {
		xp, known := ActivityXP[a.Type]
		if !known {
			if a.XPEarned != nil {
				xp = *a.XPEarned
			}
			if xp < 0 {
				xp = 0 // totalXP is monotonic; never let a client subtract
			}
			log.Printf("⚠️ [INGEST] Unknown activity type %q (using xp=%d, no goal mapping)", a.Type, xp)
		}
		state.TotalXP += xp
		state.TodayXP += xp
		if category, ok := ActivityGoal[a.Type]; ok {
			state.SetGoal(category)
		}
	}
}

// EnsureState returns the user's state, creating an empty aggregate if the
// user has never reported a session (read endpoints need something to show).
func (s *EngagementService) EnsureState(userID string) (*models.EngagementState, error) {
	state, err := s.Store.Load(userID)
	if errors.Is(err, ErrNotFound) {
		state = &models.EngagementState{
			ID:               uuid.NewString(),
			UserID:           userID,
			FreezesAvailable: s.startingFreezes,
			RecentSessions:   models.SessionList{},
		}
		if err := s.Store.Create(state); err != nil {
			if errors.Is(err, ErrConflict) {
				return s.Store.Load(userID)
			}
			return nil, err
		}
		return state, nil
	}
	return state, err
}

// GrantFreezes adds support-granted freezes to a user's balance (admin path).
func (s *EngagementService) GrantFreezes(userID string, count int) (*models.EngagementState, error) {
	if userID == "" || count <= 0 {
		return nil, ErrInvalidInput
	}
	for attempt := 0; attempt < 2; attempt++ {
		state, err := s.EnsureState(userID)
		if err != nil {
			return nil, err
		}
		expected := state.Version
		state.FreezesAvailable += count
		if err := s.Store.Save(state, expected); err != nil {
			if errors.Is(err, ErrConflict) {
				continue
			}
			return nil, err
		}
		log.Printf("🧊 Freezes granted: %s +%d (now %d)", userID, count, state.FreezesAvailable)
		return state, nil
	}
	return nil, ErrConflict
}

func streakMessage(delta int, state *models.EngagementState) string {
	switch {
	case delta == 0 && state.CurrentStreak == 0:
		return "Great start! Come back tomorrow to begin a streak."
	case delta == 0:
		return fmt.Sprintf("You're on a %d-day streak. Keep it going!", state.CurrentStreak+1)
	case delta == 1:
		return fmt.Sprintf("%d days in a row! 🔥", state.CurrentStreak+1)
	default:
		return "New streak started. This is day 1!"
	}
}
