package services

import (
	"errors"
	"sync"
	"time"

	"faith-engagement-system/models"

	"gorm.io/gorm"
)

// Leaderboard orderings accepted from the client, mapped to their columns.
// The map doubles as a whitelist so a query param never reaches SQL raw.
var leaderboardColumns = map[string]string{
	"current_streak":    "current_streak",
	"longest_streak":    "longest_streak",
	"total_active_days": "total_active_days",
}

// DefaultLeaderboardOrdering is used when the client does not pick one.
const DefaultLeaderboardOrdering = "current_streak"

// LeaderboardEntry is one row of a ranked read view.
type LeaderboardEntry struct {
	Rank            int    `json:"rank" gorm:"-"`
	UserID          string `json:"user_id"`
	CurrentStreak   int    `json:"current_streak"`
	LongestStreak   int    `json:"longest_streak"`
	TotalActiveDays int    `json:"total_active_days"`
}

// LeaderboardService serves read-only ranked projections. No mutation; reads
// tolerate staleness (as of the last successful ingest or sweep). The hot
// top-N list is additionally served from an in-memory snapshot refreshed by a
// background worker so it avoids a table scan per request.
type LeaderboardService struct {
	DB *gorm.DB

	mu          sync.RWMutex
	snapshots   map[string][]LeaderboardEntry
	refreshedAt time.Time
}

func NewLeaderboardService(db *gorm.DB) *LeaderboardService {
	return &LeaderboardService{
		DB:        db,
		snapshots: make(map[string][]LeaderboardEntry),
	}
}

// Top returns the highest-ranked users under the given ordering. Ties break
// by user id so the ordering is total and stable across calls.
func (s *LeaderboardService) Top(by string, limit int) ([]LeaderboardEntry, error) {
	column, ok := leaderboardColumns[by]
	if !ok {
		return nil, ErrInvalidInput
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var entries []LeaderboardEntry
	err := s.DB.Model(&models.EngagementState{}).
		Select("user_id, current_streak, longest_streak, total_active_days").
		Order(column + " DESC, user_id ASC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// RankFor computes the caller's own rank under the same ordering Top uses:
// 1 + the number of users strictly ahead of them.
func (s *LeaderboardService) RankFor(userID, by string) (*LeaderboardEntry, error) {
	column, ok := leaderboardColumns[by]
	if !ok {
		return nil, ErrInvalidInput
	}

	var state models.EngagementState
	if err := s.DB.Where("user_id = ?", userID).First(&state).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	value := map[string]int{
		"current_streak":    state.CurrentStreak,
		"longest_streak":    state.LongestStreak,
		"total_active_days": state.TotalActiveDays,
	}[by]

	var ahead int64
	err := s.DB.Model(&models.EngagementState{}).
		Where(column+" > ? OR ("+column+" = ? AND user_id < ?)", value, value, userID).
		Count(&ahead).Error
	if err != nil {
		return nil, err
	}

	return &LeaderboardEntry{
		Rank:            int(ahead) + 1,
		UserID:          state.UserID,
		CurrentStreak:   state.CurrentStreak,
		LongestStreak:   state.LongestStreak,
		TotalActiveDays: state.TotalActiveDays,
	}, nil
}

// RefreshSnapshot recomputes the cached top lists for every ordering.
func (s *LeaderboardService) RefreshSnapshot(limit int) error {
	fresh := make(map[string][]LeaderboardEntry, len(leaderboardColumns))
	for by := range leaderboardColumns {
		entries, err := s.Top(by, limit)
		if err != nil {
			return err
		}
		fresh[by] = entries
	}

	s.mu.Lock()
	s.snapshots = fresh
	s.refreshedAt = time.Now()
	s.mu.Unlock()
	return nil
}

// CachedTop returns the snapshot for an ordering, if one has been taken.
func (s *LeaderboardService) CachedTop(by string) ([]LeaderboardEntry, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, ok := s.snapshots[by]
	if !ok || entries == nil {
		return nil, time.Time{}, false
	}
	return entries, s.refreshedAt, true
}
