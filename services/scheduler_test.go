package services

import (
	"testing"
	"time"

	"faith-engagement-system/models"
	"faith-engagement-system/utils"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

func newTestScheduler(t *testing.T, db *gorm.DB, clock clockwork.Clock) *MaintenanceScheduler {
	t.Helper()
	m, err := NewMaintenanceScheduler(db, clock, SchedulerConfig{
		DailyResetCron: "0 0 * * *",
		UsageResetCron: "5 0 * * *",
		WeeklyTrimCron: "30 2 * * 0",
		BatchSize:      2, // small batches to exercise the cursor
	})
	if err != nil {
		t.Fatalf("NewMaintenanceScheduler: %v", err)
	}
	return m
}

func seedState(t *testing.T, db *gorm.DB, userID string, mut func(*models.EngagementState)) {
	t.Helper()
	st := &models.EngagementState{
		ID:             uuid.NewString(),
		UserID:         userID,
		RecentSessions: models.SessionList{},
	}
	mut(st)
	if err := db.Create(st).Error; err != nil {
		t.Fatalf("seed %s: %v", userID, err)
	}
}

func TestDailyReconciliation(t *testing.T) {
	db := newTestDB(t)
	clock := clockwork.NewFakeClockAt(testEpoch) // 2026-06-01
	m := newTestScheduler(t, db, clock)

	today := utils.DateOf(testEpoch, "")
	yesterday := today.AddDays(-1)
	threeDaysAgo := today.AddDays(-3)

	seedState(t, db, "active", func(st *models.EngagementState) {
		st.CurrentStreak = 5
		st.LastActiveDate = today
		st.TodayCompleted = true
		st.GoalVerse = true
		st.GoalPrayer = true
		st.FreezesAvailable = 1
	})
	seedState(t, db, "missed-two", func(st *models.EngagementState) {
		st.CurrentStreak = 4
		st.LastActiveDate = threeDaysAgo
		st.FreezesAvailable = 2
	})
	seedState(t, db, "missed-one-frozen", func(st *models.EngagementState) {
		st.CurrentStreak = 3
		st.LastActiveDate = yesterday
		st.FreezesAvailable = 2
	})
	seedState(t, db, "missed-one-broke", func(st *models.EngagementState) {
		st.CurrentStreak = 3
		st.LastActiveDate = yesterday
		st.FreezesAvailable = 0
	})
	seedState(t, db, "never-started", func(st *models.EngagementState) {
		st.CurrentStreak = 0
		st.LastActiveDate = threeDaysAgo
		st.FreezesAvailable = 3
	})

	m.RunDailyReconciliation()

	store := NewStateStore(db)
	check := func(userID string, streak, freezes int) *models.EngagementState {
		t.Helper()
		st, err := store.Load(userID)
		if err != nil {
			t.Fatalf("load %s: %v", userID, err)
		}
		if st.CurrentStreak != streak {
			t.Errorf("%s: currentStreak = %d, want %d", userID, st.CurrentStreak, streak)
		}
		if st.FreezesAvailable != freezes {
			t.Errorf("%s: freezes = %d, want %d", userID, st.FreezesAvailable, freezes)
		}
		if st.TodayCompleted {
			t.Errorf("%s: todayCompleted must be reset", userID)
		}
		for category, done := range st.DailyGoals() {
			if done {
				t.Errorf("%s: goal %s must be reset", userID, category)
			}
		}
		return st
	}

	check("active", 5, 1)
	reset := check("missed-two", 0, 2)
	if reset.StreakStartDate != today {
		t.Errorf("missed-two: streakStartDate = %v, want %v", reset.StreakStartDate, today)
	}
	check("missed-one-frozen", 3, 1) // freeze paid for the gap
	check("missed-one-broke", 3, 0)  // nothing to spend; real-time path will reset
	check("never-started", 0, 3)     // zero streaks are left alone

	// The stale-streak branch is idempotent: a second run changes nothing
	// for the already-reset user.
	m.RunDailyReconciliation()
	again, _ := store.Load("missed-two")
	if again.CurrentStreak != 0 || again.FreezesAvailable != 2 {
		t.Errorf("missed-two after rerun: streak=%d freezes=%d", again.CurrentStreak, again.FreezesAvailable)
	}
}

func TestReconciliationResetsBeforeNextIngest(t *testing.T) {
	// Scenario: sessions on day D and D+1, then silence. The sweep on D+3
	// finds no freeze to spend and resets the streak before the user's next
	// session arrives.
	db := newTestDB(t)
	clock := clockwork.NewFakeClockAt(testEpoch)
	svc := NewEngagementService(db, clock, 3)
	m := newTestScheduler(t, db, clock)

	svc.RecordSession("user-c", SessionInput{DurationSeconds: i64(100), Timestamp: tp(testEpoch)})
	svc.RecordSession("user-c", SessionInput{DurationSeconds: i64(100), Timestamp: tp(testEpoch.AddDate(0, 0, 1))})

	// Drain the freeze balance so nothing can pay for the gap.
	if err := db.Model(&models.EngagementState{}).
		Where("user_id = ?", "user-c").
		Updates(map[string]interface{}{
			"freezes_available": 0,
			"version":           gorm.Expr("version + 1"),
		}).Error; err != nil {
		t.Fatalf("drain freezes: %v", err)
	}

	clock.Advance(72 * time.Hour) // sweep fires on D+3
	m.RunDailyReconciliation()

	st, err := svc.Store.Load("user-c")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st.CurrentStreak != 0 {
		t.Errorf("currentStreak = %d, want 0 (reset by maintenance before next ingest)", st.CurrentStreak)
	}
}

func TestDailyUsageReset(t *testing.T) {
	db := newTestDB(t)
	clock := clockwork.NewFakeClockAt(testEpoch)
	m := newTestScheduler(t, db, clock)

	yesterdayEvening := testEpoch.Add(-18 * time.Hour)
	thisMorning := testEpoch.Add(-2 * time.Hour)

	seedState(t, db, "stale-usage", func(st *models.EngagementState) {
		st.TodayTimeSpentSeconds = 1800
		st.TotalTimeSpentSeconds = 7200
		st.LastOpenedAt = tp(yesterdayEvening)
	})
	seedState(t, db, "fresh-usage", func(st *models.EngagementState) {
		st.TodayTimeSpentSeconds = 600
		st.TotalTimeSpentSeconds = 600
		st.LastOpenedAt = tp(thisMorning)
	})

	m.RunDailyUsageReset()

	store := NewStateStore(db)
	stale, _ := store.Load("stale-usage")
	if stale.TodayTimeSpentSeconds != 0 {
		t.Errorf("stale todayTime = %d, want 0", stale.TodayTimeSpentSeconds)
	}
	if stale.TotalTimeSpentSeconds != 7200 {
		t.Errorf("stale totalTime = %d, must be untouched", stale.TotalTimeSpentSeconds)
	}

	fresh, _ := store.Load("fresh-usage")
	if fresh.TodayTimeSpentSeconds != 600 {
		t.Errorf("fresh todayTime = %d, must be untouched", fresh.TodayTimeSpentSeconds)
	}
}

func TestWeeklyTrim(t *testing.T) {
	db := newTestDB(t)
	clock := clockwork.NewFakeClockAt(testEpoch)
	m := newTestScheduler(t, db, clock)

	// 14 entries, oldest first (durations 1..14), e.g. imported history.
	oversized := make(models.SessionList, 0, 14)
	for i := 1; i <= 14; i++ {
		oversized = append(oversized, models.SessionSummary{
			At:              testEpoch.Add(time.Duration(i) * time.Hour),
			DurationSeconds: int64(i),
		})
	}
	seedState(t, db, "hoarder", func(st *models.EngagementState) {
		st.RecentSessions = oversized
	})
	seedState(t, db, "tidy", func(st *models.EngagementState) {
		st.RecentSessions = models.SessionList{{At: testEpoch, DurationSeconds: 42}}
	})

	m.RunWeeklyTrim()

	store := NewStateStore(db)
	hoarder, _ := store.Load("hoarder")
	if len(hoarder.RecentSessions) != models.MaxRecentSessions {
		t.Fatalf("trimmed length = %d, want %d", len(hoarder.RecentSessions), models.MaxRecentSessions)
	}
	if hoarder.RecentSessions[0].DurationSeconds != 5 {
		t.Errorf("oldest kept = %d, want 5 (first four evicted)", hoarder.RecentSessions[0].DurationSeconds)
	}
	if hoarder.RecentSessions[9].DurationSeconds != 14 {
		t.Errorf("newest kept = %d, want 14 (newest last)", hoarder.RecentSessions[9].DurationSeconds)
	}

	tidy, _ := store.Load("tidy")
	if len(tidy.RecentSessions) != 1 {
		t.Errorf("tidy user's history must be untouched, got %d entries", len(tidy.RecentSessions))
	}

	// Re-run is a no-op.
	m.RunWeeklyTrim()
	again, _ := store.Load("hoarder")
	if len(again.RecentSessions) != models.MaxRecentSessions {
		t.Errorf("rerun changed length to %d", len(again.RecentSessions))
	}
}
