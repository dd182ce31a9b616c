// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"faith-engagement-system/models"
	"faith-engagement-system/utils"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// SchedulerConfig holds the three cron expressions (UTC) and the sweep batch
// size. Exact trigger times are deployment configuration, not contract.
type SchedulerConfig struct {
	DailyResetCron string
	UsageResetCron string
	WeeklyTrimCron string
	BatchSize      int
}

// LoadSchedulerConfig reads cron overrides from the environment, falling back
// to the defaults: streak reconciliation at 00:00 UTC, usage reset shortly
// after, history trim early Sunday morning.
func LoadSchedulerConfig() SchedulerConfig {
	cfg := SchedulerConfig{
		DailyResetCron: "0 0 * * *",
		UsageResetCron: "5 0 * * *",
		WeeklyTrimCron: "30 2 * * 0",
		BatchSize:      200,
	}
	if v := os.Getenv("DAILY_RESET_CRON"); v != "" {
		cfg.DailyResetCron = v
	}
	if v := os.Getenv("USAGE_RESET_CRON"); v != "" {
		cfg.UsageResetCron = v
	}
	if v := os.Getenv("WEEKLY_TRIM_CRON"); v != "" {
		cfg.WeeklyTrimCron = v
	}
	return cfg
}

// MaintenanceScheduler owns the three periodic repair jobs that fix what the
// ingest path cannot, because the user never called in: day-boundary resets,
// silently stale streaks (spending freezes), and history trimming.
//
// Explicit Start/Stop lifecycle with an injected clock so tests can drive day
// boundaries without wall-clock sleeps. Each job is idempotent if re-run and
// continues past per-row failures rather than aborting the sweep.
type MaintenanceScheduler struct {
	DB    *gorm.DB
	Store *StateStore

	clock clockwork.Clock
	cfg   SchedulerConfig
	sched gocron.Scheduler
}

func NewMaintenanceScheduler(db *gorm.DB, clock clockwork.Clock, cfg SchedulerConfig) (*MaintenanceScheduler, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	m := &MaintenanceScheduler{
		DB:    db,
		Store: NewStateStore(db),
		clock: clock,
		cfg:   cfg,
	}

	sched, err := gocron.NewScheduler(
		gocron.WithClock(clock),
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	jobs := []struct {
		cron string
		name string
		task func()
	}{
		{cfg.DailyResetCron, "daily reconciliation", m.RunDailyReconciliation},
		{cfg.UsageResetCron, "daily usage reset", m.RunDailyUsageReset},
		{cfg.WeeklyTrimCron, "weekly history trim", m.RunWeeklyTrim},
	}
	for _, j := range jobs {
		if _, err := sched.NewJob(
			gocron.CronJob(j.cron, false),
			gocron.NewTask(j.task),
		); err != nil {
			return nil, fmt.Errorf("failed to register %s job (%q): %w", j.name, j.cron, err)
		}
	}

	m.sched = sched
	return m, nil
}

func (m *MaintenanceScheduler) Start() {
	m.sched.Start()
	log.Printf("✅ [Maintenance] Scheduler started (daily=%q usage=%q trim=%q)",
		m.cfg.DailyResetCron, m.cfg.UsageResetCron, m.cfg.WeeklyTrimCron)
}

func (m *MaintenanceScheduler) Stop() error {
	log.Println("⏹️ [Maintenance] Scheduler stopping")
	return m.sched.Shutdown()
}

// RunDailyReconciliation fires once per UTC day:
//
//	(a) reset todayCompleted and all 5 daily goals for every user;
//	(b) reset streaks for users whose lastActiveDate is before yesterday;
//	(c) spend one freeze for users who missed exactly yesterday.
//
// (b) and (c) are mutually exclusive: they partition users by exact day-delta.
func (m *MaintenanceScheduler) RunDailyReconciliation() {
	today := utils.DateOf(m.clock.Now(), "")
	yesterday := today.AddDays(-1)
	log.Printf("[Maintenance] Daily reconciliation sweep for %s", today)

	// (a) Unconditional daily reset. One atomic statement, safe to repeat;
	// the version bump keeps the optimistic protocol honest for concurrent
	// ingest calls.
	res := m.DB.Model(&models.EngagementState{}).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Updates(map[string]interface{}{
			"today_completed": false,
			"goal_verse":      false,
			"goal_prayer":     false,
			"goal_reflection": false,
			"goal_ai_chat":    false,
			"goal_community":  false,
			"version":         gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		log.Printf("❌ [Maintenance] Daily goal reset failed: %v", res.Error)
	} else {
		log.Printf("✅ [Maintenance] Daily goals reset for %d user(s)", res.RowsAffected)
	}

	// (b) Stale streaks: missed two or more days with no freeze consulted.
	var resetCount, resetFailed int
	var batch []models.EngagementState
	err := m.DB.
		Where("current_streak > 0 AND last_active_date < ?", yesterday.String()).
		FindInBatches(&batch, m.cfg.BatchSize, func(tx *gorm.DB, _ int) error {
			for i := range batch {
				state := batch[i]
				expected := state.Version
				state.CurrentStreak = 0
				state.StreakStartDate = today
				if err := m.Store.Save(&state, expected); err != nil {
					resetFailed++
					log.Printf("⚠️ [Maintenance] Skipping streak reset for %s: %v", state.UserID, err)
					continue
				}
				resetCount++
			}
			return nil
		}).Error
	if err != nil {
		log.Printf("❌ [Maintenance] Stale-streak sweep failed: %v", err)
	}

	// (c) Missed exactly yesterday: a freeze pays for the gap and the streak
	// survives untouched.
	var frozenCount, frozenFailed int
	err = m.DB.
		Where("current_streak > 0 AND last_active_date = ? AND freezes_available > 0 AND today_completed = ?",
			yesterday.String(), false).
		FindInBatches(&batch, m.cfg.BatchSize, func(tx *gorm.DB, _ int) error {
			for i := range batch {
				state := batch[i]
				expected := state.Version
				state.FreezesAvailable--
				if err := m.Store.Save(&state, expected); err != nil {
					frozenFailed++
					log.Printf("⚠️ [Maintenance] Skipping freeze spend for %s: %v", state.UserID, err)
					continue
				}
				frozenCount++
			}
			return nil
		}).Error
	if err != nil {
		log.Printf("❌ [Maintenance] Freeze sweep failed: %v", err)
	}

	log.Printf("✅ [Maintenance] Reconciliation done: %d streak(s) reset (%d skipped), %d freeze(s) spent (%d skipped)",
		resetCount, resetFailed, frozenCount, frozenFailed)
}

// RunDailyUsageReset zeroes todayTimeSpentSeconds for every user whose last
// session was before today's UTC midnight.
func (m *MaintenanceScheduler) RunDailyUsageReset() {
	today := utils.DateOf(m.clock.Now(), "")
	midnight := time.Date(today.Year, today.Month, today.Day, 0, 0, 0, 0, time.UTC)

	res := m.DB.Model(&models.EngagementState{}).
		Where("last_opened_at < ? AND today_time_spent_seconds > 0", midnight).
		Updates(map[string]interface{}{
			"today_time_spent_seconds": 0,
			"version":                  gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		log.Printf("❌ [Maintenance] Daily usage reset failed: %v", res.Error)
		return
	}
	log.Printf("✅ [Maintenance] Today's usage reset for %d user(s)", res.RowsAffected)
}

// RunWeeklyTrim truncates recentSessions to the newest MaxRecentSessions
// entries. Evicted entries are archived to object storage when configured;
// archive failure never blocks the trim.
func (m *MaintenanceScheduler) RunWeeklyTrim() {
	today := utils.DateOf(m.clock.Now(), "")
	var trimmed, archived, failed int

	var batch []models.EngagementState
	err := m.DB.FindInBatches(&batch, m.cfg.BatchSize, func(tx *gorm.DB, _ int) error {
		for i := range batch {
			state := batch[i]
			if len(state.RecentSessions) <= models.MaxRecentSessions {
				continue
			}
			expected := state.Version
			evicted := state.RecentSessions[:len(state.RecentSessions)-models.MaxRecentSessions]
			state.RecentSessions = state.RecentSessions[len(state.RecentSessions)-models.MaxRecentSessions:]

			if utils.ArchiveEnabled() {
				key := fmt.Sprintf("archives/%s/%s.json", state.UserID, today)
				if err := utils.UploadArchive(context.Background(), key, evicted); err != nil {
					log.Printf("⚠️ [Maintenance] Archive upload failed for %s: %v", state.UserID, err)
				} else {
					archived++
				}
			}

			if err := m.Store.Save(&state, expected); err != nil {
				failed++
				log.Printf("⚠️ [Maintenance] Skipping history trim for %s: %v", state.UserID, err)
				continue
			}
			trimmed++
		}
		return nil
	}).Error
	if err != nil {
		log.Printf("❌ [Maintenance] Weekly trim sweep failed: %v", err)
	}
	log.Printf("✅ [Maintenance] Weekly trim done: %d user(s) trimmed, %d archived, %d skipped", trimmed, archived, failed)
}
