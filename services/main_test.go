package services

import (
	"testing"
	"time"

	"faith-engagement-system/models"

	"github.com/glebarez/sqlite"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	// A fresh :memory: database per connection would lose the schema.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.EngagementState{}, &models.MilestoneAward{}); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

// testEpoch is noon UTC so date arithmetic in tests never straddles midnight.
var testEpoch = time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)

func newTestEngagement(t *testing.T, db *gorm.DB) (*EngagementService, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testEpoch)
	return NewEngagementService(db, clock, 3), clock
}

func i64(v int64) *int64 { return &v }

func tp(v time.Time) *time.Time { return &v }
