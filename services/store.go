package services

import (
	"errors"

	"faith-engagement-system/models"

	"gorm.io/gorm"
)

// StateStore is the load/save contract for the per-user engagement row.
//
// Two independent writers share each row: the session ingest path and the
// maintenance sweeps. Neither holds a lock; instead every save is a
// conditional UPDATE guarded by the version loaded, and a writer that loses
// the race gets ErrConflict and must re-read and recompute — never merge.
type StateStore struct {
	DB *gorm.DB
}

func NewStateStore(db *gorm.DB) *StateStore {
	return &StateStore{DB: db}
}

// Load fetches the state row for a user. Returns ErrNotFound when the user
// has never reported a session.
func (s *StateStore) Load(userID string) (*models.EngagementState, error) {
	var state models.EngagementState
	err := s.DB.Where("user_id = ?", userID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Create inserts a fresh state row (lazy creation on first session). A
// duplicate-key failure means another writer created the row first and is
// reported as ErrConflict so the caller re-loads.
func (s *StateStore) Create(state *models.EngagementState) error {
	err := s.DB.Create(state).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	return err
}

// Save persists state iff the row still carries expectedVersion, bumping the
// version in the same statement. Zero rows affected means another writer
// committed in between: ErrConflict.
func (s *StateStore) Save(state *models.EngagementState, expectedVersion int64) error {
	return s.SaveTx(s.DB, state, expectedVersion)
}

// SaveTx is Save inside an existing transaction (used by the ingest engine to
// commit the milestone insert and the state update atomically).
func (s *StateStore) SaveTx(tx *gorm.DB, state *models.EngagementState, expectedVersion int64) error {
	state.Version = expectedVersion + 1
	res := tx.Model(&models.EngagementState{}).
		Where("user_id = ? AND version = ?", state.UserID, expectedVersion).
		Updates(state.UpdateColumns())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}
