package storage

import (
	"sync"
	"time"

	"github.com/xaenox/planner-bot/internal/models"
)

// MemoryStorage keeps user preferences in memory. Used in tests and when
// running without a database.
type MemoryStorage struct {
	mu    sync.RWMutex
	prefs map[int64]models.UserPrefs
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		prefs: make(map[int64]models.UserPrefs),
	}
}

func (s *MemoryStorage) GetUserPrefs(userID int64) (models.UserPrefs, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.prefs[userID]; ok {
		return p, nil
	}
	return models.UserPrefs{
		UserID:   userID,
		Timezone: "Europe/Moscow",
	}, nil
}

func (s *MemoryStorage) SetTimezone(userID int64, timezone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.prefs[userID]
	p.UserID = userID
	p.Timezone = timezone
	p.UpdatedAt = time.Now()
	s.prefs[userID] = p
	return nil
}

func (s *MemoryStorage) SetPrimaryCalendar(userID int64, calendarID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.prefs[userID]
	p.UserID = userID
	p.PrimaryCalendar = calendarID
	p.UpdatedAt = time.Now()
	s.prefs[userID] = p
	return nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
