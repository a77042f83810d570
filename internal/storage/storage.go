package storage

import (
	"github.com/xaenox/planner-bot/internal/models"
)

// Storage persists per-user settings that outlive a single conversation.
type Storage interface {
	GetUserPrefs(userID int64) (models.UserPrefs, error)
	SetTimezone(userID int64, timezone string) error
	SetPrimaryCalendar(userID int64, calendarID string) error
	Close() error
}
