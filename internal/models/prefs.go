package models

import "time"

// UserPrefs holds per-user settings consumed by the parsing pipeline.
type UserPrefs struct {
	UserID          int64     `json:"user_id"`
	Timezone        string    `json:"timezone"`
	PrimaryCalendar string    `json:"primary_calendar,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}
