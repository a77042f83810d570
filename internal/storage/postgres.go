package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/xaenox/planner-bot/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := &PostgresStorage{db: db}

	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	_, err = s.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

// GetUserPrefs returns stored preferences, or defaults for unknown users.
func (s *PostgresStorage) GetUserPrefs(userID int64) (models.UserPrefs, error) {
	prefs := models.UserPrefs{
		UserID:   userID,
		Timezone: "Europe/Moscow",
	}

	query := `
		SELECT timezone, primary_calendar, updated_at
		FROM user_prefs
		WHERE user_id = $1`

	err := s.db.QueryRow(query, userID).Scan(&prefs.Timezone, &prefs.PrimaryCalendar, &prefs.UpdatedAt)
	if err == sql.ErrNoRows {
		return prefs, nil
	}
	if err != nil {
		return prefs, fmt.Errorf("error getting user prefs: %v", err)
	}

	return prefs, nil
}

func (s *PostgresStorage) SetTimezone(userID int64, timezone string) error {
	query := `
		INSERT INTO user_prefs (user_id, timezone, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET timezone = $2, updated_at = $3`

	if _, err := s.db.Exec(query, userID, timezone, time.Now()); err != nil {
		return fmt.Errorf("error setting timezone: %v", err)
	}
	return nil
}

func (s *PostgresStorage) SetPrimaryCalendar(userID int64, calendarID string) error {
	query := `
		INSERT INTO user_prefs (user_id, primary_calendar, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET primary_calendar = $2, updated_at = $3`

	if _, err := s.db.Exec(query, userID, calendarID, time.Now()); err != nil {
		return fmt.Errorf("error setting primary calendar: %v", err)
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
