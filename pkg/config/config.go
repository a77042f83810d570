package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram Telegram `mapstructure:"telegram"`
	Database Database `mapstructure:"database"`
	Redis    Redis    `mapstructure:"redis"`
	OpenAI   OpenAI   `mapstructure:"openai"`
	Calendar Calendar `mapstructure:"calendar"`
	Director Director `mapstructure:"director"`
	Rules    Rules    `mapstructure:"rules"`
	Worker   Worker   `mapstructure:"worker"`
}

type Telegram struct {
	Token string `mapstructure:"token"`
}

type Database struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type Redis struct {
	URL         string `mapstructure:"url"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type OpenAI struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	WhisperModel   string `mapstructure:"whisper_model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type Calendar struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type Director struct {
	GPTPerHour     int `mapstructure:"gpt_per_hour"`
	GPTPerDay      int `mapstructure:"gpt_per_day"`
	WhisperPerHour int `mapstructure:"whisper_per_hour"`
	WhisperPerDay  int `mapstructure:"whisper_per_day"`
}

type Rules struct {
	// Path to a yaml file overriding the built-in classifier rule tables.
	Path string `mapstructure:"path"`
}

type Worker struct {
	QueueSize         int `mapstructure:"queue_size"`
	MaxRetries        int `mapstructure:"max_retries"`
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds"`
}

func parseDatabaseURL(dbURL string) (Database, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return Database{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	dbName := strings.TrimPrefix(u.Path, "/")

	return Database{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.use_in_memory", false)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.whisper_model", "whisper-1")
	v.SetDefault("openai.timeout_seconds", 30)
	v.SetDefault("calendar.timeout_seconds", 15)
	v.SetDefault("director.gpt_per_hour", 50)
	v.SetDefault("director.gpt_per_day", 200)
	v.SetDefault("director.whisper_per_hour", 20)
	v.SetDefault("director.whisper_per_day", 100)
	v.SetDefault("worker.queue_size", 256)
	v.SetDefault("worker.max_retries", 3)
	v.SetDefault("worker.retry_delay_seconds", 5)

	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if redisURL := v.GetString("REDIS_URL"); redisURL != "" {
		config.Redis.URL = redisURL
	}
	if calURL := v.GetString("CALENDAR_URL"); calURL != "" {
		config.Calendar.BaseURL = calURL
	}

	return &config, nil
}
