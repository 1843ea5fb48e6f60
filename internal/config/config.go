package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the sync agent.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	APIBaseURL         string
	APIToken           string
	ClassroomID        string
	RedisURL           string
	SnapshotTTL        time.Duration
	NATSURL            string
	NATSSubject        string
	WordLimit          int
	DueSoonLookahead   time.Duration
	TaskPollInterval   time.Duration
	SubmissionInterval time.Duration
	GroupPollInterval  time.Duration
}

// HTTPAddress returns the address the local HTTP surface should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and an optional
// .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CLASSPAD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Classpad Sync")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8090")
	v.SetDefault("api.base_url", "http://localhost:8080/api")
	v.SetDefault("snapshot.ttl", "30m")
	v.SetDefault("nats.subject", "classpad.tasks")
	v.SetDefault("word.limit", 500)
	v.SetDefault("due_soon.lookahead", "72h")
	v.SetDefault("poll.tasks", "10s")
	v.SetDefault("poll.submission", "20s")
	v.SetDefault("poll.group", "5s")

	durations := map[string]*time.Duration{
		"snapshot.ttl":       nil,
		"due_soon.lookahead": nil,
		"poll.tasks":         nil,
		"poll.submission":    nil,
		"poll.group":         nil,
	}
	for key := range durations {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		value := parsed
		durations[key] = &value
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		APIBaseURL:         v.GetString("api.base_url"),
		APIToken:           v.GetString("api.token"),
		ClassroomID:        v.GetString("classroom.id"),
		RedisURL:           v.GetString("redis.url"),
		SnapshotTTL:        *durations["snapshot.ttl"],
		NATSURL:            v.GetString("nats.url"),
		NATSSubject:        v.GetString("nats.subject"),
		WordLimit:          v.GetInt("word.limit"),
		DueSoonLookahead:   *durations["due_soon.lookahead"],
		TaskPollInterval:   *durations["poll.tasks"],
		SubmissionInterval: *durations["poll.submission"],
		GroupPollInterval:  *durations["poll.group"],
	}

	if cfg.APIBaseURL == "" {
		return Config{}, fmt.Errorf("api base url must be provided")
	}

	if cfg.WordLimit <= 0 {
		cfg.WordLimit = 500
	}

	return cfg, nil
}
