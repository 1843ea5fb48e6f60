// Package cache persists the agent's task list to Redis so a restarted
// process answers from the last known state until the first refresh lands.
// The snapshot is eventually consistent by design; the pollers overwrite it
// within one interval.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/classpad-app/classpad-sync/internal/models"
)

// Snapshot stores and restores the cached task list under one TTL'd key.
type Snapshot struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewSnapshot builds a snapshot store. The key should be scoped to the
// authenticated user so agents for different users do not collide.
func NewSnapshot(client *redis.Client, key string, ttl time.Duration, logger zerolog.Logger) *Snapshot {
	return &Snapshot{
		client: client,
		key:    key,
		ttl:    ttl,
		logger: logger.With().Str("component", "task_snapshot").Logger(),
	}
}

// Save persists the task list wholesale.
func (s *Snapshot) Save(ctx context.Context, tasks []models.Task) error {
	payload, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, payload, s.ttl).Err()
}

// Load restores the last persisted list. The second return value is false
// when no snapshot exists.
func (s *Snapshot) Load(ctx context.Context) ([]models.Task, bool, error) {
	payload, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var tasks []models.Task
	if err := json.Unmarshal([]byte(payload), &tasks); err != nil {
		s.logger.Warn().Err(err).Msg("discarding unreadable task snapshot")
		return nil, false, nil
	}

	return tasks, true, nil
}
