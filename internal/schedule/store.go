package schedule

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Store persists a practitioner's weekly working windows. Provisioning falls
// back to these when no explicit active-hours override is supplied.
type Store struct {
	redis *redis.Client
}

// NewStore creates a weekly schedule store.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

func (s *Store) key(practitionerID string) string {
	return fmt.Sprintf("schedule:weekly:%s", practitionerID)
}

// Get returns the stored windows, or nil when none have been saved.
func (s *Store) Get(ctx context.Context, practitionerID string) ([]WeeklyWindow, error) {
	data, err := s.redis.Get(ctx, s.key(practitionerID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("schedule: get weekly windows: %w", err)
	}

	var windows []WeeklyWindow
	if err := json.Unmarshal(data, &windows); err != nil {
		return nil, fmt.Errorf("schedule: unmarshal weekly windows: %w", err)
	}
	return windows, nil
}

// Set saves the practitioner's windows, replacing any previous set.
func (s *Store) Set(ctx context.Context, practitionerID string, windows []WeeklyWindow) error {
	data, err := json.Marshal(windows)
	if err != nil {
		return fmt.Errorf("schedule: marshal weekly windows: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(practitionerID), data, 0).Err(); err != nil {
		return fmt.Errorf("schedule: set weekly windows: %w", err)
	}
	return nil
}

// Delete removes the stored windows.
func (s *Store) Delete(ctx context.Context, practitionerID string) error {
	if err := s.redis.Del(ctx, s.key(practitionerID)).Err(); err != nil {
		return fmt.Errorf("schedule: delete weekly windows: %w", err)
	}
	return nil
}
