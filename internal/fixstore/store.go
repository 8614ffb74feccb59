package fixstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smukkama/pm25-intent/internal/location"
)

const keyPrefix = "location_fix:"

// storedFix is the Redis value; observed_ms lets the save script compare
// fixes without parsing timestamps
type storedFix struct {
	location.Fix
	ObservedMs int64 `json:"observed_ms"`
}

// saveScript keeps the newest fix when devices report out of order
var saveScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local ok, obj = pcall(cjson.decode, cur)
  if ok and obj.observed_ms and tonumber(obj.observed_ms) > tonumber(ARGV[2]) then
    return 0
  end
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// Store keeps the latest fix per device in Redis
type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

// New creates a fix store. Fixes expire after ttl; zero keeps them forever.
func New(redisClient *redis.Client, ttl time.Duration) *Store {
	return &Store{redis: redisClient, ttl: ttl}
}

func key(deviceID string) string {
	return keyPrefix + deviceID
}

// SaveFix stores fix unless a newer one is already present. It reports
// whether the fix was written.
func (s *Store) SaveFix(ctx context.Context, deviceID string, fix location.Fix) (bool, error) {
	data, err := encode(fix)
	if err != nil {
		return false, err
	}

	res, err := saveScript.Run(ctx, s.redis, []string{key(deviceID)},
		data, fix.ObservedAt.UnixMilli(), s.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to save fix in Redis: %w", err)
	}
	return res == 1, nil
}

// LatestFix implements location.FixStore
func (s *Store) LatestFix(ctx context.Context, deviceID string) (location.Fix, bool, error) {
	data, err := s.redis.Get(ctx, key(deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return location.Fix{}, false, nil
	}
	if err != nil {
		return location.Fix{}, false, fmt.Errorf("failed to get fix from Redis: %w", err)
	}

	fix, err := decode(data)
	if err != nil {
		return location.Fix{}, false, err
	}
	return fix, true, nil
}

// DeleteFix forgets the device's location
func (s *Store) DeleteFix(ctx context.Context, deviceID string) error {
	if err := s.redis.Del(ctx, key(deviceID)).Err(); err != nil {
		return fmt.Errorf("failed to delete fix from Redis: %w", err)
	}
	return nil
}

func encode(fix location.Fix) ([]byte, error) {
	fix.ObservedAt = fix.ObservedAt.UTC()
	data, err := json.Marshal(storedFix{Fix: fix, ObservedMs: fix.ObservedAt.UnixMilli()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fix: %w", err)
	}
	return data, nil
}

func decode(data []byte) (location.Fix, error) {
	var sf storedFix
	if err := json.Unmarshal(data, &sf); err != nil {
		return location.Fix{}, fmt.Errorf("failed to unmarshal fix: %w", err)
	}
	return sf.Fix, nil
}
