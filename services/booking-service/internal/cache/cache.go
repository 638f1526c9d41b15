// Package cache keeps read-mostly records in Redis in front of the stores.
// Redis failures are logged and fall through to the underlying store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL = 5 * time.Minute

	hoursKeyPrefix   = "clinicbook:hours:"
	patientKeyPrefix = "clinicbook:patient:"
)

func getJSON(ctx context.Context, rdb redis.Cmdable, key string, v any) (bool, error) {
	data, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("cache: unmarshal %s: %w", key, err)
	}
	return true, nil
}

func setJSON(ctx context.Context, rdb redis.Cmdable, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", key, err)
	}
	if err := rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// ScheduleCache caches working hours per practitioner. Blackouts are read
// straight from the source.
type ScheduleCache struct {
	source storage.ScheduleSource
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

var _ storage.ScheduleSource = (*ScheduleCache)(nil)

func NewScheduleCache(source storage.ScheduleSource, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *ScheduleCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduleCache{source: source, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *ScheduleCache) WorkingHours(ctx context.Context, practitionerID string) ([]model.WorkingHours, error) {
	key := hoursKeyPrefix + practitionerID
	var hours []model.WorkingHours
	hit, err := getJSON(ctx, c.rdb, key, &hours)
	if err != nil {
		c.logger.Warn("schedule cache read failed", "practitioner_id", practitionerID, "err", err)
	}
	if hit {
		return hours, nil
	}

	hours, err = c.source.WorkingHours(ctx, practitionerID)
	if err != nil {
		return nil, err
	}
	if err := setJSON(ctx, c.rdb, key, hours, c.ttl); err != nil {
		c.logger.Warn("schedule cache write failed", "practitioner_id", practitionerID, "err", err)
	}
	return hours, nil
}

func (c *ScheduleCache) Blackouts(ctx context.Context, practitionerID string, from, to time.Time) ([]model.Blackout, error) {
	return c.source.Blackouts(ctx, practitionerID, from, to)
}

func (c *ScheduleCache) Invalidate(ctx context.Context, practitionerID string) error {
	if err := c.rdb.Del(ctx, hoursKeyPrefix+practitionerID).Err(); err != nil {
		return fmt.Errorf("cache: invalidate hours %s: %w", practitionerID, err)
	}
	return nil
}

// PatientCache caches patient records as a hash of row_version and the JSON
// row. A write never replaces a newer version, so a slow read-fill cannot undo
// an update.
type PatientCache struct {
	store  storage.PatientStore
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

var _ storage.PatientStore = (*PatientCache)(nil)

var putNewerScript = redis.NewScript(`
local cur = tonumber(redis.call("HGET", KEYS[1], "v"))
if cur and cur >= tonumber(ARGV[1]) then
  return 0
end
redis.call("HSET", KEYS[1], "v", ARGV[1], "row", ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return 1
`)

func NewPatientCache(store storage.PatientStore, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *PatientCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PatientCache{store: store, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *PatientCache) GetPatient(ctx context.Context, id string) (model.Patient, error) {
	key := patientKeyPrefix + id
	data, err := c.rdb.HGet(ctx, key, "row").Bytes()
	switch {
	case err == nil:
		var p model.Patient
		if err := json.Unmarshal(data, &p); err == nil {
			return p, nil
		}
		c.logger.Warn("patient cache entry unreadable", "patient_id", id)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("patient cache read failed", "patient_id", id, "err", err)
	}

	p, err := c.store.GetPatient(ctx, id)
	if err != nil {
		return model.Patient{}, err
	}
	if _, err := c.put(ctx, p); err != nil {
		c.logger.Warn("patient cache write failed", "patient_id", id, "err", err)
	}
	return p, nil
}

func (c *PatientCache) UpdatePatient(ctx context.Context, id string, u model.PatientUpdate) (model.Patient, error) {
	key := patientKeyPrefix + id
	p, err := c.store.UpdatePatient(ctx, id, u)
	if err == nil {
		_, putErr := c.put(ctx, p)
		if putErr == nil {
			return p, nil
		}
		c.logger.Warn("patient cache write failed", "patient_id", id, "err", putErr)
	}
	// Stale versions also drop the entry: the caller will re-read.
	if delErr := c.rdb.Del(ctx, key).Err(); delErr != nil {
		c.logger.Warn("patient cache invalidation failed", "patient_id", id, "err", delErr)
	}
	return p, err
}

// put stores p unless the cache already holds the same or a newer version.
func (c *PatientCache) put(ctx context.Context, p model.Patient) (bool, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("cache: marshal patient %s: %w", p.ID, err)
	}
	n, err := putNewerScript.Run(ctx, c.rdb, []string{patientKeyPrefix + p.ID},
		p.RowVersion, data, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("cache: put patient %s: %w", p.ID, err)
	}
	return n == 1, nil
}
