// Package flags evaluates feature flags stored in the feature_flags table.
// A flag is on for a user when it is enabled and the user falls into its
// rollout bucket. Buckets are stable: the same user always gets the same
// answer for the same flag.
package flags

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/invoicehub/internal/models"
)

const allFlags = "all"

type Service struct {
	db    *gorm.DB
	cache *Cache[string, []models.FeatureFlag]
}

// NewService caches the flag table for ttl. A ttl of zero disables caching.
func NewService(db *gorm.DB, ttl time.Duration) *Service {
	return &Service{db: db, cache: NewCache[string, []models.FeatureFlag](ttl)}
}

func (s *Service) load(ctx context.Context) ([]models.FeatureFlag, error) {
	if flags, ok := s.cache.Get(allFlags); ok {
		return flags, nil
	}
	var flags []models.FeatureFlag
	if err := s.db.WithContext(ctx).Order("key").Find(&flags).Error; err != nil {
		return nil, err
	}
	s.cache.Set(allFlags, flags)
	return flags, nil
}

// Bucket maps a user to [0,100) for the given flag.
func Bucket(key string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key + ":" + strconv.FormatUint(uint64(userID), 10)))
	return int(h.Sum32() % 100)
}

// On reports whether flag is on for userID.
func On(flag models.FeatureFlag, userID uint) bool {
	if !flag.Enabled {
		return false
	}
	return Bucket(flag.Key, userID) < flag.RolloutPercent
}

// Evaluate returns every known flag and whether it is on for the user.
func (s *Service) Evaluate(ctx context.Context, userID uint) (map[string]bool, error) {
	flags, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(flags))
	for _, f := range flags {
		out[f.Key] = On(f, userID)
	}
	return out, nil
}

// Enabled reports a single flag. Unknown flags are off.
func (s *Service) Enabled(ctx context.Context, key string, userID uint) (bool, error) {
	flags, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	for _, f := range flags {
		if f.Key == key {
			return On(f, userID), nil
		}
	}
	return false, nil
}

// Set updates a flag and drops the cache.
func (s *Service) Set(ctx context.Context, key string, enabled bool, rollout int) error {
	if rollout < 0 {
		rollout = 0
	}
	if rollout > 100 {
		rollout = 100
	}
	res := s.db.WithContext(ctx).Model(&models.FeatureFlag{}).Where("key = ?", key).
		Updates(map[string]any{"enabled": enabled, "rollout_percent": rollout})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	s.cache.InvalidateAll()
	return nil
}
