package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores resolved sections keyed by (school, courseNumber), with a
// secondary per-CRN projection used to expand a user's enrollment list.
// Writes are idempotent upserts by key; last writer wins.
type Cache interface {
	GetSections(ctx context.Context, school, courseNumber string) ([]Section, bool, error)
	PutSections(ctx context.Context, school, courseNumber string, sections []Section) error
	GetByCRN(ctx context.Context, crn int) (Section, bool, error)
}

// RedisCache backs the catalog cache with redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a cache; ttl <= 0 disables expiry.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func courseKey(school, courseNumber string) string {
	return fmt.Sprintf("catalog:course:%s:%s", school, courseNumber)
}

func crnKey(crn int) string {
	return fmt.Sprintf("catalog:crn:%d", crn)
}

// GetSections returns the cached listing for a course, if present.
func (c *RedisCache) GetSections(ctx context.Context, school, courseNumber string) ([]Section, bool, error) {
	raw, err := c.client.Get(ctx, courseKey(school, courseNumber)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var sections []Section
	if err := json.Unmarshal(raw, &sections); err != nil {
		// Treat a corrupt entry as a miss; the next put overwrites it.
		return nil, false, nil
	}
	return sections, true, nil
}

// PutSections upserts the course listing and its per-CRN projections.
func (c *RedisCache) PutSections(ctx context.Context, school, courseNumber string, sections []Section) error {
	raw, err := json.Marshal(sections)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, courseKey(school, courseNumber), raw, c.ttl).Err(); err != nil {
		return err
	}
	for _, sec := range sections {
		one, err := json.Marshal(sec)
		if err != nil {
			return err
		}
		if err := c.client.Set(ctx, crnKey(sec.CRN), one, c.ttl).Err(); err != nil {
			return err
		}
	}
	return nil
}

// GetByCRN returns the cached section for a CRN, if present.
func (c *RedisCache) GetByCRN(ctx context.Context, crn int) (Section, bool, error) {
	raw, err := c.client.Get(ctx, crnKey(crn)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Section{}, false, nil
	}
	if err != nil {
		return Section{}, false, err
	}
	var sec Section
	if err := json.Unmarshal(raw, &sec); err != nil {
		return Section{}, false, nil
	}
	return sec, true, nil
}
