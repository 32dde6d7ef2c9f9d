package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coocood/freecache"
	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/workout"
)

const megabyte = 1024 * 1024

// Cached serves catalog lookups from an in-process freecache, falling back
// to the wrapped catalog on a miss. Unknown ids are not cached.
type Cached struct {
	next  workout.Catalog
	cache *freecache.Cache
	ttl   int
	log   *slog.Logger
}

var _ workout.Catalog = (*Cached)(nil)

// NewCached wraps next with a cache of sizeMB megabytes whose entries expire
// after ttl.
func NewCached(next workout.Catalog, sizeMB int, ttl time.Duration, log *slog.Logger) *Cached {
	return &Cached{
		next:  next,
		cache: freecache.NewCache(sizeMB * megabyte),
		ttl:   int(ttl / time.Second),
		log:   log,
	}
}

// DayPlan returns the plan of a program day.
func (c *Cached) DayPlan(ctx context.Context, programID, dayID string) (*models.DayPlan, error) {
	key := []byte("day:" + programID + "/" + dayID)
	var day models.DayPlan
	if c.get(key, &day) {
		return &day, nil
	}

	d, err := c.next.DayPlan(ctx, programID, dayID)
	if err != nil {
		return nil, err
	}
	c.set(key, d)
	return d, nil
}

// Exercise returns a catalog exercise.
func (c *Cached) Exercise(ctx context.Context, exerciseID string) (*models.ExerciseDescriptor, error) {
	key := []byte("exercise:" + exerciseID)
	var ex models.ExerciseDescriptor
	if c.get(key, &ex) {
		return &ex, nil
	}

	e, err := c.next.Exercise(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	c.set(key, e)
	return e, nil
}

// Clear drops every cached entry, e.g. after the catalog was reseeded.
func (c *Cached) Clear() {
	c.cache.Clear()
}

// HitRate returns the ratio of lookups served from the cache.
func (c *Cached) HitRate() float64 {
	return c.cache.HitRate()
}

func (c *Cached) get(key []byte, v any) bool {
	data, err := c.cache.Get(key)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		c.log.Warn("dropping undecodable catalog cache entry", "key", string(key), "error", err)
		c.cache.Del(key)
		return false
	}
	return true
}

func (c *Cached) set(key []byte, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("encoding catalog cache entry", "key", string(key), "error", err)
		return
	}
	if err := c.cache.Set(key, data, c.ttl); err != nil {
		c.log.Debug("catalog cache entry not stored", "key", string(key), "error", err)
	}
}
