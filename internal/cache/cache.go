// Package cache holds rendered chart images between ledger changes.
package cache

import (
	"context"
	"sync"
	"time"

	applog "fintrack/internal/log"
)

// Cache is a keyed store with expiring entries.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Len() int
}

// Cleaner drops expired entries and reports how many it removed.
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically sweeps registered caches until its context ends.
type Janitor struct {
	mu     sync.Mutex
	caches []Cleaner
	logger *applog.Logger
}

func NewJanitor(logger *applog.Logger) *Janitor {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Janitor{logger: logger.WithComponent(applog.ComponentCache)}
}

func (j *Janitor) Register(c Cleaner) {
	j.mu.Lock()
	j.caches = append(j.caches, c)
	j.mu.Unlock()
}

// Sweep cleans every registered cache once.
func (j *Janitor) Sweep() int {
	j.mu.Lock()
	caches := append([]Cleaner(nil), j.caches...)
	j.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

// Run sweeps every interval and returns ctx.Err() once ctx is done.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := j.Sweep(); n > 0 {
				j.logger.DebugContext(ctx, "Expired cache entries removed", applog.FieldCount, n)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
