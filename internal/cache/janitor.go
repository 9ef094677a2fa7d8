package cache

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Janitor sweeps expired cache entries on a schedule. It is constructed
// and owned by the composition root: started at startup, stopped at
// shutdown, never a package-level singleton.
type Janitor struct {
	cache  *ResultCache
	cron   *cron.Cron
	logger *slog.Logger
}

// NewJanitor creates a janitor for the given cache.
func NewJanitor(cache *ResultCache, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		cache:  cache,
		cron:   cron.New(),
		logger: logger,
	}
}

// Start begins sweeping on the given cron spec (e.g. "@every 1m").
func (j *Janitor) Start(spec string) error {
	_, err := j.cron.AddFunc(spec, func() {
		before := j.cache.Size()
		j.cache.Clean()
		if removed := before - j.cache.Size(); removed > 0 {
			j.logger.Debug("cache janitor sweep", "removed", removed)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule janitor: %w", err)
	}
	j.cron.Start()
	return nil
}

// Stop halts the sweep schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}
