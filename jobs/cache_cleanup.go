package jobs

import (
	"context"
	"time"

	"github.com/actionos/actionos-backend/services"
	"github.com/sirupsen/logrus"
)

// CacheCleanupJob sweeps expired, non-saved signature cache rows. Lazy
// expiry on read stays authoritative; the sweep is store hygiene only.
type CacheCleanupJob struct {
	Cache *services.SignatureCache
}

func NewCacheCleanupJob(cache *services.SignatureCache) *CacheCleanupJob {
	return &CacheCleanupJob{Cache: cache}
}

func (j *CacheCleanupJob) Run() {
	logrus.Info("Starting Cache Cleanup Job")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	removed, err := j.Cache.SweepExpired(ctx)
	if err != nil {
		logrus.WithField("error", err.Error()).Warn("Cache Cleanup Job failed")
		return
	}

	logrus.WithField("removed", removed).Info("Cache Cleanup Job completed")
}
