package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/audit_backend/config"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

const syncLockTTL = 30 * time.Second

func syncLockKey(stagingId uint) string {
	return fmt.Sprintf("lock:sync:%d", stagingId)
}

// obtainSyncLock serializes syncs of one staged record when Redis is available.
// Sync proceeds without the lock when Redis is down or the lock is held.
func (s *Service) obtainSyncLock(ctx context.Context, stagingId uint) (release func()) {
	release = func() {}
	locker := s.Locker
	if locker == nil {
		locker = config.GetRedisLock()
	}
	fields := logrus.Fields{"field": "Service.Sync", "staging_id": stagingId}
	if locker == nil {
		s.logger.WithFields(fields).Debug("redis lock not ready; proceeding without redis lock")
		return release
	}

	retry := redislock.LimitRetry(redislock.LinearBackoff(200*time.Millisecond), 10)
	lock, err := locker.Obtain(ctx, syncLockKey(stagingId), syncLockTTL, &redislock.Options{RetryStrategy: retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		s.logger.WithFields(fields).Warn("could not obtain redis lock; proceeding without redis lock")
		return release
	} else if err != nil {
		s.logger.WithFields(fields).Warn("error obtaining redis lock; proceeding without redis lock: " + err.Error())
		return release
	}
	return func() {
		// The request context may already be cancelled here.
		if releaseErr := lock.Release(context.Background()); releaseErr != nil && !errors.Is(releaseErr, redislock.ErrLockNotHeld) {
			s.logger.WithFields(fields).Warn("failed to release redis lock: " + releaseErr.Error())
		}
	}
}
