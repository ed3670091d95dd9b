package utils

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type SubscriptionSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// RunSubscriptionSweep expires active subscriptions whose expiry has passed.
func RunSubscriptionSweep(ctx context.Context, s SubscriptionSweeper) {
	n, err := s.SweepExpired(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to expire subscriptions")
		return
	}
	if n > 0 {
		logrus.WithField("count", n).Info("Expired subscriptions past their expiry")
	}
}

// StartCleanupJob runs a sweep now and then every interval until ctx is done.
func StartCleanupJob(ctx context.Context, s SubscriptionSweeper, interval time.Duration) {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	RunSubscriptionSweep(ctx, s)

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logrus.Debug("Subscription sweep triggered")
				RunSubscriptionSweep(ctx, s)
			}
		}
	}()

	logrus.WithField("interval", interval.String()).Info("Subscription sweep job started")
}
