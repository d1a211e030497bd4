package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunExpiryWorker expires due subscriptions every interval until ctx is done.
func RunExpiryWorker(ctx context.Context, subscriptions SubscriptionService, every time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := subscriptions.ExpireDue(ctx, now); err != nil {
				logger.Error("expire subscriptions", zap.Error(err))
			}
		}
	}
}
