package broadcast

import (
	"context"
	"time"

	"github.com/bnema/mindstream-cli/internal/application"
	"go.uber.org/zap"
)

// Pump drains feed every interval and hands each record to the hub. It
// returns nil when ctx ends and the feed's error when the feed stops.
func Pump(ctx context.Context, feed application.Feed, hub *Hub, every time.Duration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	forward := func() {
		records, ok := feed.Data()
		if !ok {
			return
		}
		for _, record := range records {
			if err := hub.Broadcast(record); err != nil {
				logger.Warn("encode record for broadcast", zap.Error(err))
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-feed.Done():
			forward()
			return feed.Err()
		case <-ticker.C:
			forward()
		}
	}
}
