// internal/notify/listener.go
package notify

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"fedportal-service/internal/domain/metrics"
)

// channelCategories maps postgres NOTIFY channels (one per event table, see
// migrations) to the aggregation category they invalidate.
var channelCategories = map[string]metrics.Category{
	"docease_documents_changed": metrics.CategoryDocease,
	"signease_activity_changed": metrics.CategorySignease,
	"signatures_changed":        metrics.CategorySignatures,
	"presence_sessions_changed": metrics.CategorySessions,
}

// Listener holds a dedicated connection on LISTEN and converts table change
// notifications into typed invalidation signals.
type Listener struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	// Sink receives one Invalidation per notification. Buffered so a slow
	// consumer never blocks the listen loop.
	Sink chan metrics.Invalidation
}

func NewListener(pool *pgxpool.Pool, logger *zap.Logger) *Listener {
	return &Listener{
		pool:   pool,
		logger: logger,
		Sink:   make(chan metrics.Invalidation, 64),
	}
}

// Run blocks until ctx is done, reconnecting with backoff when the listen
// connection drops.
func (l *Listener) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if err := l.listen(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Warn("change-notification connection lost",
				zap.Error(err),
				zap.Duration("retry_in", backoff),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		return
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	for channel := range channelCategories {
		if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
			return err
		}
	}

	l.logger.Info("subscribed to change notifications", zap.Int("channels", len(channelCategories)))

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		category, ok := channelCategories[notification.Channel]
		if !ok {
			continue
		}

		inv := metrics.Invalidation{Category: category, At: time.Now()}
		select {
		case l.Sink <- inv:
		default:
			// Sink full: the coordinator already has a pending recompute,
			// dropping this signal loses nothing.
			l.logger.Debug("invalidation sink full, coalescing",
				zap.String("category", string(category)))
		}
	}
}
