package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/menatics/andromeda/pkg/observability"
)

// AlertMarker remembers which consumption alerts already went out, so the
// repeat-daily behavior can be turned off without a schema change. One
// marker per client and level, expiring after the TTL.
type AlertMarker struct {
	client *redis.Client
	ttl    time.Duration
	logger *observability.Logger
}

// NewAlertMarker creates a marker store. The TTL controls how long a sent
// alert suppresses repeats; a day-scale TTL gives at-most-daily alerts.
func NewAlertMarker(client *redis.Client, ttl time.Duration, logger *observability.Logger) *AlertMarker {
	return &AlertMarker{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// AlreadySent reports whether an alert for this client and level went out
// within the TTL window. On a Redis failure the alert is sent rather than
// silently dropped.
func (m *AlertMarker) AlreadySent(ctx context.Context, clientID int64, level string) bool {
	err := m.client.Get(ctx, markerKey(clientID, level)).Err()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		m.logger.WithError(err).Warn("alert marker backend unavailable, sending alert")
		return false
	}
	return true
}

// MarkSent records a delivered alert. Callers invoke it only after the
// mail went out; a failed delivery leaves no marker behind.
func (m *AlertMarker) MarkSent(ctx context.Context, clientID int64, level string) {
	if err := m.client.Set(ctx, markerKey(clientID, level), "1", m.ttl).Err(); err != nil {
		m.logger.WithError(err).Warn("failed to record alert marker")
	}
}

func markerKey(clientID int64, level string) string {
	return fmt.Sprintf("andromeda:alert:%d:%s", clientID, level)
}
