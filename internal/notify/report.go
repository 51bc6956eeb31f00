package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/notification-service/internal/domain"
)

// ErrReportNotFound is returned when no summary is stored for a notification.
var ErrReportNotFound = errors.New("dispatch report not found")

// ReportStore keeps the latest dispatch summary per notification.
type ReportStore interface {
	Save(ctx context.Context, summary domain.DispatchSummary) error
	Get(ctx context.Context, notificationID string) (*domain.DispatchSummary, error)
	Delete(ctx context.Context, notificationID string) error
}

// RedisReportStore stores summaries as JSON with a TTL.
type RedisReportStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisReportStore builds the store.
func NewRedisReportStore(client *redis.Client, ttl time.Duration) *RedisReportStore {
	return &RedisReportStore{client: client, ttl: ttl}
}

func reportKey(notificationID string) string {
	return "notification:dispatch:" + notificationID
}

func (s *RedisReportStore) Save(ctx context.Context, summary domain.DispatchSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, reportKey(summary.NotificationID), payload, s.ttl).Err()
}

func (s *RedisReportStore) Get(ctx context.Context, notificationID string) (*domain.DispatchSummary, error) {
	payload, err := s.client.Get(ctx, reportKey(notificationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	var summary domain.DispatchSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *RedisReportStore) Delete(ctx context.Context, notificationID string) error {
	return s.client.Del(ctx, reportKey(notificationID)).Err()
}
