package data

import (
	"context"
	"fmt"
	"time"

	"LexGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// WebhookRepo implements biz.WebhookRepo interface.
// Payment providers redeliver notifications until acknowledged, so a
// notification ID must be claimed exactly once across all instances.
type WebhookRepo struct {
	rdb    *redis.Client
	logger *log.Helper
}

// NewWebhookRepo creates a new webhook repository.
func NewWebhookRepo(rdb *redis.Client, logger log.Logger) *WebhookRepo {
	return &WebhookRepo{
		rdb:    rdb,
		logger: log.NewHelper(logger),
	}
}

// ClaimNotification atomically claims a provider notification ID via
// SETNX. Returns true for the first delivery; redeliveries get false
// and should be acknowledged without reprocessing.
func (r *WebhookRepo) ClaimNotification(ctx context.Context, service, notificationID string, ttl time.Duration) (bool, error) {
	if r.rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	key := getWebhookDedupKey(service, notificationID)

	claimed, err := r.rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim notification: %w", err)
	}

	return claimed, nil
}

// ReleaseNotification drops a claim so the provider's redelivery can be
// processed. Called when handling fails after a successful claim.
func (r *WebhookRepo) ReleaseNotification(ctx context.Context, service, notificationID string) error {
	if r.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	if err := r.rdb.Del(ctx, getWebhookDedupKey(service, notificationID)).Err(); err != nil {
		return fmt.Errorf("failed to release notification claim: %w", err)
	}

	return nil
}

// getWebhookDedupKey generates a Redis key for webhook deduplication.
// Format: webhook:{service}:{notification_id}
func getWebhookDedupKey(service, notificationID string) string {
	return fmt.Sprintf("webhook:%s:%s", service, notificationID)
}

// NoopPaymentNotifier logs verified payment events instead of pushing
// them to downstream billing. Kept as the default until the billing
// consumer is wired up.
type NoopPaymentNotifier struct {
	logger *log.Helper
}

// NewNoopPaymentNotifier creates a new noop payment notifier.
func NewNoopPaymentNotifier(logger log.Logger) *NoopPaymentNotifier {
	return &NoopPaymentNotifier{
		logger: log.NewHelper(logger),
	}
}

// NotifyPaymentConfirmed logs a verified payment notification.
func (s *NoopPaymentNotifier) NotifyPaymentConfirmed(ctx context.Context, event *model.PaymentEvent) error {
	s.logger.Infow("payment confirmed (downstream notifier disabled)",
		"service", event.Service,
		"notification_id", event.NotificationID,
		"trade_no", event.TradeNo,
		"out_trade_no", event.OutTradeNo,
		"amount", event.Amount,
		"status", event.Status)
	return nil
}
