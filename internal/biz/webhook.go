package biz

import (
	"context"
	"fmt"
	"time"

	"LexGate/internal/conf"
	"LexGate/internal/model"
	"LexGate/pkg/signature"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// notificationDedupTTL is how long a processed notification ID is
// remembered. Providers stop redelivering within a day.
const notificationDedupTTL = 24 * time.Hour

// newInvalidSignatureError creates an HTTP 400 error for a rejected webhook.
func newInvalidSignatureError(service string) error {
	return kerrors.New(400, "INVALID_SIGNATURE", "webhook signature verification failed for "+service)
}

// WebhookUsecase verifies and deduplicates inbound payment notifications.
// Alipay notifications carry an RSA2 signature checked against the
// Alipay public key; WeChat Pay notifications carry an HMAC-SHA256
// signature checked with the merchant API key. Each notification ID is
// processed exactly once across all gateway instances.
type WebhookUsecase struct {
	repo     WebhookRepo
	notifier PaymentNotifier
	audit    AuditLogger
	verifier *signature.RSAVerifier
	hmac     *signature.HMACSigner
	logger   *log.Helper
}

// NewWebhookUsecase creates the webhook use case.
func NewWebhookUsecase(c *conf.Services, repo WebhookRepo, notifier PaymentNotifier, audit AuditLogger, logger log.Logger) (*WebhookUsecase, error) {
	uc := &WebhookUsecase{
		repo:     repo,
		notifier: notifier,
		audit:    audit,
		logger:   log.NewHelper(logger),
	}

	if c.Alipay.PublicKey != "" {
		verifier, err := signature.NewRSAVerifier(c.Alipay.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("invalid alipay public key: %w", err)
		}
		uc.verifier = verifier
	}
	if c.Wechat.ApiKey != "" {
		uc.hmac = signature.NewHMACSigner(c.Wechat.ApiKey)
	}

	return uc, nil
}

// HandleAlipay processes one Alipay asynchronous notification.
// A nil return means the HTTP handler should acknowledge with "success".
func (uc *WebhookUsecase) HandleAlipay(ctx context.Context, params map[string]string) error {
	if uc.verifier == nil {
		uc.audit.LogWebhookRejected(ctx, model.ServiceAlipay, "alipay public key not configured")
		return newInvalidSignatureError(model.ServiceAlipay)
	}

	sign := params["sign"]
	if sign == "" {
		uc.audit.LogWebhookRejected(ctx, model.ServiceAlipay, "missing signature")
		return newInvalidSignatureError(model.ServiceAlipay)
	}

	if err := uc.verifier.Verify(params, sign); err != nil {
		uc.logger.Warnw("alipay webhook signature rejected",
			"notify_id", params["notify_id"],
			"error", err)
		uc.audit.LogWebhookRejected(ctx, model.ServiceAlipay, "signature verification failed")
		return newInvalidSignatureError(model.ServiceAlipay)
	}

	event := &model.PaymentEvent{
		Service:        model.ServiceAlipay,
		NotificationID: params["notify_id"],
		TradeNo:        params["trade_no"],
		OutTradeNo:     params["out_trade_no"],
		Amount:         params["total_amount"],
		Status:         params["trade_status"],
		ReceivedAt:     time.Now(),
	}

	return uc.process(ctx, event)
}

// HandleWechat processes one WeChat Pay notification, already decoded
// from XML into a flat parameter map.
func (uc *WebhookUsecase) HandleWechat(ctx context.Context, params map[string]string) error {
	if uc.hmac == nil {
		uc.audit.LogWebhookRejected(ctx, model.ServiceWechat, "wechat API key not configured")
		return newInvalidSignatureError(model.ServiceWechat)
	}

	sign := params["sign"]
	if sign == "" || !uc.hmac.Verify(params, sign) {
		uc.logger.Warnw("wechat webhook signature rejected",
			"transaction_id", params["transaction_id"])
		uc.audit.LogWebhookRejected(ctx, model.ServiceWechat, "signature verification failed")
		return newInvalidSignatureError(model.ServiceWechat)
	}

	event := &model.PaymentEvent{
		Service:        model.ServiceWechat,
		NotificationID: params["transaction_id"],
		TradeNo:        params["transaction_id"],
		OutTradeNo:     params["out_trade_no"],
		Amount:         params["total_fee"],
		Status:         params["result_code"],
		ReceivedAt:     time.Now(),
	}

	return uc.process(ctx, event)
}

// process claims the notification ID and pushes the event downstream.
// Redeliveries of an already-claimed ID are acknowledged silently.
func (uc *WebhookUsecase) process(ctx context.Context, event *model.PaymentEvent) error {
	if event.NotificationID == "" {
		uc.audit.LogWebhookRejected(ctx, event.Service, "missing notification id")
		return kerrors.New(400, "INVALID_NOTIFICATION", "notification id is required")
	}

	claimed, err := uc.repo.ClaimNotification(ctx, event.Service, event.NotificationID, notificationDedupTTL)
	if err != nil {
		// Redis failure: process anyway rather than drop a payment event.
		uc.logger.Warnf("Redis webhook dedup failed for %s/%s: %v (processing)",
			event.Service, event.NotificationID, err)
	} else if !claimed {
		uc.logger.Infow("duplicate webhook notification acknowledged",
			"service", event.Service,
			"notification_id", event.NotificationID)
		return nil
	}

	if err := uc.notifier.NotifyPaymentConfirmed(ctx, event); err != nil {
		// Free the claim so the provider's redelivery gets another shot.
		if relErr := uc.repo.ReleaseNotification(ctx, event.Service, event.NotificationID); relErr != nil {
			uc.logger.Warnf("failed to release notification claim %s/%s: %v",
				event.Service, event.NotificationID, relErr)
		}
		return fmt.Errorf("failed to process payment event: %w", err)
	}

	uc.audit.LogWebhookReceived(ctx, event.Service, event.NotificationID)
	uc.logger.Infow("webhook notification processed",
		"service", event.Service,
		"notification_id", event.NotificationID,
		"out_trade_no", event.OutTradeNo)

	return nil
}
