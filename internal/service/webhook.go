package service

import (
	"context"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"

	"LexGate/internal/biz"
)

// Alipay acknowledgement bodies. The provider retries delivery until it
// receives the literal string "success".
const (
	alipayAckSuccess = "success"
	alipayAckFailure = "failure"
)

// WebhookService handles inbound payment notifications. Replies use the
// provider's expected acknowledgement format, not JSON.
type WebhookService struct {
	uc     *biz.WebhookUsecase
	logger *log.Helper
}

// NewWebhookService creates a webhook service.
func NewWebhookService(uc *biz.WebhookUsecase, logger log.Logger) *WebhookService {
	return &WebhookService{
		uc:     uc,
		logger: log.NewHelper(logger),
	}
}

// HandleAlipay verifies and processes an Alipay async notification.
// Returns the plain-text acknowledgement body Alipay expects.
func (s *WebhookService) HandleAlipay(ctx context.Context, params map[string]string) string {
	if err := s.uc.HandleAlipay(ctx, params); err != nil {
		s.logger.WithContext(ctx).Warnw(
			"msg", "alipay notification rejected",
			"notify_id", params["notify_id"],
			"error", err.Error(),
		)
		return alipayAckFailure
	}
	return alipayAckSuccess
}

// HandleWechat verifies and processes a WeChat Pay notification.
// Returns the XML acknowledgement body WeChat Pay expects.
func (s *WebhookService) HandleWechat(ctx context.Context, params map[string]string) string {
	if err := s.uc.HandleWechat(ctx, params); err != nil {
		s.logger.WithContext(ctx).Warnw(
			"msg", "wechat notification rejected",
			"transaction_id", params["transaction_id"],
			"error", err.Error(),
		)
		return wechatAck("FAIL", "signature verification failed")
	}
	return wechatAck("SUCCESS", "OK")
}

func wechatAck(code, msg string) string {
	return fmt.Sprintf("<xml><return_code><![CDATA[%s]]></return_code><return_msg><![CDATA[%s]]></return_msg></xml>", code, msg)
}
