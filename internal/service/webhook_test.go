package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LexGate/internal/biz"
	"LexGate/internal/conf"
	"LexGate/internal/model"
	"LexGate/pkg/signature"
)

const testWechatKey = "wechat-merchant-api-key"

// nopNotifier implements biz.PaymentNotifier.
type nopNotifier struct{}

func (nopNotifier) NotifyPaymentConfirmed(ctx context.Context, event *model.PaymentEvent) error {
	return nil
}

// claimAllRepo implements biz.WebhookRepo, claiming every notification.
type claimAllRepo struct{}

func (claimAllRepo) ClaimNotification(ctx context.Context, service, notificationID string, ttl time.Duration) (bool, error) {
	return true, nil
}

func (claimAllRepo) ReleaseNotification(ctx context.Context, service, notificationID string) error {
	return nil
}

// nopAudit implements biz.AuditLogger with no-ops.
type nopAudit struct{}

func (nopAudit) LogDispatch(ctx context.Context, service, operation string, result *model.IntegrationResult) {
}
func (nopAudit) LogCircuitOpened(ctx context.Context, event *model.CircuitOpenedEvent)  {}
func (nopAudit) LogCircuitClosed(ctx context.Context, event *model.CircuitClosedEvent)  {}
func (nopAudit) LogCircuitReset(ctx context.Context, service, subject string)           {}
func (nopAudit) LogWorkflowStarted(ctx context.Context, exec *model.WorkflowExecution)  {}
func (nopAudit) LogWorkflowFinished(ctx context.Context, exec *model.WorkflowExecution) {}
func (nopAudit) LogCompensationRun(ctx context.Context, executionID, stepName string, success bool) {
}
func (nopAudit) LogWebhookReceived(ctx context.Context, service, notificationID string)  {}
func (nopAudit) LogWebhookRejected(ctx context.Context, service, reason string)          {}
func (nopAudit) LogExecutionsExpired(ctx context.Context, count int64, olderThan time.Time) {}

func newTestWebhookService(t *testing.T) *WebhookService {
	t.Helper()

	c := &conf.Services{
		Alipay: &conf.Services_Alipay{},
		Wechat: &conf.Services_Wechat{ApiKey: testWechatKey},
		Court:  &conf.Services_Court{},
	}

	uc, err := biz.NewWebhookUsecase(c, claimAllRepo{}, nopNotifier{}, nopAudit{}, log.DefaultLogger)
	require.NoError(t, err)

	return NewWebhookService(uc, log.DefaultLogger)
}

func signedWechatParams() map[string]string {
	params := map[string]string{
		"appid":          "wx-test-app",
		"mch_id":         "mch-100200",
		"transaction_id": "4200001-test",
		"out_trade_no":   "INV-2026-0042",
		"total_fee":      "50000",
		"result_code":    "SUCCESS",
	}
	signer := signature.NewHMACSigner(testWechatKey)
	params["sign"] = signer.Sign(params)
	return params
}

func TestHandleWechat_AcksSuccess(t *testing.T) {
	svc := newTestWebhookService(t)

	ack := svc.HandleWechat(context.Background(), signedWechatParams())

	assert.Contains(t, ack, "<return_code><![CDATA[SUCCESS]]></return_code>")
	assert.Contains(t, ack, "<return_msg><![CDATA[OK]]></return_msg>")
}

func TestHandleWechat_BadSignatureAcksFail(t *testing.T) {
	svc := newTestWebhookService(t)

	params := signedWechatParams()
	params["total_fee"] = "1" // tampered after signing

	ack := svc.HandleWechat(context.Background(), params)

	assert.Contains(t, ack, "<return_code><![CDATA[FAIL]]></return_code>")
}

func TestHandleAlipay_UnconfiguredAcksFailure(t *testing.T) {
	// No Alipay public key configured: every notification is rejected.
	svc := newTestWebhookService(t)

	ack := svc.HandleAlipay(context.Background(), map[string]string{
		"notify_id": "n-1",
		"sign":      "irrelevant",
	})

	assert.Equal(t, "failure", ack)
}
