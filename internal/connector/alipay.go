package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"LexGate/internal/conf"
	"LexGate/internal/model"
	"LexGate/pkg/signature"

	"github.com/go-kratos/kratos/v2/log"
)

// AlipayConnector calls the Alipay open gateway. Every request is a
// form POST to the single gateway endpoint, signed with the merchant
// RSA private key (RSA2 scheme).
type AlipayConnector struct {
	appID      string
	gatewayURL string
	signer     *signature.RSASigner
	client     *http.Client
	logger     *log.Helper
}

// NewAlipayConnector creates the Alipay connector.
func NewAlipayConnector(c *conf.Services, logger log.Logger) (*AlipayConnector, error) {
	client, err := newHTTPClient(c.ProxyUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to create alipay HTTP client: %w", err)
	}

	conn := &AlipayConnector{
		appID:      c.Alipay.AppId,
		gatewayURL: c.Alipay.GatewayUrl,
		client:     client,
		logger:     log.NewHelper(logger),
	}

	// The signer is optional at startup so the gateway can boot without
	// payment credentials; dispatches to alipay then fail cleanly.
	if c.Alipay.PrivateKey != "" {
		signer, err := signature.NewRSASigner(c.Alipay.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("invalid alipay private key: %w", err)
		}
		conn.signer = signer
	}

	return conn, nil
}

// Name returns the service name for routing.
func (c *AlipayConnector) Name() string {
	return model.ServiceAlipay
}

// Call signs and posts one request to the Alipay gateway.
func (c *AlipayConnector) Call(ctx context.Context, req *model.IntegrationRequest) (*Response, error) {
	if c.signer == nil {
		return nil, &Error{
			Service:   model.ServiceAlipay,
			Code:      "NOT_CONFIGURED",
			Message:   "alipay private key not configured",
			Transient: false,
		}
	}
	if req.Operation == "" {
		return nil, &Error{
			Service:   model.ServiceAlipay,
			Code:      "INVALID_REQUEST",
			Message:   "operation is required",
			Transient: false,
		}
	}

	params := map[string]string{
		"app_id":    c.appID,
		"method":    req.Operation,
		"format":    "JSON",
		"charset":   "utf-8",
		"sign_type": "RSA2",
		"timestamp": time.Now().Format("2006-01-02 15:04:05"),
		"version":   "1.0",
	}
	for k, v := range req.Params {
		params[k] = v
	}
	if len(req.Body) > 0 {
		params["biz_content"] = string(req.Body)
	}

	sign, err := c.signer.Sign(params)
	if err != nil {
		return nil, &Error{
			Service:   model.ServiceAlipay,
			Code:      "SIGN_FAILED",
			Message:   fmt.Sprintf("failed to sign request: %v", err),
			Transient: false,
		}
	}
	params["sign"] = sign

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &Error{
			Service:   model.ServiceAlipay,
			Code:      "INVALID_REQUEST",
			Message:   fmt.Sprintf("failed to build request: %v", err),
			Transient: false,
		}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	status, body, err := doRequest(c.client, model.ServiceAlipay, httpReq)
	if err != nil {
		return nil, err
	}

	if err := classifyStatus(model.ServiceAlipay, status, body); err != nil {
		return nil, err
	}

	c.logger.Debugw("alipay call completed",
		"operation", req.Operation,
		"status", status)

	return &Response{StatusCode: status, Body: body}, nil
}
