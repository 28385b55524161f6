package connector

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"LexGate/internal/conf"
	"LexGate/internal/model"
	"LexGate/pkg/signature"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// WechatConnector calls the WeChat Pay merchant API. Requests are XML
// documents signed with the merchant API key (HMAC-SHA256 scheme);
// the operation names the endpoint path, e.g. "/pay/unifiedorder".
type WechatConnector struct {
	mchID  string
	appID  string
	apiURL string
	signer *signature.HMACSigner
	client *http.Client
	logger *log.Helper
}

// NewWechatConnector creates the WeChat Pay connector.
func NewWechatConnector(c *conf.Services, logger log.Logger) (*WechatConnector, error) {
	client, err := newHTTPClient(c.ProxyUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to create wechat HTTP client: %w", err)
	}

	conn := &WechatConnector{
		mchID:  c.Wechat.MchId,
		appID:  c.Wechat.AppId,
		apiURL: strings.TrimRight(c.Wechat.ApiUrl, "/"),
		client: client,
		logger: log.NewHelper(logger),
	}

	if c.Wechat.ApiKey != "" {
		conn.signer = signature.NewHMACSigner(c.Wechat.ApiKey)
	}

	return conn, nil
}

// Name returns the service name for routing.
func (c *WechatConnector) Name() string {
	return model.ServiceWechat
}

// Call signs and posts one request to the WeChat Pay API.
func (c *WechatConnector) Call(ctx context.Context, req *model.IntegrationRequest) (*Response, error) {
	if c.signer == nil {
		return nil, &Error{
			Service:   model.ServiceWechat,
			Code:      "NOT_CONFIGURED",
			Message:   "wechat API key not configured",
			Transient: false,
		}
	}
	if req.Operation == "" {
		return nil, &Error{
			Service:   model.ServiceWechat,
			Code:      "INVALID_REQUEST",
			Message:   "operation is required",
			Transient: false,
		}
	}

	params := map[string]string{
		"appid":     c.appID,
		"mch_id":    c.mchID,
		"nonce_str": strings.ReplaceAll(uuid.NewString(), "-", ""),
		"sign_type": "HMAC-SHA256",
	}
	for k, v := range req.Params {
		params[k] = v
	}
	params["sign"] = c.signer.Sign(params)

	endpoint := c.apiURL + "/" + strings.TrimLeft(req.Operation, "/")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(encodeXML(params)))
	if err != nil {
		return nil, &Error{
			Service:   model.ServiceWechat,
			Code:      "INVALID_REQUEST",
			Message:   fmt.Sprintf("failed to build request: %v", err),
			Transient: false,
		}
	}
	httpReq.Header.Set("Content-Type", "text/xml;charset=utf-8")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	status, body, err := doRequest(c.client, model.ServiceWechat, httpReq)
	if err != nil {
		return nil, err
	}

	if err := classifyStatus(model.ServiceWechat, status, body); err != nil {
		return nil, err
	}

	c.logger.Debugw("wechat call completed",
		"operation", req.Operation,
		"status", status)

	return &Response{StatusCode: status, Body: body}, nil
}

// encodeXML renders params as the flat XML document WeChat Pay expects,
// keys sorted for stable output.
func encodeXML(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("<xml>")
	for _, k := range keys {
		b.WriteString("<")
		b.WriteString(k)
		b.WriteString("><![CDATA[")
		b.WriteString(params[k])
		b.WriteString("]]></")
		b.WriteString(k)
		b.WriteString(">")
	}
	b.WriteString("</xml>")
	return b.String()
}
