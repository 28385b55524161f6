package connector

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"LexGate/internal/conf"
	"LexGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// CourtConnector calls the court e-filing REST API. Unlike the payment
// connectors it is a plain JSON API authenticated with a bearer key;
// the request's method and path map directly onto endpoints.
type CourtConnector struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *log.Helper
}

// NewCourtConnector creates the court filing connector.
func NewCourtConnector(c *conf.Services, logger log.Logger) (*CourtConnector, error) {
	client, err := newHTTPClient(c.ProxyUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to create court HTTP client: %w", err)
	}

	return &CourtConnector{
		baseURL: strings.TrimRight(c.Court.BaseUrl, "/"),
		apiKey:  c.Court.ApiKey,
		client:  client,
		logger:  log.NewHelper(logger),
	}, nil
}

// Name returns the service name for routing.
func (c *CourtConnector) Name() string {
	return model.ServiceCourt
}

// Call performs one REST call against the court filing system.
func (c *CourtConnector) Call(ctx context.Context, req *model.IntegrationRequest) (*Response, error) {
	path := req.Path
	if path == "" {
		path = req.Operation
	}
	if path == "" {
		return nil, &Error{
			Service:   model.ServiceCourt,
			Code:      "INVALID_REQUEST",
			Message:   "path or operation is required",
			Transient: false,
		}
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")

	var body *bytes.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	} else {
		body = bytes.NewReader(nil)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, &Error{
			Service:   model.ServiceCourt,
			Code:      "INVALID_REQUEST",
			Message:   fmt.Sprintf("failed to build request: %v", err),
			Transient: false,
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	// Query-style parameters ride the URL for GET requests.
	if len(req.Params) > 0 {
		q := httpReq.URL.Query()
		for k, v := range req.Params {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	status, respBody, err := doRequest(c.client, model.ServiceCourt, httpReq)
	if err != nil {
		return nil, err
	}

	if err := classifyStatus(model.ServiceCourt, status, respBody); err != nil {
		return nil, err
	}

	c.logger.Debugw("court call completed",
		"method", method,
		"path", path,
		"status", status)

	return &Response{StatusCode: status, Body: respBody}, nil
}
