package connector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/proxy"
)

// newHTTPClient creates an HTTP client, optionally routed through a
// SOCKS5 or HTTP/HTTPS proxy. Request timeouts come from the caller's
// context, not the client, so the breaker's call timeout stays in charge.
func newHTTPClient(proxyURL string) (*http.Client, error) {
	if proxyURL == "" {
		return &http.Client{}, nil
	}

	parsedProxy, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}

	switch parsedProxy.Scheme {
	case "socks5":
		return newSOCKS5Client(parsedProxy)
	case "http", "https":
		return &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyURL(parsedProxy),
			},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported proxy scheme: %s", parsedProxy.Scheme)
	}
}

func newSOCKS5Client(proxyURL *url.URL) (*http.Client, error) {
	var auth *proxy.Auth
	if proxyURL.User != nil {
		password, _ := proxyURL.User.Password()
		auth = &proxy.Auth{
			User:     proxyURL.User.Username(),
			Password: password,
		}
	}

	dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	return &http.Client{
		Transport: &http.Transport{
			Dial: dialer.Dial,
		},
	}, nil
}

// doRequest executes an HTTP request and reads the full body, mapping
// transport failures into classified connector errors.
func doRequest(client *http.Client, service string, req *http.Request) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, classifyTransportError(service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return 0, nil, &Error{
			Service:   service,
			Code:      "READ_FAILED",
			Message:   fmt.Sprintf("failed to read response body: %v", err),
			Transient: true,
		}
	}

	return resp.StatusCode, body, nil
}

// classifyTransportError maps net/http errors onto connector errors.
// Timeouts and connection failures are transient.
func classifyTransportError(service string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Service:   service,
			Code:      "TIMEOUT",
			Message:   "request timed out",
			Transient: true,
		}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{
			Service:   service,
			Code:      "CANCELED",
			Message:   "request canceled",
			Transient: false,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{
			Service:   service,
			Code:      "TIMEOUT",
			Message:   "request timed out",
			Transient: true,
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "broken pipe") {
		return &Error{
			Service:   service,
			Code:      "CONNECTION_FAILED",
			Message:   err.Error(),
			Transient: true,
		}
	}

	return &Error{
		Service:   service,
		Code:      "TRANSPORT_ERROR",
		Message:   err.Error(),
		Transient: false,
	}
}

// classifyStatus converts a non-2xx HTTP status into a connector error.
// 5xx and 429 are transient, other 4xx are permanent.
func classifyStatus(service string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	transient := status >= 500 || status == http.StatusTooManyRequests
	code := "UPSTREAM_ERROR"
	if !transient {
		code = "UPSTREAM_REJECTED"
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}

	return &Error{
		Service:   service,
		Code:      code,
		Message:   fmt.Sprintf("upstream returned %d: %s", status, msg),
		Transient: transient,
	}
}
