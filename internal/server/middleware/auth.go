package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/golang-jwt/jwt/v5"

	"LexGate/internal/conf"
	pkglog "LexGate/pkg/log"
)

// authSkipPrefixes lists paths served without a token. Webhook endpoints
// authenticate with provider signatures instead, and health checks must
// stay reachable for probes.
var authSkipPrefixes = []string{
	"/webhooks/",
	"/healthz",
}

func newUnauthorizedError(msg string) error {
	return errors.New(401, "UNAUTHORIZED", msg)
}

// Auth returns a middleware that validates the Bearer JWT on API
// requests and records the token subject in the request context for
// audit attribution. When no secret is configured, authentication is
// disabled; this is only sensible for local development.
func Auth(c *conf.Auth, logger log.Logger) middleware.Middleware {
	helper := log.NewHelper(logger)
	secret := ""
	if c != nil && c.Jwt != nil {
		secret = c.Jwt.Secret
	}
	if secret == "" {
		helper.Warnw("msg", "JWT secret not configured, API authentication disabled")
	}

	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			if secret == "" {
				return handler(ctx, req)
			}

			var (
				path      string
				authValue string
			)
			if tr, ok := transport.FromServerContext(ctx); ok {
				if ht, ok := tr.(http.Transporter); ok {
					httpReq := ht.Request()
					path = httpReq.URL.Path
					authValue = httpReq.Header.Get("Authorization")
				}
			}

			for _, prefix := range authSkipPrefixes {
				if strings.HasPrefix(path, prefix) {
					return handler(ctx, req)
				}
			}

			token := strings.TrimSpace(strings.TrimPrefix(authValue, "Bearer "))
			if token == "" {
				return nil, newUnauthorizedError("missing bearer token")
			}

			subject, err := verifyToken(token, secret)
			if err != nil {
				helper.WithContext(ctx).Warnw(
					"msg", "token rejected",
					"path", path,
					"error", err.Error(),
				)
				return nil, newUnauthorizedError("invalid token")
			}

			rc := pkglog.GetRequestContext(ctx)
			ctx = pkglog.WithRequestContext(ctx, rc.RequestID, subject)

			return handler(ctx, req)
		}
	}
}

// verifyToken parses an HS256 JWT and returns its subject claim.
func verifyToken(token, secret string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !parsed.Valid {
		return "", fmt.Errorf("token is not valid")
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("failed to read subject claim: %w", err)
	}
	return subject, nil
}
