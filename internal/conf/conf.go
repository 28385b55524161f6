// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment variables,
// with CLI flag overrides.
package conf

import (
	"google.golang.org/protobuf/types/known/durationpb"
)

// Bootstrap is the root configuration of the LexGate service.
type Bootstrap struct {
	Server   *Server
	Data     *Data
	Auth     *Auth
	Gateway  *Gateway
	Services *Services
	Log      *Log
}

// Server holds transport server configuration.
type Server struct {
	Http *Server_HTTP
	Grpc *Server_GRPC
}

// Server_HTTP holds the HTTP server configuration.
type Server_HTTP struct {
	Network string
	Addr    string
	Timeout *durationpb.Duration
}

// Server_GRPC holds the gRPC server configuration.
type Server_GRPC struct {
	Network string
	Addr    string
	Timeout *durationpb.Duration
}

// Data holds data layer configuration.
type Data struct {
	Database *Data_Database
	Redis    *Data_Redis
}

// Data_Database holds the MySQL configuration.
type Data_Database struct {
	Driver string
	Source string
}

// Data_Redis holds the Redis configuration.
type Data_Redis struct {
	Network      string
	Addr         string
	ReadTimeout  *durationpb.Duration
	WriteTimeout *durationpb.Duration
}

// Auth holds authentication and encryption configuration.
type Auth struct {
	Jwt        *Auth_JWT
	Encryption *Auth_Encryption
}

// Auth_JWT holds JWT signing configuration for the gateway API.
type Auth_JWT struct {
	Secret  string
	Expires *durationpb.Duration
}

// Auth_Encryption holds the AES key used for credentials at rest.
type Auth_Encryption struct {
	Key string
}

// Gateway holds resilience defaults applied to every external service:
// circuit breaker thresholds, rate limit window and retry backoff policy.
type Gateway struct {
	Breaker   *Gateway_Breaker
	RateLimit *Gateway_RateLimit
	Retry     *Gateway_Retry
}

// Gateway_Breaker configures the per-service circuit breaker.
type Gateway_Breaker struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker open.
	FailureThreshold int32
	// ResetTimeout is how long the breaker stays open before admitting
	// a half-open probe.
	ResetTimeout *durationpb.Duration
	// CallTimeout bounds a single dispatch attempt; exceeding it counts
	// as a failure.
	CallTimeout *durationpb.Duration
}

// Gateway_RateLimit configures the fixed-window rate limiter.
type Gateway_RateLimit struct {
	// MaxRequests is the maximum number of requests per window for a
	// (service, identifier) pair.
	MaxRequests int32
	// Window is the fixed window duration.
	Window *durationpb.Duration
}

// Gateway_Retry configures the retry executor.
type Gateway_Retry struct {
	MaxAttempts       int32
	BaseDelay         *durationpb.Duration
	MaxDelay          *durationpb.Duration
	BackoffMultiplier float64
}

// Services holds per-provider credentials and endpoints.
type Services struct {
	Alipay *Services_Alipay
	Wechat *Services_Wechat
	Court  *Services_Court
	// ProxyUrl optionally routes all outbound calls through a
	// SOCKS5 or HTTP proxy.
	ProxyUrl string
}

// Services_Alipay holds Alipay open-gateway credentials.
type Services_Alipay struct {
	AppId      string
	GatewayUrl string
	// PrivateKey is the merchant RSA private key (PEM or base64 DER),
	// used to produce RSA2 request signatures.
	PrivateKey string
	// PublicKey is the Alipay RSA public key used to verify webhook
	// notifications.
	PublicKey string
}

// Services_Wechat holds WeChat Pay merchant credentials.
type Services_Wechat struct {
	MchId  string
	AppId  string
	ApiUrl string
	// ApiKey is the merchant API key used for HMAC-SHA256 signatures.
	ApiKey string
}

// Services_Court holds court filing system access configuration.
type Services_Court struct {
	BaseUrl string
	ApiKey  string
}

// Log holds logging configuration.
type Log struct {
	Level      string
	Format     string
	Env        string
	OutputFile string
}
