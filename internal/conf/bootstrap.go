package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/protobuf/types/known/durationpb"
)

// NewBootstrap creates and initializes a Bootstrap configuration.
// It loads configuration from the specified config file path, applies defaults,
// and allows overrides from environment variables prefixed with LEXGATE_.
//
// Configuration priority: CLI flags > Environment variables > Config file > Defaults
//
// Required environment variables:
//   - MYSQL_DSN or LEXGATE_DATA_DATABASE_SOURCE: MySQL connection string
//   - JWT_SECRET or LEXGATE_AUTH_JWT_SECRET: JWT signing secret
//   - ENCRYPTION_KEY or LEXGATE_AUTH_ENCRYPTION_KEY: Data encryption key
//
// Per-service credentials (Alipay keys, WeChat API key, court filing API key)
// are normally supplied through the environment as well.
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Enable environment variable support with LEXGATE_ prefix
	v.SetEnvPrefix("LEXGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow direct environment variable names (without LEXGATE_ prefix) for compatibility
	_ = v.BindEnv("data.database.source", "MYSQL_DSN", "LEXGATE_DATA_DATABASE_SOURCE")
	_ = v.BindEnv("data.redis.addr", "LEXGATE_DATA_REDIS_ADDR")
	_ = v.BindEnv("auth.jwt.secret", "JWT_SECRET", "LEXGATE_AUTH_JWT_SECRET")
	_ = v.BindEnv("auth.encryption.key", "ENCRYPTION_KEY", "LEXGATE_AUTH_ENCRYPTION_KEY")
	_ = v.BindEnv("services.alipay.private_key", "ALIPAY_PRIVATE_KEY", "LEXGATE_SERVICES_ALIPAY_PRIVATE_KEY")
	_ = v.BindEnv("services.alipay.public_key", "ALIPAY_PUBLIC_KEY", "LEXGATE_SERVICES_ALIPAY_PUBLIC_KEY")
	_ = v.BindEnv("services.wechat.api_key", "WECHAT_API_KEY", "LEXGATE_SERVICES_WECHAT_API_KEY")
	_ = v.BindEnv("services.court.api_key", "COURT_API_KEY", "LEXGATE_SERVICES_COURT_API_KEY")

	// Load configuration file
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// If config file is specified but not found, return error
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	// Parse configuration into Bootstrap structure
	bc := &Bootstrap{
		Server: &Server{
			Http: &Server_HTTP{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: durationpb.New(v.GetDuration("server.http.timeout")),
			},
			Grpc: &Server_GRPC{
				Network: v.GetString("server.grpc.network"),
				Addr:    v.GetString("server.grpc.addr"),
				Timeout: durationpb.New(v.GetDuration("server.grpc.timeout")),
			},
		},
		Data: &Data{
			Database: &Data_Database{
				Driver: v.GetString("data.database.driver"),
				Source: v.GetString("data.database.source"),
			},
			Redis: &Data_Redis{
				Network:      v.GetString("data.redis.network"),
				Addr:         v.GetString("data.redis.addr"),
				ReadTimeout:  durationpb.New(v.GetDuration("data.redis.read_timeout")),
				WriteTimeout: durationpb.New(v.GetDuration("data.redis.write_timeout")),
			},
		},
		Auth: &Auth{
			Jwt: &Auth_JWT{
				Secret:  v.GetString("auth.jwt.secret"),
				Expires: durationpb.New(v.GetDuration("auth.jwt.expires")),
			},
			Encryption: &Auth_Encryption{
				Key: v.GetString("auth.encryption.key"),
			},
		},
		Gateway: &Gateway{
			Breaker: &Gateway_Breaker{
				FailureThreshold: v.GetInt32("gateway.breaker.failure_threshold"),
				ResetTimeout:     durationpb.New(v.GetDuration("gateway.breaker.reset_timeout")),
				CallTimeout:      durationpb.New(v.GetDuration("gateway.breaker.call_timeout")),
			},
			RateLimit: &Gateway_RateLimit{
				MaxRequests: v.GetInt32("gateway.rate_limit.max_requests"),
				Window:      durationpb.New(v.GetDuration("gateway.rate_limit.window")),
			},
			Retry: &Gateway_Retry{
				MaxAttempts:       v.GetInt32("gateway.retry.max_attempts"),
				BaseDelay:         durationpb.New(v.GetDuration("gateway.retry.base_delay")),
				MaxDelay:          durationpb.New(v.GetDuration("gateway.retry.max_delay")),
				BackoffMultiplier: v.GetFloat64("gateway.retry.backoff_multiplier"),
			},
		},
		Services: &Services{
			Alipay: &Services_Alipay{
				AppId:      v.GetString("services.alipay.app_id"),
				GatewayUrl: v.GetString("services.alipay.gateway_url"),
				PrivateKey: v.GetString("services.alipay.private_key"),
				PublicKey:  v.GetString("services.alipay.public_key"),
			},
			Wechat: &Services_Wechat{
				MchId:  v.GetString("services.wechat.mch_id"),
				AppId:  v.GetString("services.wechat.app_id"),
				ApiUrl: v.GetString("services.wechat.api_url"),
				ApiKey: v.GetString("services.wechat.api_key"),
			},
			Court: &Services_Court{
				BaseUrl: v.GetString("services.court.base_url"),
				ApiKey:  v.GetString("services.court.api_key"),
			},
			ProxyUrl: v.GetString("services.proxy_url"),
		},
		Log: &Log{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Env:        v.GetString("log.env"),
			OutputFile: v.GetString("log.output_file"),
		},
	}

	// Validate required fields
	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.timeout", 2*time.Minute)

	v.SetDefault("server.grpc.network", "tcp")
	v.SetDefault("server.grpc.addr", ":9000")
	v.SetDefault("server.grpc.timeout", 2*time.Minute)

	// Data defaults
	v.SetDefault("data.database.driver", "mysql")
	// Note: data.database.source (MYSQL_DSN) is required from environment

	v.SetDefault("data.redis.network", "tcp")
	v.SetDefault("data.redis.addr", "127.0.0.1:6379")
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)

	// Auth defaults
	// Note: auth.jwt.secret and auth.encryption.key are required from environment
	v.SetDefault("auth.jwt.expires", 24*time.Hour)

	// Gateway resilience defaults
	v.SetDefault("gateway.breaker.failure_threshold", 5)
	v.SetDefault("gateway.breaker.reset_timeout", 30*time.Second)
	v.SetDefault("gateway.breaker.call_timeout", 15*time.Second)
	v.SetDefault("gateway.rate_limit.max_requests", 60)
	v.SetDefault("gateway.rate_limit.window", time.Minute)
	v.SetDefault("gateway.retry.max_attempts", 3)
	v.SetDefault("gateway.retry.base_delay", 500*time.Millisecond)
	v.SetDefault("gateway.retry.max_delay", 10*time.Second)
	v.SetDefault("gateway.retry.backoff_multiplier", 2.0)

	// Service endpoint defaults (credentials come from environment)
	v.SetDefault("services.alipay.gateway_url", "https://openapi.alipay.com/gateway.do")
	v.SetDefault("services.wechat.api_url", "https://api.mch.weixin.qq.com")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that all required configuration fields are present and valid.
// It returns an error listing all missing required fields.
func Validate(bc *Bootstrap) error {
	var missingFields []string

	// Check required database configuration
	if bc.Data == nil || bc.Data.Database == nil || bc.Data.Database.Source == "" {
		missingFields = append(missingFields, "data.database.source (MYSQL_DSN)")
	}

	// Check required auth configuration
	if bc.Auth == nil || bc.Auth.Jwt == nil || bc.Auth.Jwt.Secret == "" {
		missingFields = append(missingFields, "auth.jwt.secret (JWT_SECRET)")
	}

	if bc.Auth == nil || bc.Auth.Encryption == nil || bc.Auth.Encryption.Key == "" {
		missingFields = append(missingFields, "auth.encryption.key (ENCRYPTION_KEY)")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required configuration fields: %s", strings.Join(missingFields, ", "))
	}

	// A zero threshold would trip the breaker on the first request.
	if bc.Gateway != nil {
		if b := bc.Gateway.Breaker; b != nil && b.FailureThreshold <= 0 {
			return fmt.Errorf("gateway.breaker.failure_threshold must be positive, got %d", b.FailureThreshold)
		}
		if r := bc.Gateway.Retry; r != nil && r.BackoffMultiplier != 0 && r.BackoffMultiplier < 1.0 {
			return fmt.Errorf("gateway.retry.backoff_multiplier must be >= 1.0, got %v", r.BackoffMultiplier)
		}
	}

	return nil
}
