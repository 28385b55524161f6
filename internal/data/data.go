// Package data provides data access layer implementations.
// It holds the Redis-backed breaker and rate-limit state, the MySQL-backed
// workflow execution store, and the async audit writer.
package data

import (
	"fmt"

	"LexGate/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewRedisClient,
	NewMySQLClient,
)

// Data contains shared data layer dependencies.
type Data struct {
	db          *gorm.DB
	redisClient *redis.Client
}

// NewData creates the shared Data instance and migrates the MySQL schema.
// Redis connection failure does not prevent application startup.
func NewData(_ *conf.Data, logger log.Logger, db *gorm.DB, rdb *redis.Client) (*Data, func(), error) {
	helper := log.NewHelper(logger)

	if rdb == nil {
		helper.Warn("Redis client is nil, breaker and limiter state will degrade to allow")
	}

	if err := db.AutoMigrate(&WorkflowExecution{}, &AuditLog{}); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}

	d := &Data{
		db:          db,
		redisClient: rdb,
	}

	cleanup := func() {
		helper.Info("closing the data resources")
		// Redis and MySQL connections are closed by their own cleanups.
	}

	return d, cleanup, nil
}

// GetRedisClient returns the Redis client for advanced operations.
func (d *Data) GetRedisClient() *redis.Client {
	return d.redisClient
}
