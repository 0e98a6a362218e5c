package redisscheduler

import (
	"context"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/jdziat/redis-scheduler/pkg/gormstore"
	"github.com/jdziat/redis-scheduler/pkg/memstore"
	"github.com/jdziat/redis-scheduler/pkg/redisstore"
)

type (
	// RedisStore is a Driver backed by Redis.
	RedisStore = redisstore.Driver

	// GormStore is a Driver backed by a SQL database through GORM.
	GormStore = gormstore.Driver

	// MemoryStore is an in-process Driver.
	MemoryStore = memstore.Store
)

// NewRedisStore creates a Redis driver using client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return redisstore.New(client)
}

// NewGormStore configures the pool of db, migrates the scheduler tables and
// returns a driver.
func NewGormStore(ctx context.Context, db *gorm.DB, opts ...gormstore.PoolOption) (*GormStore, error) {
	return gormstore.Open(ctx, db, opts...)
}

// NewMemoryStore creates an empty in-process store. Schedulers only
// cooperate when they share the same MemoryStore.
func NewMemoryStore() *MemoryStore {
	return memstore.New()
}
