package database

import (
	"context"
	"time"

	"github.com/SlpAus/apkstore-backend/internal/platform/config"
	"github.com/apex/log"
	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 2 * time.Second

// OpenRedis 创建Redis客户端。未启用Redis时返回nil。
// 启动时Ping失败只记录警告，依赖Redis的功能会自行降级。
func OpenRedis(cfg config.RedisConfig) *redis.Client {
	if !cfg.Enabled {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: redisPingTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.WithError(err).WithField("address", cfg.Address).Warn("Redis 暂时无法连接，频率限制将放行所有请求")
	} else {
		log.WithField("address", cfg.Address).Info("Redis 连接成功")
	}
	return rdb
}
