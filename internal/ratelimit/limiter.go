package ratelimit

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	// keyPrefix 是Redis中有序集合的键名前缀
	keyPrefix = "apkstore:interactions:"
	// opTimeout 是单次限流判断允许占用的最长时间
	opTimeout = 500 * time.Millisecond
)

// Limiter 是基于Redis有序集合的IP滑动窗口限流器。
// 每个IP一个有序集合，score 是请求时间（微秒），过期成员在每次请求时清理。
type Limiter struct {
	rdb    *redis.Client
	window time.Duration
	max    int64
}

// New 创建限流器。rdb 为nil时返回nil，nil限流器放行所有请求。
func New(rdb *redis.Client, window time.Duration, max int64) *Limiter {
	if rdb == nil {
		return nil
	}
	return &Limiter{rdb: rdb, window: window, max: max}
}

// generateMemberID 根据给定的时间生成一个16字节的、抗冲突的ID，并将其编码为Base64字符串。
// 结构: [ 8字节纳秒时间戳 (Big Endian) | 8字节随机数 ]
func generateMemberID(t time.Time) (string, error) {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:8], uint64(t.UnixNano()))
	if _, err := rand.Read(b[8:16]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Allow 为一个IP原子地记录一次请求，并报告窗口内的请求数是否仍在限制内。
// 超出限制的请求不会占用窗口配额。
func (l *Limiter) Allow(ctx context.Context, ip string, now time.Time) (bool, int64, error) {
	if net.ParseIP(ip) == nil {
		return false, 0, errors.New("请求IP无效")
	}

	key := keyPrefix + ip
	minScore := float64(now.Add(-l.window).UnixMicro())
	member, err := generateMemberID(now)
	if err != nil {
		return false, 0, fmt.Errorf("生成 memberID 失败: %w", err)
	}

	// 使用Redis事务(TxPipeline)来保证所有操作的原子性
	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%f", minScore))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMicro()), Member: member})
	pipe.Expire(ctx, key, l.window+time.Minute)
	countCmd := pipe.ZCard(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("执行IP计数事务失败: %w", err)
	}

	count, err := countCmd.Result()
	if err != nil {
		l.rdb.ZRem(ctx, key, member)
		return false, 0, fmt.Errorf("获取IP计数结果失败: %w", err)
	}

	if count > l.max {
		// 补偿：被拒绝的请求不计入窗口
		if err := l.rdb.ZRem(ctx, key, member).Err(); err != nil {
			log.WithError(err).WithField("ip", ip).Warn("限流补偿操作失败")
		}
		return false, count - 1, nil
	}
	return true, count, nil
}

// Middleware 返回gin中间件。Redis出错时放行请求，只记录警告。
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), opTimeout)
		defer cancel()

		allowed, _, err := l.Allow(ctx, c.ClientIP(), time.Now())
		if err != nil {
			log.WithError(err).WithField("ip", c.ClientIP()).Warn("限流器不可用，放行请求")
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(l.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "请求过于频繁，请稍后再试"})
			return
		}
		c.Next()
	}
}
