package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/apex/log"
	"gorm.io/gorm"
)

// Prober 是可用性探测器：每次调用都重新做一次往返，不缓存结果
type Prober interface {
	Probe(ctx context.Context) bool
}

// DBProber 通过 SELECT 1 探测关系数据库是否可用。
// 如果启动时数据库不可用导致表结构未创建，第一次探测成功时会补做迁移，
// 迁移失败同样视为不可用。
type DBProber struct {
	db      *gorm.DB
	timeout time.Duration

	migrateMu sync.Mutex
	migrated  bool
	migrate   func(*gorm.DB) error
}

// NewDBProber 创建探测器。migrated 表示启动阶段是否已经成功迁移过表结构。
func NewDBProber(db *gorm.DB, timeout time.Duration, migrated bool) *DBProber {
	return &DBProber{
		db:       db,
		timeout:  timeout,
		migrated: migrated,
		migrate:  Migrate,
	}
}

// Probe 实现 Prober
func (p *DBProber) Probe(ctx context.Context) bool {
	if p == nil || p.db == nil {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var one int
	if err := p.db.WithContext(probeCtx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		return false
	}
	return p.ensureSchema(ctx)
}

func (p *DBProber) ensureSchema(ctx context.Context) bool {
	p.migrateMu.Lock()
	defer p.migrateMu.Unlock()
	if p.migrated {
		return true
	}
	if err := p.migrate(p.db.WithContext(ctx)); err != nil {
		log.WithError(err).Warn("数据库已恢复，但表结构迁移失败")
		return false
	}
	p.migrated = true
	log.Info("数据库已恢复，表结构迁移完成")
	return true
}

// ProberFunc 让普通函数满足 Prober 接口
type ProberFunc func(ctx context.Context) bool

func (f ProberFunc) Probe(ctx context.Context) bool { return f(ctx) }
