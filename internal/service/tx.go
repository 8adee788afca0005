package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/YouHyuksoo/HANES-sub002/internal/logger"
	"github.com/YouHyuksoo/HANES-sub002/internal/metrics"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// TxManager 工作单元边界：每个对外操作一个事务，读取、校验、写入与汇总重算都在其中完成
type TxManager struct {
	db         *gorm.DB
	maxRetries int
	metrics    *metrics.ShippingMetrics
	backoff    time.Duration
}

// NewTxManager 创建事务协调器
func NewTxManager(db *gorm.DB, maxRetries int, m *metrics.ShippingMetrics) *TxManager {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &TxManager{db: db, maxRetries: maxRetries, metrics: m, backoff: 20 * time.Millisecond}
}

// DB 返回绑定 context 的只读连接
func (m *TxManager) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return m.db
	}
	return m.db.WithContext(ctx)
}

// Do 在一个事务中执行 fn，序列化冲突时整体重试
func (m *TxManager) Do(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	opts := m.txOptions()
	for attempt := 0; ; attempt++ {
		err := m.db.WithContext(ctx).Transaction(fn, opts...)
		if err == nil {
			return nil
		}
		if attempt >= m.maxRetries || !isRetryableTxError(err) || ctx.Err() != nil {
			return err
		}
		m.metrics.IncTxRetry()
		logger.FromContext(ctx).Warnw("shipping_tx_retry",
			"attempt", attempt+1,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.backoff * time.Duration(attempt+1)):
		}
	}
}

// txOptions postgres 使用 SERIALIZABLE；sqlite 为单写者，默认事务即串行
func (m *TxManager) txOptions() []*sql.TxOptions {
	if m.db == nil || m.db.Dialector == nil {
		return nil
	}
	switch strings.ToLower(m.db.Dialector.Name()) {
	case "postgres", "postgresql":
		return []*sql.TxOptions{{Isolation: sql.LevelSerializable}}
	default:
		return nil
	}
}

func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range sqliteLockMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// sqlite 忙/锁冲突：共享缓存模式下报 table is locked，文件库报 database is locked
var sqliteLockMarkers = []string{
	"database is locked",
	"database table is locked",
	"sqlite_busy",
	"sqlite_locked",
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
