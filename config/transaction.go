package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// DefaultTxMaxRetries 事务冲突默认重试次数
const DefaultTxMaxRetries = 3

// ErrTxRetriesExhausted 事务冲突重试次数耗尽
var ErrTxRetriesExhausted = errors.New("transaction retries exhausted")

// MySQL 死锁与锁等待超时
const (
	mysqlErrLockDeadlock    = 1213
	mysqlErrLockWaitTimeout = 1205
)

// retryBackoff 第 n 次重试前的等待时间
var retryBackoff = func(attempt int) time.Duration {
	return time.Duration(50*(attempt+1)) * time.Millisecond
}

// Operation 可重试的操作
type Operation func() error

// WithRetries 执行操作，遇到可重试错误时按递增间隔重试，最多 maxRetries 次
func WithRetries(ctx context.Context, op Operation, maxRetries int, isRetryable func(error) bool) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		if attempt == maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff(attempt)):
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrTxRetriesExhausted, maxRetries+1, err)
}

// RunInTransaction 在事务中执行 fn，事务冲突时整体重试
// fn 可能被执行多次，所有写操作必须通过 tx 完成
func RunInTransaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	maxRetries := GetEnvInt("DB_TX_MAX_RETRIES", DefaultTxMaxRetries)
	return WithRetries(ctx, func() error {
		return db.WithContext(ctx).Transaction(fn)
	}, maxRetries, IsRetryableTxError)
}

// IsRetryableTxError 判断是否为瞬时的事务冲突错误
func IsRetryableTxError(err error) bool {
	if err == nil {
		return false
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrLockDeadlock || mysqlErr.Number == mysqlErrLockWaitTimeout
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}

	return strings.Contains(err.Error(), "database is locked")
}
