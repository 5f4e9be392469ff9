package services

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"campustrade_go/config"
	"campustrade_go/models"
	"campustrade_go/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newFileTestDB 基于文件的 sqlite，多连接，事务之间真正并发
func newFileTestDB(t *testing.T, conns int) *gorm.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "campustrade.db") + "?_busy_timeout=5000&_journal_mode=WAL"
	db, err := config.OpenDatabase(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          dsn,
		LogLevel:     logger.Silent,
		MaxIdleConns: conns,
		MaxOpenConns: conns,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// interleaveUpdate 在下一次更新 table 之前，于同一事务内先执行 sql
// 用来模拟另一个请求在读取与条件更新之间抢先提交
func interleaveUpdate(t *testing.T, db *gorm.DB, table, sql string, args ...interface{}) {
	t.Helper()

	var fired atomic.Bool
	err := db.Callback().Update().Before("gorm:update").Register("test:interleave_"+uuid.NewString(), func(tx *gorm.DB) {
		if tx.Statement.Table != table || !fired.CompareAndSwap(false, true) {
			return
		}
		if err := tx.Session(&gorm.Session{NewDB: true}).Exec(sql, args...).Error; err != nil {
			_ = tx.AddError(err)
		}
	})
	require.NoError(t, err)
}

func countOrders(t *testing.T, db *gorm.DB, listingID string) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Where("listing_id = ?", listingID).Count(&count).Error)
	return count
}

func TestCreateOrderLosesListingAfterRead(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seller := seedUser(t, db, "卖家")
	buyer := seedUser(t, db, "买家")
	listing := seedListing(t, db, seller.ID, 100)

	interleaveUpdate(t, db, "listings", "UPDATE listings SET status = ? WHERE id = ?", models.ListingSold, listing.ID)

	_, err := NewOrderService(db).CreateOrder(ctx, listing.ID, buyer.ID)
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidState), err.Error())

	// 事务回滚，没有订单写入
	assert.Zero(t, countOrders(t, db, listing.ID))
	assert.Equal(t, models.ListingAvailable, listingStatus(t, db, listing.ID))
}

func TestTransitionLosesOrderAfterRead(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seller := seedUser(t, db, "卖家")
	buyer := seedUser(t, db, "买家")
	listing := seedListing(t, db, seller.ID, 100)

	service := NewOrderService(db)
	order, err := service.CreateOrder(ctx, listing.ID, buyer.ID)
	require.NoError(t, err)

	interleaveUpdate(t, db, "orders", "UPDATE orders SET status = ? WHERE id = ?", models.OrderCancelled, order.ID)

	_, err = service.Transition(ctx, order.ID, models.ActionPay, buyer.ID)
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidState), err.Error())
	assert.Contains(t, err.Error(), "no longer pending")

	got, err := service.GetOrder(ctx, order.ID, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, got.Status)
	assert.Nil(t, got.PaidAt)
}

func TestCancelFailsWhenListingIsNotSold(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seller := seedUser(t, db, "卖家")
	buyer := seedUser(t, db, "买家")
	listing := seedListing(t, db, seller.ID, 100)

	service := NewOrderService(db)
	order, err := service.CreateOrder(ctx, listing.ID, buyer.ID)
	require.NoError(t, err)

	interleaveUpdate(t, db, "listings", "UPDATE listings SET status = ? WHERE id = ?", models.ListingAvailable, listing.ID)

	_, err = service.Transition(ctx, order.ID, models.ActionCancel, seller.ID)
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInternal), err.Error())

	// 订单状态写入随事务一起回滚
	got, err := service.GetOrder(ctx, order.ID, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, got.Status)
	assert.Nil(t, got.CancelledAt)
	assert.Equal(t, models.ListingSold, listingStatus(t, db, listing.ID))
}

func TestConcurrentBuyersOnFileDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("file database contention test")
	}
	t.Setenv("DB_TX_MAX_RETRIES", "10")

	ctx := context.Background()
	db := newFileTestDB(t, 8)
	service := NewOrderService(db)
	seller := seedUser(t, db, "卖家")

	buyers := make([]string, 6)
	for i := range buyers {
		buyers[i] = seedUser(t, db, "买家").ID
	}

	for round := 0; round < 5; round++ {
		listing := seedListing(t, db, seller.ID, 100)

		start := make(chan struct{})
		errs := make([]error, len(buyers))
		var wg sync.WaitGroup
		for i, buyerID := range buyers {
			wg.Add(1)
			go func(i int, buyerID string) {
				defer wg.Done()
				<-start
				_, errs[i] = service.CreateOrder(ctx, listing.ID, buyerID)
			}(i, buyerID)
		}
		close(start)
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
				continue
			}
			assert.True(t, utils.IsCode(err, utils.CodeInvalidState), "round %d: %v", round, err)
		}
		assert.Equal(t, 1, winners, "round %d", round)
		assert.Equal(t, int64(1), countOrders(t, db, listing.ID), "round %d", round)
		assert.Equal(t, models.ListingSold, listingStatus(t, db, listing.ID))
	}
}
