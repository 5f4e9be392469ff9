package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"campustrade_go/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	listingCachePrefix   = "listing:"
	listingVersionSuffix = ":version"
)

// ListingCache 商品详情缓存，client 为 nil 时所有操作为空操作
// 每个商品有一个版本号，Invalidate 时递增；缓存条目记录写入时读到的版本号，
// 版本不一致的条目视为未命中，因此失效前读到的旧数据即使晚于失效写入也不会被返回
type ListingCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

type listingCacheEntry struct {
	Version int64           `json:"version"`
	Listing *models.Listing `json:"listing"`
}

// NewListingCache 创建商品缓存
func NewListingCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ListingCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingCache{client: client, ttl: ttl, logger: logger}
}

func (c *ListingCache) enabled() bool {
	return c != nil && c.client != nil
}

func listingCacheKey(id string) string {
	return listingCachePrefix + id
}

func listingVersionKey(id string) string {
	return listingCachePrefix + id + listingVersionSuffix
}

// Get 读取缓存，同时返回当前版本号，未命中时调用方用该版本号回填
func (c *ListingCache) Get(ctx context.Context, id string) (*models.Listing, int64, bool) {
	if !c.enabled() {
		return nil, 0, false
	}

	vals, err := c.client.MGet(ctx, listingCacheKey(id), listingVersionKey(id)).Result()
	if err != nil {
		c.logger.Warn("listing cache get failed", zap.String("listing_id", id), zap.Error(err))
		return nil, 0, false
	}

	var version int64
	if raw, ok := vals[1].(string); ok {
		version, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.logger.Warn("listing cache version corrupted", zap.String("listing_id", id), zap.Error(err))
			return nil, 0, false
		}
	}

	raw, ok := vals[0].(string)
	if !ok {
		return nil, version, false
	}
	var entry listingCacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.Listing == nil {
		c.logger.Warn("listing cache entry corrupted", zap.String("listing_id", id), zap.Error(err))
		return nil, version, false
	}
	if entry.Version != version {
		return nil, version, false
	}
	return entry.Listing, version, true
}

// Set 写入缓存，version 必须是读取数据库之前由 Get 返回的版本号
func (c *ListingCache) Set(ctx context.Context, listing *models.Listing, version int64) {
	if !c.enabled() || listing == nil {
		return
	}

	data, err := json.Marshal(listingCacheEntry{Version: version, Listing: listing})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, listingCacheKey(listing.ID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("listing cache set failed", zap.String("listing_id", listing.ID), zap.Error(err))
	}
}

// Invalidate 递增版本号并删除缓存
func (c *ListingCache) Invalidate(ctx context.Context, ids ...string) {
	if !c.enabled() || len(ids) == 0 {
		return
	}

	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			// 版本号不设过期时间，过期后重新计数可能与旧条目的版本号重合
			pipe.Incr(ctx, listingVersionKey(id))
			pipe.Del(ctx, listingCacheKey(id))
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("listing cache invalidate failed", zap.Strings("listing_ids", ids), zap.Error(err))
	}
}
