package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bionicotaku/lingo-services-takeaways/internal/models/po"
	"github.com/go-kratos/kratos/v2/log"
)

// ErrNilTakeawaySet 表示尝试缓存空结果。
var ErrNilTakeawaySet = errors.New("takeaway cache: nil set")

const cacheIndexPrefix = "takeaways_index_"

// TakeawayCache 以 (videoId, modelId, promptVersion) 为键缓存要点集合。
// 每个视频额外维护一个索引键，记录其全部缓存条目，供 Invalidate 一次性清除。
type TakeawayCache struct {
	store KeyValueStore
	log   *log.Helper
	now   func() time.Time

	mu sync.Mutex
}

// NewTakeawayCache 构造 TakeawayCache。
func NewTakeawayCache(store KeyValueStore, logger log.Logger) *TakeawayCache {
	return &TakeawayCache{
		store: store,
		log:   log.NewHelper(logger),
		now:   time.Now,
	}
}

// Get 读取缓存。条目损坏时视为未命中并记录日志。
func (c *TakeawayCache) Get(ctx context.Context, videoID, modelID string, promptVersion int) (*po.TakeawaySet, bool, error) {
	key := po.CacheKey{VideoID: videoID, ModelID: modelID, PromptVersion: promptVersion}
	raw, ok, err := c.store.Get(ctx, key.String())
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	var set po.TakeawaySet
	if err := json.Unmarshal(raw, &set); err != nil {
		c.log.WithContext(ctx).Warnf("cache entry corrupted: key=%s err=%v", key, err)
		return nil, false, nil
	}
	return &set, true, nil
}

// Put 去重后整体覆盖写入，并补充 cachedAt 与 promptVersion。
func (c *TakeawayCache) Put(ctx context.Context, videoID, modelID string, promptVersion int, set *po.TakeawaySet) error {
	if set == nil {
		return ErrNilTakeawaySet
	}
	key := po.CacheKey{VideoID: videoID, ModelID: modelID, PromptVersion: promptVersion}

	entry := set.Clone()
	entry.Takeaways = DeduplicateTakeaways(entry.Takeaways)
	cachedAt := c.now().UTC()
	entry.CachedAt = &cachedAt
	entry.PromptVersion = promptVersion

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Set(ctx, key.String(), payload); err != nil {
		return fmt.Errorf("cache put %s: %w", key, err)
	}
	if err := c.addToIndexLocked(ctx, videoID, key.String()); err != nil {
		return err
	}
	// 回写到调用方持有的集合，保证随后投递的结果与缓存一致。
	*set = *entry
	return nil
}

// Invalidate 删除该视频在所有模型与版本下的缓存条目。
func (c *TakeawayCache) Invalidate(ctx context.Context, videoID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, err := c.readIndexLocked(ctx, videoID)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := c.store.Remove(ctx, key); err != nil {
			return fmt.Errorf("cache remove %s: %w", key, err)
		}
	}
	if err := c.store.Remove(ctx, cacheIndexPrefix+videoID); err != nil {
		return fmt.Errorf("cache remove index %s: %w", videoID, err)
	}
	c.log.WithContext(ctx).Infof("cache invalidated: video=%s entries=%d", videoID, len(keys))
	return nil
}

func (c *TakeawayCache) readIndexLocked(ctx context.Context, videoID string) ([]string, error) {
	raw, ok, err := c.store.Get(ctx, cacheIndexPrefix+videoID)
	if err != nil {
		return nil, fmt.Errorf("cache read index %s: %w", videoID, err)
	}
	if !ok {
		return nil, nil
	}
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		c.log.WithContext(ctx).Warnf("cache index corrupted: video=%s err=%v", videoID, err)
		return nil, nil
	}
	return keys, nil
}

func (c *TakeawayCache) addToIndexLocked(ctx context.Context, videoID, key string) error {
	keys, err := c.readIndexLocked(ctx, videoID)
	if err != nil {
		return err
	}
	for _, existing := range keys {
		if existing == key {
			return nil
		}
	}
	payload, err := json.Marshal(append(keys, key))
	if err != nil {
		return fmt.Errorf("cache encode index %s: %w", videoID, err)
	}
	if err := c.store.Set(ctx, cacheIndexPrefix+videoID, payload); err != nil {
		return fmt.Errorf("cache write index %s: %w", videoID, err)
	}
	return nil
}
