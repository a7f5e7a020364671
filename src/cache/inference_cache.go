package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/callsight/callsight/src/config"
	"github.com/callsight/callsight/src/models"
)

const (
	entryPrefix = "inference:"
	ledgerKey   = "inference:ledger"
	seqKey      = "inference:seq"
)

// InferenceCache deduplicates LLM calls in Redis. TTL is enforced by Redis
// key expiry; capacity is enforced FIFO via a sorted-set insertion ledger —
// at max size the globally oldest entry is dropped regardless of how often
// it was read. Failed backend calls are never cached.
type InferenceCache struct {
	client  *redis.Client
	ttl     time.Duration
	maxSize int64

	hits   atomic.Int64
	misses atomic.Int64
}

func NewInferenceCache(redisCfg *config.RedisConfig, cacheCfg *config.CacheConfig) (*InferenceCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Address,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &InferenceCache{
		client:  client,
		ttl:     cacheCfg.TTL,
		maxSize: int64(cacheCfg.MaxSize),
	}, nil
}

// HashKey serializes every request-shaping input into a deterministic digest.
// ContextFlags are part of the key on purpose: an identical prompt can
// deserve a different answer once auxiliary backend configuration changes.
func HashKey(key models.CacheKey) string {
	data, _ := json.Marshal(key)
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func (c *InferenceCache) Get(ctx context.Context, key models.CacheKey) (*models.InferenceResponse, error) {
	hash := HashKey(key)

	val, err := c.client.Get(ctx, entryPrefix+hash).Result()
	if err == redis.Nil {
		// Entry expired or never existed; drop any stale ledger record.
		c.client.ZRem(ctx, ledgerKey, hash)
		c.misses.Add(1)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var response models.InferenceResponse
	if err := json.Unmarshal([]byte(val), &response); err != nil {
		return nil, err
	}

	// Cached responses are independent copies: timestamp reflects retrieval,
	// processing time is zero for hits.
	response.Timestamp = time.Now()
	response.ProcessingTime = 0

	c.hits.Add(1)
	return &response, nil
}

func (c *InferenceCache) Set(ctx context.Context, key models.CacheKey, response *models.InferenceResponse) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}

	hash := HashKey(key)

	// Evict the oldest-inserted entries until there is room. ZPopMin returns
	// the lowest insertion sequence, which is the FIFO head.
	size, err := c.client.ZCard(ctx, ledgerKey).Result()
	if err != nil {
		return err
	}
	for size >= c.maxSize {
		oldest, err := c.client.ZPopMin(ctx, ledgerKey, 1).Result()
		if err != nil {
			return err
		}
		if len(oldest) == 0 {
			break
		}
		if member, ok := oldest[0].Member.(string); ok {
			c.client.Del(ctx, entryPrefix+member)
		}
		size--
	}

	seq, err := c.client.Incr(ctx, seqKey).Result()
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, entryPrefix+hash, data, c.ttl).Err(); err != nil {
		return err
	}
	return c.client.ZAdd(ctx, ledgerKey, redis.Z{Score: float64(seq), Member: hash}).Err()
}

func (c *InferenceCache) Stats(ctx context.Context) models.CacheStats {
	size, _ := c.client.ZCard(ctx, ledgerKey).Result()
	return models.CacheStats{
		Enabled: true,
		Size:    size,
		MaxSize: c.maxSize,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

func (c *InferenceCache) Clear(ctx context.Context) error {
	hashes, err := c.client.ZRange(ctx, ledgerKey, 0, -1).Result()
	if err != nil {
		return err
	}
	for _, hash := range hashes {
		c.client.Del(ctx, entryPrefix+hash)
	}
	return c.client.Del(ctx, ledgerKey).Err()
}

func (c *InferenceCache) Close() error {
	return c.client.Close()
}
