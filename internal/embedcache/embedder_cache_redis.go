package embedcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/csassist/internal/ai"
)

// WrapRedisCacheToEmbedder shares query embeddings between replicas through
// redis. Cache failures are logged and fall through to the embedder.
func WrapRedisCacheToEmbedder(e ai.IEmbedder, client redis.Cmdable, prefix string, ttl time.Duration) ai.IEmbedder {
	if e == nil || client == nil || ttl <= 0 {
		return e
	}
	return &redisEmbedder{next: e, client: client, prefix: prefix, ttl: ttl}
}

type redisEmbedder struct {
	next   ai.IEmbedder
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func (r *redisEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	key := r.prefix + ":" + buildCacheKey(r.next.ModelName(), taskType, text)
	raw, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var values []float32
		if err := json.Unmarshal(raw, &values); err == nil {
			logutil.GetLogger(ctx).Debug("embedding cache hit (redis)", zap.String("task_type", taskType))
			return values, nil
		}
		logutil.GetLogger(ctx).Warn("drop corrupt cached embedding", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		logutil.GetLogger(ctx).Warn("read cached embedding failed", zap.Error(err))
	}
	res, err := r.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(res)
	if err == nil {
		err = r.client.Set(ctx, key, data, r.ttl).Err()
	}
	if err != nil {
		logutil.GetLogger(ctx).Warn("failed to cache embedding", zap.Error(err))
	}
	return res, nil
}

func (r *redisEmbedder) ModelName() string {
	return r.next.ModelName()
}
