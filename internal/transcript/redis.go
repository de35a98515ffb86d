package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xxxsen/csassist/internal/model"
	appErr "github.com/xxxsen/csassist/internal/pkg/errors"
)

// Redis keeps transcripts in a redis list per session. Every access slides
// the expiry forward, so a session lives until it has been idle for ttl.
// A ttl of zero keeps sessions until they are deleted by hand.
type Redis struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedis(client redis.Cmdable, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) metaKey(sessionID string) string {
	return fmt.Sprintf("%s:session:%s:meta", r.prefix, sessionID)
}

func (r *Redis) turnsKey(sessionID string) string {
	return fmt.Sprintf("%s:session:%s:turns", r.prefix, sessionID)
}

func (r *Redis) Create(ctx context.Context, sessionID string) error {
	if err := r.client.Set(ctx, r.metaKey(sessionID), time.Now().Unix(), r.ttl).Err(); err != nil {
		return fmt.Errorf("create transcript: %w", err)
	}
	return nil
}

func (r *Redis) Append(ctx context.Context, sessionID string, turns ...model.Turn) error {
	if err := r.ensure(ctx, sessionID); err != nil {
		return err
	}
	values := make([]interface{}, 0, len(turns))
	for _, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("encode turn: %w", err)
		}
		values = append(values, data)
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(values) > 0 {
			pipe.RPush(ctx, r.turnsKey(sessionID), values...)
		}
		if r.ttl > 0 {
			pipe.Expire(ctx, r.turnsKey(sessionID), r.ttl)
			pipe.Expire(ctx, r.metaKey(sessionID), r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	return nil
}

func (r *Redis) List(ctx context.Context, sessionID string) ([]model.Turn, error) {
	if err := r.ensure(ctx, sessionID); err != nil {
		return nil, err
	}
	items, err := r.client.LRange(ctx, r.turnsKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list transcript: %w", err)
	}
	turns := make([]model.Turn, 0, len(items))
	for _, item := range items {
		var turn model.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		turns = append(turns, turn)
	}
	r.refresh(ctx, sessionID)
	return turns, nil
}

func (r *Redis) Clear(ctx context.Context, sessionID string) error {
	if err := r.ensure(ctx, sessionID); err != nil {
		return err
	}
	if err := r.client.Del(ctx, r.turnsKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("clear transcript: %w", err)
	}
	r.refresh(ctx, sessionID)
	return nil
}

// Exists also slides the expiry, so a session checked at the start of an ask
// survives until its turns are appended.
func (r *Redis) Exists(ctx context.Context, sessionID string) (bool, error) {
	if r.ttl <= 0 {
		n, err := r.client.Exists(ctx, r.metaKey(sessionID)).Result()
		if err != nil {
			return false, fmt.Errorf("check transcript: %w", err)
		}
		return n > 0, nil
	}
	alive, err := r.slide(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("check transcript: %w", err)
	}
	return alive, nil
}

func (r *Redis) ensure(ctx context.Context, sessionID string) error {
	ok, err := r.Exists(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return appErr.ErrNotFound
	}
	return nil
}

// slide pushes both keys' expiry out by ttl and reports whether the session
// meta key was still present.
func (r *Redis) slide(ctx context.Context, sessionID string) (bool, error) {
	var meta *redis.BoolCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		meta = pipe.Expire(ctx, r.metaKey(sessionID), r.ttl)
		pipe.Expire(ctx, r.turnsKey(sessionID), r.ttl)
		return nil
	})
	if err != nil {
		return false, err
	}
	return meta.Val(), nil
}

func (r *Redis) refresh(ctx context.Context, sessionID string) {
	if r.ttl <= 0 {
		return
	}
	_, _ = r.slide(ctx, sessionID)
}
