package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"expenses/internal/core"
	"expenses/internal/log"
)

// Redis shares the list between service instances.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewRedis connects to url (redis://host:port/db) and pings it.
func NewRedis(ctx context.Context, url string, ttl time.Duration, logger *log.Logger) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if logger == nil {
		logger = log.Discard()
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Redis{client: client, ttl: ttl, logger: logger.WithComponent(log.ComponentCache)}, nil
}

func (c *Redis) Get(ctx context.Context) ([]core.Expense, uint64, bool) {
	vals, err := c.client.MGet(ctx, listKey, genKey).Result()
	if err != nil {
		c.logger.WarnContext(ctx, "Redis get failed", log.FieldError, err)
		return nil, noGeneration, false
	}
	gen, err := parseGen(vals[1])
	if err != nil {
		c.logger.WarnContext(ctx, "Discarding bad cache generation", log.FieldError, err)
		return nil, noGeneration, false
	}
	data, ok := vals[0].(string)
	if !ok {
		return nil, gen, false
	}
	var expenses []core.Expense
	if err := json.Unmarshal([]byte(data), &expenses); err != nil {
		c.logger.WarnContext(ctx, "Discarding undecodable cache entry", log.FieldError, err)
		return nil, gen, false
	}
	return expenses, gen, true
}

// Set writes the list under WATCH on the generation key. The transaction
// aborts when an Invalidate from any instance bumped it in the meantime.
func (c *Redis) Set(ctx context.Context, gen uint64, expenses []core.Expense) {
	data, err := json.Marshal(expenses)
	if err != nil {
		return
	}
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Uint64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, listKey, data, c.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil, errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
	default:
		c.logger.WarnContext(ctx, "Redis set failed", log.FieldError, err)
	}
}

func (c *Redis) Invalidate(ctx context.Context) {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Del(ctx, listKey)
		return nil
	})
	if err != nil {
		c.logger.WarnContext(ctx, "Redis invalidate failed", log.FieldError, err)
	}
}

func (c *Redis) Close() error {
	return c.client.Close()
}

var errStaleGeneration = errors.New("cache generation changed")

// noGeneration is handed out when the generation could not be read. The
// counter never reaches it, so the following Set is skipped.
const noGeneration = ^uint64(0)

// parseGen reads an MGET value of the generation key. A missing key is 0.
func parseGen(v any) (uint64, error) {
	if v == nil {
		return 0, nil
	}
	str, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected generation value %T", v)
	}
	return strconv.ParseUint(str, 10, 64)
}
