package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "myxl:tokens:"

type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects using a redis:// URL.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.DialTimeout = 800 * time.Millisecond
	opt.ReadTimeout = 500 * time.Millisecond
	opt.WriteTimeout = 500 * time.Millisecond

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func NewRedisStoreFromClient(c *redis.Client) *RedisStore { return &RedisStore{client: c} }

func (s *RedisStore) Close() error { return s.client.Close() }

func redisKey(number int64) string {
	return redisKeyPrefix + strconv.FormatInt(number, 10)
}

func (s *RedisStore) Save(ctx context.Context, number int64, t Tokens) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKey(number), b, 0).Err(); err != nil {
		return fmt.Errorf("redis set tokens: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, number int64) (Tokens, error) {
	b, err := s.client.Get(ctx, redisKey(number)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Tokens{}, ErrNoTokens
	}
	if err != nil {
		return Tokens{}, fmt.Errorf("redis get tokens: %w", err)
	}
	var t Tokens
	if err := json.Unmarshal(b, &t); err != nil {
		return Tokens{}, fmt.Errorf("decode tokens: %w", err)
	}
	return t, nil
}

func (s *RedisStore) Numbers(ctx context.Context) ([]int64, error) {
	var (
		out    []int64
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		for _, k := range keys {
			n, err := strconv.ParseInt(strings.TrimPrefix(k, redisKeyPrefix), 10, 64)
			if err == nil {
				out = append(out, n)
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
