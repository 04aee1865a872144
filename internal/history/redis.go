package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKey = "hookcast:history"

// redisStore keeps items as fields of one Redis hash, so a team can share a
// history across machines.
type redisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr, password string, db int) (Store, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &redisStore{client: rdb}, nil
}

func (s *redisStore) Add(ctx context.Context, item Item) (string, error) {
	id, err := newID()
	if err != nil {
		return "", err
	}
	item.ID = id
	data, err := json.Marshal(item)
	if err != nil {
		return "", err
	}
	if err := s.client.HSet(ctx, redisKey, id, data).Err(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *redisStore) Get(ctx context.Context, id string) (Item, error) {
	val, err := s.client.HGet(ctx, redisKey, id).Result()
	if err != nil {
		if err == redis.Nil {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	var item Item
	if err := json.Unmarshal([]byte(val), &item); err != nil {
		return Item{}, err
	}
	item.ID = id
	return item, nil
}

func (s *redisStore) List(ctx context.Context) ([]Item, error) {
	vals, err := s.client.HGetAll(ctx, redisKey).Result()
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(vals))
	for id, val := range vals {
		var item Item
		if err := json.Unmarshal([]byte(val), &item); err != nil {
			continue
		}
		item.ID = id
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ReceivedAt.Before(items[j].ReceivedAt) })
	return items, nil
}

func (s *redisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.HDel(ctx, redisKey, id).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *redisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, redisKey).Err()
}
