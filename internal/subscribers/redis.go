package subscribers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/icewatch/ticketwatch/internal/crypto"
)

// DefaultRedisKey is the hash holding chat ID → subscriber JSON
const DefaultRedisKey = "ticketwatch:subscribers"

// RedisRegistry stores subscribers in a single Redis hash
type RedisRegistry struct {
	client redis.UniversalClient
	key    string
	enc    *crypto.Encryptor
}

// NewRedisClient connects to a Redis server and checks it answers
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis %s: %w", addr, err)
	}
	return rdb, nil
}

// NewRedisRegistry stores subscribers under key (DefaultRedisKey if empty)
func NewRedisRegistry(client redis.UniversalClient, key string, enc *crypto.Encryptor) *RedisRegistry {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisRegistry{client: client, key: key, enc: enc}
}

func field(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func (r *RedisRegistry) Add(ctx context.Context, s Subscriber) (bool, error) {
	s = stamp(s)
	name, err := sealName(r.enc, s.Name)
	if err != nil {
		return false, err
	}
	s.Name = name

	data, err := json.Marshal(s)
	if err != nil {
		return false, fmt.Errorf("encoding subscriber: %w", err)
	}

	added, err := r.client.HSetNX(ctx, r.key, field(s.ChatID), data).Result()
	if err != nil {
		return false, fmt.Errorf("redis HSETNX %s: %w", r.key, err)
	}
	return added, nil
}

func (r *RedisRegistry) Remove(ctx context.Context, chatID int64) (bool, error) {
	n, err := r.client.HDel(ctx, r.key, field(chatID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis HDEL %s: %w", r.key, err)
	}
	return n > 0, nil
}

func (r *RedisRegistry) List(ctx context.Context) ([]Subscriber, error) {
	all, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HGETALL %s: %w", r.key, err)
	}

	out := make([]Subscriber, 0, len(all))
	for f, raw := range all {
		var s Subscriber
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("decoding subscriber %s: %w", f, err)
		}
		if s.Name, err = openName(r.enc, s.Name); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	sortSubscribers(out)
	return out, nil
}

func (r *RedisRegistry) Count(ctx context.Context) (int, error) {
	n, err := r.client.HLen(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis HLEN %s: %w", r.key, err)
	}
	return int(n), nil
}
