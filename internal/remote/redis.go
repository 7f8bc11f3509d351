package remote

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmeshcher/staysync/internal/model"
)

const redisKeyPrefix = "staysync:"

// RedisStore хранит каждую коллекцию в отдельном хеше: поле — ключ документа, значение — JSON.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore подключается к Redis по адресу host:port или redis:// URL.
func NewRedisStore(ctx context.Context, uri string) (*RedisStore, error) {
	opts := &redis.Options{Addr: uri}
	if strings.HasPrefix(uri, "redis://") || strings.HasPrefix(uri, "rediss://") {
		parsed, err := redis.ParseURL(uri)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisStoreFromClient(client), nil
}

// NewRedisStoreFromClient оборачивает готовый клиент.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func collectionKey(c model.Collection) string {
	return redisKeyPrefix + string(c)
}

// Ping проверяет доступность сервера.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close закрывает клиент.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Scan возвращает документы коллекции, упорядоченные по ключу.
func (s *RedisStore) Scan(ctx context.Context, c model.Collection) ([]model.Document, error) {
	fields, err := s.client.HGetAll(ctx, collectionKey(c)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", c, err)
	}

	ids := make([]string, 0, len(fields))
	for id := range fields {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]model.Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, model.Document{ID: id, Body: []byte(fields[id])})
	}
	return docs, nil
}

// Upsert записывает все документы одной транзакцией MULTI/EXEC.
func (s *RedisStore) Upsert(ctx context.Context, c model.Collection, docs []model.Document) error {
	if len(docs) == 0 {
		return nil
	}

	values := make([]any, 0, len(docs)*2)
	for _, d := range docs {
		values = append(values, d.ID, string(d.Body))
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, collectionKey(c), values...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("hset %s: %w", c, err)
	}
	return nil
}
