// SPDX-License-Identifier: MIT

package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis: chapters are stored as a JSON
// blob under "chapter:<id>" and their lessons under "chapter:<id>:lessons",
// mirroring the key layout the course/lesson document store uses elsewhere
// in the system.
type RedisStore struct {
	client *redis.Client
}

// RedisConfig configures a RedisStore connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore creates a RedisStore and verifies connectivity.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client, letting tests use
// miniredis without going through NewRedisStore's dial.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func chapterKey(chapterID string) string        { return "chapter:" + chapterID }
func chapterLessonsKey(chapterID string) string { return "chapter:" + chapterID + ":lessons" }

// Chapter fetches the chapter blob and its lessons blob, merging them into
// one Chapter value.
func (s *RedisStore) Chapter(ctx context.Context, chapterID string) (Chapter, error) {
	chapterData, err := s.client.Get(ctx, chapterKey(chapterID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Chapter{}, fmt.Errorf("%w: %s", ErrChapterNotFound, chapterID)
	}
	if err != nil {
		return Chapter{}, fmt.Errorf("fetch chapter %s: %w", chapterID, err)
	}

	var chapter Chapter
	if err := json.Unmarshal(chapterData, &chapter); err != nil {
		return Chapter{}, fmt.Errorf("decode chapter %s: %w", chapterID, err)
	}
	chapter.ChapterID = chapterID

	lessonsData, err := s.client.Get(ctx, chapterLessonsKey(chapterID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		// A chapter with no lessons key is valid; it simply has none.
	case err != nil:
		return Chapter{}, fmt.Errorf("fetch lessons for chapter %s: %w", chapterID, err)
	default:
		if err := json.Unmarshal(lessonsData, &chapter.Lessons); err != nil {
			return Chapter{}, fmt.Errorf("decode lessons for chapter %s: %w", chapterID, err)
		}
	}

	return chapter, nil
}

// Ping verifies connectivity to Redis.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
