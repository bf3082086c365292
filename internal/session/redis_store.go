// Package session provides session-scoped storage for catalog drafts.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"coachcatalog/api/internal/catalog"
	"github.com/redis/go-redis/v9"
)

// DefaultDraftTTL bounds how long an untouched draft survives.
const DefaultDraftTTL = 12 * time.Hour

// DraftData is the payload stored for each draft
type DraftData struct {
	Items     []catalog.Item `json:"items"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// RedisDraftStore implements catalog.DraftCache using Redis
type RedisDraftStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisDraftStore creates a new Redis-backed draft store
func NewRedisDraftStore(redisURL string, ttl time.Duration) (*RedisDraftStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisDraftStoreWithClient(client, ttl), nil
}

// NewRedisDraftStoreWithClient creates a store from an existing Redis client
func NewRedisDraftStoreWithClient(client *redis.Client, ttl time.Duration) *RedisDraftStore {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &RedisDraftStore{
		client: client,
		prefix: "draft:",
		ttl:    ttl,
	}
}

func (s *RedisDraftStore) key(draftKey string) string {
	return s.prefix + draftKey
}

// Save stores the full row list and refreshes the expiry
func (s *RedisDraftStore) Save(ctx context.Context, draftKey string, items []catalog.Item) error {
	if items == nil {
		items = []catalog.Item{}
	}
	jsonData, err := json.Marshal(DraftData{Items: items, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	if err := s.client.Set(ctx, s.key(draftKey), jsonData, s.ttl).Err(); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// Load returns the stored rows; ok is false when no draft exists yet
func (s *RedisDraftStore) Load(ctx context.Context, draftKey string) ([]catalog.Item, bool, error) {
	jsonData, err := s.client.Get(ctx, s.key(draftKey)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load draft: %w", err)
	}

	var data DraftData
	if err := json.Unmarshal([]byte(jsonData), &data); err != nil {
		return nil, false, fmt.Errorf("unmarshal draft: %w", err)
	}
	return data.Items, true, nil
}

// Reset deletes a draft
func (s *RedisDraftStore) Reset(ctx context.Context, draftKey string) error {
	if err := s.client.Del(ctx, s.key(draftKey)).Err(); err != nil {
		return fmt.Errorf("reset draft: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisDraftStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisDraftStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
