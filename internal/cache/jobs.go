package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clinicore/pdfjobs/internal/domain"
)

// JobCache shortcuts job reads for clients polling the status endpoint. It is
// never a source of truth: writers update the job row first and refresh the
// cache best-effort, and the download path always reads the row directly.
type JobCache interface {
	SetJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, jobID string) (*domain.Job, bool, error)
}

func jobKey(jobID string) string {
	return fmt.Sprintf("pdfjobs:job:%s", jobID)
}

// RedisJobCache stores JSON-encoded job snapshots in Redis with a short TTL.
type RedisJobCache struct {
	client *redis.Client
	ttl    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedisJobCache(ctx context.Context, config RedisConfig) (*RedisJobCache, error) {
	if config.TTL <= 0 {
		config.TTL = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisJobCache{client: client, ttl: config.TTL}, nil
}

func (c *RedisJobCache) Close() error {
	return c.client.Close()
}

func (c *RedisJobCache) SetJob(ctx context.Context, job *domain.Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode cached job: %w", err)
	}
	return c.client.Set(ctx, jobKey(job.ID), encoded, c.ttl).Err()
}

func (c *RedisJobCache) GetJob(ctx context.Context, jobID string) (*domain.Job, bool, error) {
	value, err := c.client.Get(ctx, jobKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var job domain.Job
	if err := json.Unmarshal(value, &job); err != nil {
		return nil, false, fmt.Errorf("decode cached job: %w", err)
	}
	return &job, true, nil
}

// MemoryJobCache is the fallback when Redis is not configured.
type MemoryJobCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryJobEntry
}

type memoryJobEntry struct {
	job       domain.Job
	expiresAt time.Time
}

func NewMemoryJobCache(ttl time.Duration) *MemoryJobCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &MemoryJobCache{
		ttl:     ttl,
		entries: make(map[string]memoryJobEntry),
	}
}

func (c *MemoryJobCache) SetJob(_ context.Context, job *domain.Job) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[job.ID] = memoryJobEntry{
		job:       *job,
		expiresAt: time.Now().Add(c.ttl),
	}
	return nil
}

func (c *MemoryJobCache) GetJob(_ context.Context, jobID string) (*domain.Job, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[jobID]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, jobID)
		return nil, false, nil
	}
	job := entry.job
	return &job, true, nil
}
