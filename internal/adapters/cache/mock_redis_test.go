package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// mockRedisClient is an in-memory Commander with error injection
type mockRedisClient struct {
	mu   sync.RWMutex
	data map[string]mockRedisValue

	SetError  error
	GetError  error
	IncrError error
	PingError error

	lastTTL time.Duration
}

type mockRedisValue struct {
	value     string
	expiresAt time.Time
}

func newMockRedisClient() *mockRedisClient {
	return &mockRedisClient{data: make(map[string]mockRedisValue)}
}

func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewStatusCmd(ctx)
	if m.SetError != nil {
		cmd.SetErr(m.SetError)
		return cmd
	}

	expiresAt := time.Time{}
	if expiration > 0 {
		expiresAt = time.Now().Add(expiration)
	}
	m.data[key] = mockRedisValue{value: value.(string), expiresAt: expiresAt}
	m.lastTTL = expiration

	cmd.SetVal("OK")
	return cmd
}

func (m *mockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cmd := redis.NewStringCmd(ctx)
	if m.GetError != nil {
		cmd.SetErr(m.GetError)
		return cmd
	}

	val, ok := m.data[key]
	if !ok || (!val.expiresAt.IsZero() && time.Now().After(val.expiresAt)) {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(val.value)
	return cmd
}

func (m *mockRedisClient) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewIntCmd(ctx)
	if m.IncrError != nil {
		cmd.SetErr(m.IncrError)
		return cmd
	}

	var n int64
	if val, ok := m.data[key]; ok {
		parsed, err := strconv.ParseInt(val.value, 10, 64)
		if err != nil {
			cmd.SetErr(err)
			return cmd
		}
		n = parsed
	}
	n++
	m.data[key] = mockRedisValue{value: strconv.FormatInt(n, 10)}
	cmd.SetVal(n)
	return cmd
}

func (m *mockRedisClient) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if m.PingError != nil {
		cmd.SetErr(m.PingError)
		return cmd
	}
	cmd.SetVal("PONG")
	return cmd
}
