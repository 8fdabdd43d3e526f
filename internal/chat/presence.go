package chat

import (
	"context"
	"sort"
	"sync"

	"github.com/aine1100/pixbay-backend/pkg/cache"
)

const presenceKey = "pixbay:online_users"

// PresenceStore tracks which users currently hold at least one live socket.
type PresenceStore interface {
	Add(ctx context.Context, userID string) error
	Remove(ctx context.Context, userID string) error
	List(ctx context.Context) ([]string, error)
	IsOnline(ctx context.Context, userID string) (bool, error)
}

// RedisPresence keeps the online set in Redis so every instance of the
// service sees the same presence picture.
type RedisPresence struct {
	cache *cache.RedisCache
}

func NewRedisPresence(c *cache.RedisCache) *RedisPresence {
	return &RedisPresence{cache: c}
}

func (p *RedisPresence) Add(ctx context.Context, userID string) error {
	return p.cache.SAdd(ctx, presenceKey, userID)
}

func (p *RedisPresence) Remove(ctx context.Context, userID string) error {
	return p.cache.SRem(ctx, presenceKey, userID)
}

func (p *RedisPresence) List(ctx context.Context) ([]string, error) {
	return p.cache.SMembers(ctx, presenceKey)
}

func (p *RedisPresence) IsOnline(ctx context.Context, userID string) (bool, error) {
	return p.cache.SIsMember(ctx, presenceKey, userID)
}

// MemoryPresence is the single-instance fallback, also used in tests.
type MemoryPresence struct {
	mu    sync.Mutex
	users map[string]bool
}

func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{users: make(map[string]bool)}
}

func (p *MemoryPresence) Add(ctx context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[userID] = true
	return nil
}

func (p *MemoryPresence) Remove(ctx context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.users, userID)
	return nil
}

func (p *MemoryPresence) List(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.users))
	for id := range p.users {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (p *MemoryPresence) IsOnline(ctx context.Context, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.users[userID], nil
}
