package cart

import (
	"context"
	"errors"
	"sync"

	"github.com/example/farmmarket/pkg/models"
	"github.com/example/farmmarket/pkg/repository"
)

// Store persists one cart per user id. Load returns an empty slice for a
// user with no saved cart; Save overwrites the whole slot.
type Store interface {
	Load(ctx context.Context, userID string) ([]models.CartItem, error)
	Save(ctx context.Context, userID string, items []models.CartItem) error
}

// MemoryStore keeps carts in process. Used when no redis is configured and
// in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string][]models.CartItem
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string][]models.CartItem)}
}

func (s *MemoryStore) Load(ctx context.Context, userID string) ([]models.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.carts[userID]
	out := make([]models.CartItem, len(items))
	copy(out, items)
	return out, nil
}

func (s *MemoryStore) Save(ctx context.Context, userID string, items []models.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := make([]models.CartItem, len(items))
	copy(saved, items)
	s.carts[userID] = saved
	return nil
}

// RedisStore persists carts durably under the per-user slot, so two
// accounts on the same device never share state and a cart survives the
// session.
type RedisStore struct {
	repo *repository.RedisRepository
}

func NewRedisStore(repo *repository.RedisRepository) *RedisStore {
	return &RedisStore{repo: repo}
}

func (s *RedisStore) Load(ctx context.Context, userID string) ([]models.CartItem, error) {
	items, err := s.repo.LoadCart(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return items, nil
}

func (s *RedisStore) Save(ctx context.Context, userID string, items []models.CartItem) error {
	if len(items) == 0 {
		return s.repo.DeleteCart(ctx, userID)
	}
	return s.repo.SaveCart(ctx, userID, items)
}
