package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/farmmarket/pkg/models"
)

// MemoryStore is the in-process RecordStore used when no database is
// configured. All maps are guarded by one RWMutex; values are copied on the
// way in and out so callers never share memory with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]models.Product
	profiles map[string]models.Profile
	orders   map[string]models.Order
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]models.Product),
		profiles: make(map[string]models.Profile),
		orders:   make(map[string]models.Order),
	}
}

func (s *MemoryStore) CreateProduct(ctx context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	s.products[product.ID] = *product
	return nil
}

func (s *MemoryStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, models.NewNotFoundError("product", id)
	}
	return &p, nil
}

func (s *MemoryStore) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		if filter.Category != "" && !strings.EqualFold(p.Category, filter.Category) {
			continue
		}
		if filter.FarmerID != "" && p.FarmerID != filter.FarmerID {
			continue
		}
		if filter.Featured != nil && p.Featured != *filter.Featured {
			continue
		}
		if filter.Organic != nil && p.Organic != *filter.Organic {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdateProduct(ctx context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return models.NewNotFoundError("product", product.ID)
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now()
	s.products[product.ID] = *product
	return nil
}

func (s *MemoryStore) DeleteProduct(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return models.NewNotFoundError("product", id)
	}
	delete(s.products, id)
	return nil
}

func (s *MemoryStore) CreateProfile(ctx context.Context, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	s.profiles[profile.ID] = *profile
	return nil
}

func (s *MemoryStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, models.NewNotFoundError("profile", id)
	}
	return &p, nil
}

func (s *MemoryStore) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.profiles {
		if strings.EqualFold(p.Email, email) {
			out := p
			return &out, nil
		}
	}
	return nil, models.NewNotFoundError("profile", email)
}

func (s *MemoryStore) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, models.NewNotFoundError("profile", id)
	}
	if update.Name != nil {
		p.Name = *update.Name
	}
	if update.Phone != nil {
		p.Phone = *update.Phone
	}
	if update.Address != nil {
		p.Address = *update.Address
	}
	p.UpdatedAt = time.Now()
	s.profiles[id] = p
	return &p, nil
}

func (s *MemoryStore) PlaceOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every line before touching any stock so a late failure
	// cannot leave earlier decrements behind.
	for _, item := range items {
		p, ok := s.products[item.ProductID]
		if !ok {
			return models.NewNotFoundError("product", item.ProductID)
		}
		if p.Stock < item.Quantity {
			return models.NewInsufficientStockError(item.ProductID, item.Quantity, p.Stock)
		}
	}

	for _, item := range items {
		p := s.products[item.ProductID]
		p.Stock -= item.Quantity
		p.UpdatedAt = time.Now()
		s.products[item.ProductID] = p
	}

	s.orders[order.ID] = *order
	return nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, models.NewNotFoundError("order", id)
	}
	return &o, nil
}

func (s *MemoryStore) ListOrdersByConsumer(ctx context.Context, consumerID string) ([]models.Order, error) {
	return s.listOrders(func(o models.Order) bool { return o.ConsumerID == consumerID })
}

func (s *MemoryStore) ListOrdersByFarmer(ctx context.Context, farmerID string) ([]models.Order, error) {
	return s.listOrders(func(o models.Order) bool { return o.FarmerID == farmerID })
}

func (s *MemoryStore) listOrders(match func(models.Order) bool) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Order
	for _, o := range s.orders {
		if match(o) {
			out = append(out, o)
		}
	}
	// Most recent first, matching the database backend's ordering.
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return models.NewNotFoundError("order", id)
	}
	o.Status = status
	o.UpdatedAt = updatedAt
	s.orders[id] = o
	return nil
}
