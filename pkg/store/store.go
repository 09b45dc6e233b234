// Package store provides entity persistence for products, profiles and
// orders behind a single interface with interchangeable backends.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/example/farmmarket/pkg/config"
	"github.com/example/farmmarket/pkg/models"
)

// ProductFilter narrows ListProducts by equality on one or more fields.
// Zero values and nil pointers mean "no constraint".
type ProductFilter struct {
	Category string
	FarmerID string
	Featured *bool
	Organic  *bool
}

// RecordStore is the persistence boundary for the marketplace core. Both
// backends return models.NotFoundError for missing ids and wrap transport
// or storage faults in models.BackendUnavailableError.
type RecordStore interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id string) error

	CreateProfile(ctx context.Context, profile *models.Profile) error
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.Profile, error)

	// PlaceOrder persists the order and applies a conditional stock
	// decrement for every line, atomically: either the order row exists
	// and every product lost exactly the ordered quantity, or nothing
	// changed and an InsufficientStockError names the offending product.
	PlaceOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrdersByConsumer(ctx context.Context, consumerID string) ([]models.Order, error)
	ListOrdersByFarmer(ctx context.Context, farmerID string) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, updatedAt time.Time) error
}

// New constructs a RecordStore for the configured backend: "memory" for the
// in-process fallback, "mysql" for the real database.
func New(cfg *config.Config) (RecordStore, error) {
	switch cfg.Store.Backend {
	case "memory", "mem":
		return NewMemoryStore(), nil
	case "mysql":
		return NewMySQLStore(&cfg.MySQL)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}
