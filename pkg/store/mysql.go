package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/farmmarket/pkg/config"
	"github.com/example/farmmarket/pkg/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// MySQLStore is the database-backed RecordStore.
type MySQLStore struct {
	db *gorm.DB
}

// NewMySQLStore connects to MySQL and migrates the marketplace tables.
func NewMySQLStore(cfg *config.MySQLConfig) (*MySQLStore, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	if err := db.AutoMigrate(&models.Product{}, &models.Profile{}, &models.Order{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := s.db.WithContext(ctx).Create(product).Error; err != nil {
		return models.NewBackendUnavailableError("create product", err)
	}
	return nil
}

func (s *MySQLStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("product", id)
		}
		return nil, models.NewBackendUnavailableError("get product", err)
	}
	return &product, nil
}

func (s *MySQLStore) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	query := s.db.WithContext(ctx).Model(&models.Product{})
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.FarmerID != "" {
		query = query.Where("farmer_id = ?", filter.FarmerID)
	}
	if filter.Featured != nil {
		query = query.Where("featured = ?", *filter.Featured)
	}
	if filter.Organic != nil {
		query = query.Where("organic = ?", *filter.Organic)
	}

	var products []models.Product
	if err := query.Order("created_at DESC").Find(&products).Error; err != nil {
		return nil, models.NewBackendUnavailableError("list products", err)
	}
	return products, nil
}

func (s *MySQLStore) UpdateProduct(ctx context.Context, product *models.Product) error {
	res := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", product.ID).
		Select("*").Omit("id", "created_at").Updates(product)
	if res.Error != nil {
		return models.NewBackendUnavailableError("update product", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("product", product.ID)
	}
	return nil
}

func (s *MySQLStore) DeleteProduct(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	if res.Error != nil {
		return models.NewBackendUnavailableError("delete product", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("product", id)
	}
	return nil
}

func (s *MySQLStore) CreateProfile(ctx context.Context, profile *models.Profile) error {
	if err := s.db.WithContext(ctx).Create(profile).Error; err != nil {
		return models.NewBackendUnavailableError("create profile", err)
	}
	return nil
}

func (s *MySQLStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("profile", id)
		}
		return nil, models.NewBackendUnavailableError("get profile", err)
	}
	return &profile, nil
}

func (s *MySQLStore) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("profile", email)
		}
		return nil, models.NewBackendUnavailableError("get profile", err)
	}
	return &profile, nil
}

func (s *MySQLStore) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.Profile, error) {
	updates := map[string]interface{}{"updated_at": time.Now()}
	if update.Name != nil {
		updates["name"] = *update.Name
	}
	if update.Phone != nil {
		updates["phone"] = *update.Phone
	}
	if update.Address != nil {
		updates["address"] = *update.Address
	}

	res := s.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, models.NewBackendUnavailableError("update profile", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewNotFoundError("profile", id)
	}
	return s.GetProfile(ctx, id)
}

func (s *MySQLStore) PlaceOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			// Conditional decrement: only succeeds while enough stock
			// remains, so two concurrent checkouts cannot both take the
			// last unit.
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", item.ProductID, item.Quantity).
				UpdateColumn("stock", gorm.Expr("stock - ?", item.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				var product models.Product
				if err := tx.Where("id = ?", item.ProductID).First(&product).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return models.NewNotFoundError("product", item.ProductID)
					}
					return err
				}
				return models.NewInsufficientStockError(item.ProductID, item.Quantity, product.Stock)
			}
		}
		return tx.Create(order).Error
	})
	if err != nil {
		if models.IsInsufficientStock(err) || models.IsNotFound(err) {
			return err
		}
		return models.NewBackendUnavailableError("place order", err)
	}
	return nil
}

func (s *MySQLStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("order", id)
		}
		return nil, models.NewBackendUnavailableError("get order", err)
	}
	return &order, nil
}

func (s *MySQLStore) ListOrdersByConsumer(ctx context.Context, consumerID string) ([]models.Order, error) {
	var orders []models.Order
	if err := s.db.WithContext(ctx).Where("consumer_id = ?", consumerID).
		Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, models.NewBackendUnavailableError("list orders", err)
	}
	return orders, nil
}

func (s *MySQLStore) ListOrdersByFarmer(ctx context.Context, farmerID string) ([]models.Order, error) {
	var orders []models.Order
	if err := s.db.WithContext(ctx).Where("farmer_id = ?", farmerID).
		Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, models.NewBackendUnavailableError("list orders", err)
	}
	return orders, nil
}

func (s *MySQLStore) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, updatedAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": updatedAt,
	})
	if res.Error != nil {
		return models.NewBackendUnavailableError("update order status", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("order", id)
	}
	return nil
}
