// Package order implements the order lifecycle: checkout converts a cart
// into an immutable order, and a role-gated state machine governs status
// progression from there.
package order

import (
	"context"
	"math"
	"time"

	"github.com/example/farmmarket/pkg/models"
	"github.com/example/farmmarket/pkg/repository"
	"github.com/example/farmmarket/pkg/store"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// Audit receives one event per order creation and status transition.
type Audit interface {
	RecordOrderEvent(ctx context.Context, event *repository.OrderEvent) error
}

// NopAudit discards events; used when no audit sink is configured.
type NopAudit struct{}

func (NopAudit) RecordOrderEvent(ctx context.Context, event *repository.OrderEvent) error {
	return nil
}

// Manager owns order creation and status progression.
type Manager struct {
	store  store.RecordStore
	audit  Audit
	logger *zap.Logger
}

func NewManager(recordStore store.RecordStore, audit Audit, logger *zap.Logger) *Manager {
	if audit == nil {
		audit = NopAudit{}
	}
	return &Manager{
		store:  recordStore,
		audit:  audit,
		logger: logger,
	}
}

// CreateOrder converts the cart lines into a pending order, snapshotting
// each line's product data and decrementing stock. The whole operation is
// atomic: if any line exceeds the live stock, no order is created and no
// stock changes. totalAmount is what the cart reported; it must match the
// sum of the line subtotals.
func (m *Manager) CreateOrder(ctx context.Context, session models.Session, items []models.CartItem, totalAmount float64) (*models.Order, error) {
	if session.Role != models.RoleConsumer {
		return nil, models.NewPermissionError(session.Role, "create order")
	}
	if len(items) == 0 {
		return nil, models.NewValidationError("cart is empty")
	}

	farmerID := items[0].Product.FarmerID
	var computed float64
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, models.NewValidationError("quantity must be at least 1 for product %s", item.Product.ID)
		}
		if item.Product.FarmerID != farmerID {
			return nil, models.NewValidationError("cart contains products from more than one farmer")
		}
		computed += item.Subtotal()
	}
	if math.Abs(computed-totalAmount) > 0.005 {
		return nil, models.NewValidationError("total %.2f does not match cart contents (%.2f)", totalAmount, computed)
	}

	orderItems := make([]models.OrderItem, len(items))
	for i, item := range items {
		orderItems[i] = models.OrderItem{
			ProductID:   item.Product.ID,
			ProductName: item.Product.Name,
			Unit:        item.Product.Unit,
			Price:       item.Product.Price,
			Quantity:    item.Quantity,
		}
	}

	now := time.Now()
	order := &models.Order{
		ID:          uuid.New().String(),
		ConsumerID:  session.UserID,
		FarmerID:    farmerID,
		TotalAmount: computed,
		Status:      models.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := order.SetItems(orderItems); err != nil {
		return nil, models.NewValidationError("cannot encode order items: %v", err)
	}

	// Stock is re-validated here against live data, not trusted from the
	// cart snapshot; the store applies order row and decrements in one
	// transaction.
	if err := m.store.PlaceOrder(ctx, order, orderItems); err != nil {
		return nil, err
	}

	m.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("consumer_id", order.ConsumerID),
		zap.String("farmer_id", order.FarmerID),
		zap.Float64("total_amount", order.TotalAmount))

	go m.recordEvent(&repository.OrderEvent{
		OrderID: order.ID,
		Action:  "create_order",
		Actor:   session.UserID,
		Data: bson.M{
			"consumer_id":  order.ConsumerID,
			"farmer_id":    order.FarmerID,
			"total_amount": order.TotalAmount,
			"item_count":   len(orderItems),
		},
	})

	return order, nil
}

// UpdateStatus moves the order along the fulfillment state machine. Any
// pair not in the transition table, wrong actors included, fails with an
// InvalidTransitionError and leaves the stored order untouched.
func (m *Manager) UpdateStatus(ctx context.Context, session models.Session, orderID string, next models.OrderStatus) (*models.Order, error) {
	order, err := m.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if session.Role == models.RoleFarmer && order.FarmerID != session.UserID {
		return nil, models.NewPermissionError(session.Role, "update another farmer's order")
	}
	if !next.Valid() || !models.CanTransition(order.Status, next, session.Role) {
		return nil, models.NewInvalidTransitionError(order.Status, next, session.Role)
	}

	now := time.Now()
	if err := m.store.UpdateOrderStatus(ctx, orderID, next, now); err != nil {
		return nil, err
	}

	previous := order.Status
	order.Status = next
	order.UpdatedAt = now

	m.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("from", string(previous)),
		zap.String("to", string(next)))

	go m.recordEvent(&repository.OrderEvent{
		OrderID: orderID,
		Action:  "update_status",
		Actor:   session.UserID,
		Data:    bson.M{"from": string(previous), "to": string(next)},
	})

	return order, nil
}

// GetOrder returns the order if the session belongs to its consumer or its
// farmer.
func (m *Manager) GetOrder(ctx context.Context, session models.Session, orderID string) (*models.Order, error) {
	order, err := m.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.ConsumerID != session.UserID && order.FarmerID != session.UserID {
		return nil, models.NewPermissionError(session.Role, "view order")
	}
	return order, nil
}

// ListByConsumer returns the consumer's orders, most recent first.
func (m *Manager) ListByConsumer(ctx context.Context, consumerID string) ([]models.Order, error) {
	return m.store.ListOrdersByConsumer(ctx, consumerID)
}

// ListByFarmer returns the farmer's incoming orders, most recent first.
func (m *Manager) ListByFarmer(ctx context.Context, farmerID string) ([]models.Order, error) {
	return m.store.ListOrdersByFarmer(ctx, farmerID)
}

// recordEvent runs off the request path; audit failures are logged, never
// surfaced to the caller.
func (m *Manager) recordEvent(event *repository.OrderEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.audit.RecordOrderEvent(ctx, event); err != nil {
		m.logger.Warn("Failed to record order event",
			zap.String("order_id", event.OrderID),
			zap.String("action", event.Action),
			zap.Error(err))
	}
}
