// Package cart implements the consumer shopping cart: the authoritative
// in-session record of what a consumer intends to buy before checkout
// commits it to an order.
package cart

import (
	"context"

	"github.com/example/farmmarket/pkg/models"
	"go.uber.org/zap"
)

// Engine holds one consumer's cart and enforces its invariants: every line
// has quantity >= 1 and no line's quantity exceeds the stock seen at the
// last check point. The engine is bound to an explicit session; operations
// within one session are serialized by the caller.
type Engine struct {
	session models.Session
	store   Store
	logger  *zap.Logger
	items   []models.CartItem
}

// Totals is the derived view of a cart: sum of quantities and sum of
// price x quantity per line.
type Totals struct {
	Items int     `json:"total_items"`
	Price float64 `json:"total_price"`
}

// NewEngine loads the session owner's saved cart. A cart that cannot be
// loaded or decoded is replaced with an empty one rather than failing the
// session.
func NewEngine(ctx context.Context, session models.Session, store Store, logger *zap.Logger) *Engine {
	e := &Engine{
		session: session,
		store:   store,
		logger:  logger,
	}

	items, err := store.Load(ctx, session.UserID)
	if err != nil {
		logger.Warn("Failed to load saved cart, starting empty",
			zap.String("user_id", session.UserID),
			zap.Error(err))
		items = nil
	}
	e.items = items
	return e
}

// AddItem inserts a new line for the product or increments an existing one.
// Only consumers may add items. A requested quantity below 1 is a no-op.
// The combined quantity must fit the product's current stock or the cart is
// left unchanged and an InsufficientStockError reports what is available.
func (e *Engine) AddItem(ctx context.Context, product models.Product, quantity int) error {
	if e.session.Role != models.RoleConsumer {
		return models.NewPermissionError(e.session.Role, "add to cart")
	}
	if quantity < 1 {
		return nil
	}

	idx := e.find(product.ID)
	needed := quantity
	if idx >= 0 {
		needed += e.items[idx].Quantity
	}
	if product.Stock < needed {
		return models.NewInsufficientStockError(product.ID, needed, product.Stock)
	}

	if idx >= 0 {
		// Refresh the snapshot so the line reflects the product as the
		// consumer last saw it.
		e.items[idx].Product = product
		e.items[idx].Quantity = needed
	} else {
		e.items = append(e.items, models.CartItem{Product: product, Quantity: quantity})
	}

	return e.save(ctx)
}

// RemoveItem drops the line for the product if present. Removing an absent
// product is not an error.
func (e *Engine) RemoveItem(ctx context.Context, productID string) error {
	idx := e.find(productID)
	if idx < 0 {
		return nil
	}
	e.items = append(e.items[:idx], e.items[idx+1:]...)
	return e.save(ctx)
}

// UpdateQuantity sets the line's quantity. Zero or negative removes the
// line. A quantity above the snapshot's stock is clamped to the available
// stock and the call reports an InsufficientStockError after the clamped
// state has been persisted, so callers can tell the correction happened.
func (e *Engine) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return e.RemoveItem(ctx, productID)
	}

	idx := e.find(productID)
	if idx < 0 {
		return nil
	}

	available := e.items[idx].Product.Stock
	if quantity > available {
		e.items[idx].Quantity = available
		if err := e.save(ctx); err != nil {
			return err
		}
		return models.NewInsufficientStockError(productID, quantity, available)
	}

	e.items[idx].Quantity = quantity
	return e.save(ctx)
}

// Clear empties the cart unconditionally.
func (e *Engine) Clear(ctx context.Context) error {
	e.items = nil
	return e.save(ctx)
}

// Items returns a copy of the current lines.
func (e *Engine) Items() []models.CartItem {
	out := make([]models.CartItem, len(e.items))
	copy(out, e.items)
	return out
}

// Totals recomputes the derived totals from the current lines. Safe at any
// time; an empty cart yields zeros.
func (e *Engine) Totals() Totals {
	var t Totals
	for _, item := range e.items {
		t.Items += item.Quantity
		t.Price += item.Subtotal()
	}
	return t
}

func (e *Engine) find(productID string) int {
	for i, item := range e.items {
		if item.Product.ID == productID {
			return i
		}
	}
	return -1
}

func (e *Engine) save(ctx context.Context) error {
	if err := e.store.Save(ctx, e.session.UserID, e.items); err != nil {
		e.logger.Error("Failed to persist cart",
			zap.String("user_id", e.session.UserID),
			zap.Error(err))
		return models.NewBackendUnavailableError("save cart", err)
	}
	return nil
}
