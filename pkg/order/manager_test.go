package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/farmmarket/pkg/models"
	"github.com/example/farmmarket/pkg/repository"
	"github.com/example/farmmarket/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	consumer = models.Session{UserID: "c1", Role: models.RoleConsumer}
	farmer   = models.Session{UserID: "f1", Role: models.RoleFarmer}
)

func newTestManager(t *testing.T) (*Manager, *store.MemoryStore) {
	t.Helper()
	memStore := store.NewMemoryStore()
	return NewManager(memStore, nil, zap.NewNop()), memStore
}

func seedProduct(t *testing.T, s *store.MemoryStore, id string, price float64, stock int) models.Product {
	t.Helper()
	p := models.Product{
		ID:       id,
		FarmerID: "f1",
		Name:     "Product " + id,
		Price:    price,
		Unit:     "lb",
		Stock:    stock,
	}
	require.NoError(t, s.CreateProduct(context.Background(), &p))
	return p
}

func cartItems(products []models.Product, quantities []int) []models.CartItem {
	items := make([]models.CartItem, len(products))
	for i := range products {
		items[i] = models.CartItem{Product: products[i], Quantity: quantities[i]}
	}
	return items
}

func cartTotal(items []models.CartItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}

func TestCreateOrder(t *testing.T) {
	manager, memStore := newTestManager(t)
	ctx := context.Background()
	product := seedProduct(t, memStore, "p1", 2.99, 2)

	items := cartItems([]models.Product{product}, []int{2})
	created, err := manager.CreateOrder(ctx, consumer, items, cartTotal(items))
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, created.Status)
	assert.Equal(t, "c1", created.ConsumerID)
	assert.Equal(t, "f1", created.FarmerID)
	assert.InDelta(t, 5.98, created.TotalAmount, 0.0001)

	snapshots, err := created.Items()
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "p1", snapshots[0].ProductID)
	assert.Equal(t, 2, snapshots[0].Quantity)
	assert.InDelta(t, 2.99, snapshots[0].Price, 0.0001)

	// Stock was decremented to zero.
	after, err := memStore.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, after.Stock)
}

// Snapshots insulate orders from later product edits: the stored line keeps
// the price and name from checkout time.
func TestOrderSnapshotSurvivesProductEdit(t *testing.T) {
	manager, memStore := newTestManager(t)
	ctx := context.Background()
	product := seedProduct(t, memStore, "p1", 2.99, 10)

	items := cartItems([]models.Product{product}, []int{1})
	created, err := manager.CreateOrder(ctx, consumer, items, cartTotal(items))
	require.NoError(t, err)

	edited, err := memStore.GetProduct(ctx, "p1")
	require.NoError(t, err)
	edited.Price = 9.99
	edited.Name = "Renamed"
	require.NoError(t, memStore.UpdateProduct(ctx, edited))

	stored, err := memStore.GetOrder(ctx, created.ID)
	require.NoError(t, err)
	snapshots, err := stored.Items()
	require.NoError(t, err)
	assert.InDelta(t, 2.99, snapshots[0].Price, 0.0001)
	assert.Equal(t, "Product p1", snapshots[0].ProductName)
	assert.InDelta(t, 2.99, stored.TotalAmount, 0.0001)
}

func TestCreateOrderRejectsNonConsumers(t *testing.T) {
	manager, memStore := newTestManager(t)
	product := seedProduct(t, memStore, "p1", 1.00, 5)

	items := cartItems([]models.Product{product}, []int{1})
	_, err := manager.CreateOrder(context.Background(), farmer, items, cartTotal(items))
	assert.True(t, errors.Is(err, &models.PermissionError{}))
}

func TestCreateOrderRejectsEmptyCart(t *testing.T) {
	manager, _ := newTestManager(t)
	_, err := manager.CreateOrder(context.Background(), consumer, nil, 0)
	assert.True(t, errors.Is(err, &models.ValidationError{}))
}

func TestCreateOrderRejectsMixedFarmers(t *testing.T) {
	manager, memStore := newTestManager(t)
	ctx := context.Background()
	first := seedProduct(t, memStore, "p1", 1.00, 5)
	second := models.Product{ID: "p2", FarmerID: "f2", Name: "Other", Price: 2.00, Stock: 5}
	require.NoError(t, memStore.CreateProduct(ctx, &second))

	items := cartItems([]models.Product{first, second}, []int{1, 1})
	_, err := manager.CreateOrder(ctx, consumer, items, cartTotal(items))
	assert.True(t, errors.Is(err, &models.ValidationError{}))
}

func TestCreateOrderRejectsMismatchedTotal(t *testing.T) {
	manager, memStore := newTestManager(t)
	product := seedProduct(t, memStore, "p1", 2.00, 5)

	items := cartItems([]models.Product{product}, []int{2})
	_, err := manager.CreateOrder(context.Background(), consumer, items, 1.23)
	assert.True(t, errors.Is(err, &models.ValidationError{}))
}

// Stock is re-validated against live data at creation: a cart snapshot that
// predates a stock change cannot oversell, and a failure is atomic across
// lines.
func TestCreateOrderRevalidatesStockAtomically(t *testing.T) {
	manager, memStore := newTestManager(t)
	ctx := context.Background()
	plenty := seedProduct(t, memStore, "p1", 1.00, 10)
	scarce := seedProduct(t, memStore, "p2", 1.00, 5)

	// Cart was built when p2 had 5 in stock; only 1 remains now.
	stale := scarce
	live, err := memStore.GetProduct(ctx, "p2")
	require.NoError(t, err)
	live.Stock = 1
	require.NoError(t, memStore.UpdateProduct(ctx, live))

	items := cartItems([]models.Product{plenty, stale}, []int{3, 2})
	_, err = manager.CreateOrder(ctx, consumer, items, cartTotal(items))

	var stockErr *models.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "p2", stockErr.ProductID)
	assert.Equal(t, 1, stockErr.Available)

	// No partial decrement happened.
	p1, _ := memStore.GetProduct(ctx, "p1")
	assert.Equal(t, 10, p1.Stock)
	p2, _ := memStore.GetProduct(ctx, "p2")
	assert.Equal(t, 1, p2.Stock)

	// And no order was written.
	orders, err := manager.ListByConsumer(ctx, consumer.UserID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func createTestOrder(t *testing.T, manager *Manager, memStore *store.MemoryStore) *models.Order {
	t.Helper()
	product := seedProduct(t, memStore, "p1", 2.00, 10)
	items := cartItems([]models.Product{product}, []int{1})
	created, err := manager.CreateOrder(context.Background(), consumer, items, cartTotal(items))
	require.NoError(t, err)
	return created
}

func TestUpdateStatusHappyPath(t *testing.T) {
	manager, memStore := newTestManager(t)
	ctx := context.Background()
	created := createTestOrder(t, manager, memStore)

	path := []models.OrderStatus{
		models.StatusAccepted,
		models.StatusPreparing,
		models.StatusOutForDelivery,
		models.StatusDelivered,
	}
	for _, next := range path {
		before := time.Now()
		updated, err := manager.UpdateStatus(ctx, farmer, created.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, updated.Status)
		assert.False(t, updated.UpdatedAt.Before(before))
	}

	stored, err := memStore.GetOrder(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, stored.Status)
}

func TestUpdateStatusWrongActor(t *testing.T) {
	manager, memStore := newTestManager(t)
	ctx := context.Background()
	created := createTestOrder(t, manager, memStore)

	_, err := manager.UpdateStatus(ctx, consumer, created.ID, models.StatusAccepted)

	var transitionErr *models.InvalidTransitionError
	require.True(t, errors.As(err, &transitionErr))
	assert.Equal(t, models.StatusPending, transitionErr.From)
	assert.Equal(t, models.StatusAccepted, transitionErr.To)

	stored, err := memStore.GetOrder(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Equal(t, created.UpdatedAt, stored.UpdatedAt)
}

func TestUpdateStatusSkippingStates(t *testing.T) {
	manager, memStore := newTestManager(t)
	created := createTestOrder(t, manager, memStore)

	_, err := manager.UpdateStatus(context.Background(), farmer, created.ID, models.StatusDelivered)
	assert.True(t, models.IsInvalidTransition(err))
}

func TestUpdateStatusTerminalFinality(t *testing.T) {
	manager, memStore := newTestManager(t)
	ctx := context.Background()
	created := createTestOrder(t, manager, memStore)

	_, err := manager.UpdateStatus(ctx, farmer, created.ID, models.StatusRejected)
	require.NoError(t, err)

	for _, next := range []models.OrderStatus{
		models.StatusPending, models.StatusAccepted, models.StatusPreparing,
		models.StatusOutForDelivery, models.StatusDelivered, models.StatusRejected,
	} {
		_, err := manager.UpdateStatus(ctx, farmer, created.ID, next)
		assert.True(t, models.IsInvalidTransition(err), "rejected order must not move to %s", next)
	}

	stored, err := memStore.GetOrder(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, stored.Status)
}

func TestUpdateStatusUnknownStatus(t *testing.T) {
	manager, memStore := newTestManager(t)
	created := createTestOrder(t, manager, memStore)

	_, err := manager.UpdateStatus(context.Background(), farmer, created.ID, models.OrderStatus("shipped"))
	assert.True(t, models.IsInvalidTransition(err))
}

func TestUpdateStatusForeignFarmer(t *testing.T) {
	manager, memStore := newTestManager(t)
	created := createTestOrder(t, manager, memStore)

	other := models.Session{UserID: "f2", Role: models.RoleFarmer}
	_, err := manager.UpdateStatus(context.Background(), other, created.ID, models.StatusAccepted)
	assert.True(t, errors.Is(err, &models.PermissionError{}))
}

func TestUpdateStatusUnknownOrder(t *testing.T) {
	manager, _ := newTestManager(t)
	_, err := manager.UpdateStatus(context.Background(), farmer, "ghost", models.StatusAccepted)
	assert.True(t, models.IsNotFound(err))
}

func TestGetOrderOwnership(t *testing.T) {
	manager, memStore := newTestManager(t)
	ctx := context.Background()
	created := createTestOrder(t, manager, memStore)

	_, err := manager.GetOrder(ctx, consumer, created.ID)
	assert.NoError(t, err)

	_, err = manager.GetOrder(ctx, farmer, created.ID)
	assert.NoError(t, err)

	stranger := models.Session{UserID: "c2", Role: models.RoleConsumer}
	_, err = manager.GetOrder(ctx, stranger, created.ID)
	assert.True(t, errors.Is(err, &models.PermissionError{}))
}

type recordingAudit struct {
	events chan *repository.OrderEvent
}

func (a *recordingAudit) RecordOrderEvent(ctx context.Context, event *repository.OrderEvent) error {
	a.events <- event
	return nil
}

func TestAuditReceivesLifecycleEvents(t *testing.T) {
	memStore := store.NewMemoryStore()
	audit := &recordingAudit{events: make(chan *repository.OrderEvent, 4)}
	manager := NewManager(memStore, audit, zap.NewNop())
	ctx := context.Background()

	product := seedProduct(t, memStore, "p1", 2.00, 10)
	items := cartItems([]models.Product{product}, []int{1})
	created, err := manager.CreateOrder(ctx, consumer, items, cartTotal(items))
	require.NoError(t, err)

	event := waitForEvent(t, audit.events)
	assert.Equal(t, "create_order", event.Action)
	assert.Equal(t, created.ID, event.OrderID)

	_, err = manager.UpdateStatus(ctx, farmer, created.ID, models.StatusAccepted)
	require.NoError(t, err)

	event = waitForEvent(t, audit.events)
	assert.Equal(t, "update_status", event.Action)
}

func waitForEvent(t *testing.T, ch chan *repository.OrderEvent) *repository.OrderEvent {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit event")
		return nil
	}
}
