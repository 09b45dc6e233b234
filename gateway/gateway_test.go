package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/farmmarket/pkg/cart"
	"github.com/example/farmmarket/pkg/config"
	"github.com/example/farmmarket/pkg/identity"
	"github.com/example/farmmarket/pkg/order"
	"github.com/example/farmmarket/pkg/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestGateway(t *testing.T) *gin.Engine {
	t.Helper()

	cfg := &config.Config{}
	logger := zap.NewNop()
	recordStore := store.NewMemoryStore()
	provider := identity.NewMemoryProvider(recordStore)
	orders := order.NewManager(recordStore, nil, logger)

	gw := NewGateway(cfg, logger, provider, recordStore, cart.NewMemoryStore(), orders, nil)
	gw.SetupRoutes()
	return gw.Router()
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func signUp(t *testing.T, router *gin.Engine, email, role string) string {
	t.Helper()
	w, resp := doJSON(t, router, http.MethodPost, "/api/v1/auth/signup", "", gin.H{
		"email":    email,
		"password": "test-password",
		"name":     email,
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, w.Code, "signup %s: %s", email, w.Body.String())
	token, _ := resp["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func createProduct(t *testing.T, router *gin.Engine, farmerToken string, stock int) string {
	t.Helper()
	w, resp := doJSON(t, router, http.MethodPost, "/api/v1/products", farmerToken, gin.H{
		"name":     "Organic Carrots",
		"category": "Vegetables",
		"price":    3.99,
		"unit":     "bunch",
		"stock":    stock,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	product := resp["product"].(map[string]interface{})
	return product["id"].(string)
}

func TestHealth(t *testing.T) {
	router := newTestGateway(t)
	w, resp := doJSON(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", resp["status"])
}

func TestAuthRequired(t *testing.T) {
	router := newTestGateway(t)

	w, _ := doJSON(t, router, http.MethodGet, "/api/v1/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = doJSON(t, router, http.MethodGet, "/api/v1/cart", "bogus-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProductPermissions(t *testing.T) {
	router := newTestGateway(t)
	farmerToken := signUp(t, router, "farmer@example.com", "farmer")
	consumerToken := signUp(t, router, "consumer@example.com", "consumer")

	// Consumers cannot put products up for sale.
	w, _ := doJSON(t, router, http.MethodPost, "/api/v1/products", consumerToken, gin.H{
		"name": "Sneaky", "price": 1.0, "stock": 1,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	productID := createProduct(t, router, farmerToken, 5)

	// Another farmer cannot edit it.
	otherFarmer := signUp(t, router, "other@example.com", "farmer")
	w, _ = doJSON(t, router, http.MethodDelete, "/api/v1/products/"+productID, otherFarmer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Anyone can browse.
	w, resp := doJSON(t, router, http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), resp["total"])
}

func TestProductValidation(t *testing.T) {
	router := newTestGateway(t)
	farmerToken := signUp(t, router, "farmer@example.com", "farmer")

	w, _ := doJSON(t, router, http.MethodPost, "/api/v1/products", farmerToken, gin.H{
		"name": "Bad", "price": -1.0, "stock": 5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/products", farmerToken, gin.H{
		"name": "Bad", "price": 1.0, "stock": -5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCartFlow(t *testing.T) {
	router := newTestGateway(t)
	farmerToken := signUp(t, router, "farmer@example.com", "farmer")
	consumerToken := signUp(t, router, "consumer@example.com", "consumer")
	productID := createProduct(t, router, farmerToken, 5)

	// Farmers cannot add to a cart.
	w, _ := doJSON(t, router, http.MethodPost, "/api/v1/cart/items", farmerToken, gin.H{
		"product_id": productID, "quantity": 1,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Add 3 of 5.
	w, resp := doJSON(t, router, http.MethodPost, "/api/v1/cart/items", consumerToken, gin.H{
		"product_id": productID, "quantity": 3,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	totals := resp["totals"].(map[string]interface{})
	assert.Equal(t, float64(3), totals["total_items"])
	assert.InDelta(t, 11.97, totals["total_price"].(float64), 0.0001)

	// Adding 3 more exceeds stock; the response names what is available.
	w, resp = doJSON(t, router, http.MethodPost, "/api/v1/cart/items", consumerToken, gin.H{
		"product_id": productID, "quantity": 3,
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, float64(5), resp["available"])

	// Clamp-and-report on update.
	w, resp = doJSON(t, router, http.MethodPut, "/api/v1/cart/items/"+productID, consumerToken, gin.H{
		"quantity": 9,
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, float64(5), resp["available"])
	items := resp["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, float64(5), items[0].(map[string]interface{})["quantity"])

	// Update down to zero removes the line.
	w, resp = doJSON(t, router, http.MethodPut, "/api/v1/cart/items/"+productID, consumerToken, gin.H{
		"quantity": 0,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp["items"])
}

func TestCheckoutAndOrderLifecycle(t *testing.T) {
	router := newTestGateway(t)
	farmerToken := signUp(t, router, "farmer@example.com", "farmer")
	consumerToken := signUp(t, router, "consumer@example.com", "consumer")
	productID := createProduct(t, router, farmerToken, 2)

	w, _ := doJSON(t, router, http.MethodPost, "/api/v1/cart/items", consumerToken, gin.H{
		"product_id": productID, "quantity": 2,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Checkout drains the cart and decrements stock to zero.
	w, resp := doJSON(t, router, http.MethodPost, "/api/v1/orders", consumerToken, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := resp["order"].(map[string]interface{})
	orderID := created["id"].(string)
	assert.Equal(t, "pending", created["status"])
	assert.InDelta(t, 7.98, created["total_amount"].(float64), 0.0001)

	w, resp = doJSON(t, router, http.MethodGet, "/api/v1/cart", consumerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp["items"])

	w, resp = doJSON(t, router, http.MethodGet, "/api/v1/products/"+productID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), resp["product"].(map[string]interface{})["stock"])

	// Checking out an empty cart fails.
	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/orders", consumerToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Both sides see the order in their lists.
	w, resp = doJSON(t, router, http.MethodGet, "/api/v1/orders", consumerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), resp["total"])

	w, resp = doJSON(t, router, http.MethodGet, "/api/v1/orders", farmerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), resp["total"])

	// Consumers cannot advance the status.
	w, _ = doJSON(t, router, http.MethodPut, "/api/v1/orders/"+orderID+"/status", consumerToken, gin.H{
		"status": "accepted",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// The farmer walks the happy path.
	for _, status := range []string{"accepted", "preparing", "out-for-delivery", "delivered"} {
		w, resp = doJSON(t, router, http.MethodPut, "/api/v1/orders/"+orderID+"/status", farmerToken, gin.H{
			"status": status,
		})
		require.Equal(t, http.StatusOK, w.Code, "transition to %s: %s", status, w.Body.String())
		assert.Equal(t, status, resp["order"].(map[string]interface{})["status"])
	}

	// Delivered is terminal.
	w, _ = doJSON(t, router, http.MethodPut, "/api/v1/orders/"+orderID+"/status", farmerToken, gin.H{
		"status": "accepted",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCheckoutInsufficientStock(t *testing.T) {
	router := newTestGateway(t)
	farmerToken := signUp(t, router, "farmer@example.com", "farmer")
	consumerToken := signUp(t, router, "consumer@example.com", "consumer")
	productID := createProduct(t, router, farmerToken, 3)

	w, _ := doJSON(t, router, http.MethodPost, "/api/v1/cart/items", consumerToken, gin.H{
		"product_id": productID, "quantity": 3,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// The farmer sells down the stock before checkout.
	w, resp := doJSON(t, router, http.MethodGet, "/api/v1/products/"+productID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	product := resp["product"].(map[string]interface{})
	w, _ = doJSON(t, router, http.MethodPut, "/api/v1/products/"+productID, farmerToken, gin.H{
		"name":  product["name"],
		"price": product["price"],
		"stock": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = doJSON(t, router, http.MethodPost, "/api/v1/orders", consumerToken, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, float64(1), resp["available"])

	// Nothing changed: stock stays at 1 and no order exists.
	w, resp = doJSON(t, router, http.MethodGet, "/api/v1/orders", consumerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), resp["total"])
}

func TestOrderAccessControl(t *testing.T) {
	router := newTestGateway(t)
	farmerToken := signUp(t, router, "farmer@example.com", "farmer")
	consumerToken := signUp(t, router, "consumer@example.com", "consumer")
	productID := createProduct(t, router, farmerToken, 5)

	w, _ := doJSON(t, router, http.MethodPost, "/api/v1/cart/items", consumerToken, gin.H{
		"product_id": productID, "quantity": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)
	w, resp := doJSON(t, router, http.MethodPost, "/api/v1/orders", consumerToken, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	orderID := resp["order"].(map[string]interface{})["id"].(string)

	stranger := signUp(t, router, "stranger@example.com", "consumer")
	w, _ = doJSON(t, router, http.MethodGet, "/api/v1/orders/"+orderID, stranger, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/orders/%s", orderID), consumerToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProfileUpdate(t *testing.T) {
	router := newTestGateway(t)
	token := signUp(t, router, "sarah@example.com", "consumer")

	w, resp := doJSON(t, router, http.MethodPut, "/api/v1/profile", token, gin.H{
		"phone": "555-0101",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "555-0101", resp["user"].(map[string]interface{})["phone"])

	// Sign out invalidates the token.
	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/auth/signout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(t, router, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
