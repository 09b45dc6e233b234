package gateway

import (
	"errors"
	"net/http"

	"github.com/example/farmmarket/pkg/models"
	"github.com/example/farmmarket/pkg/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// writeError maps the core's typed errors onto HTTP statuses. Insufficient
// stock additionally reports the available quantity so clients can offer a
// corrected one.
func writeError(c *gin.Context, err error) {
	var stockErr *models.InsufficientStockError
	if errors.As(err, &stockErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error":      stockErr.Error(),
			"product_id": stockErr.ProductID,
			"available":  stockErr.Available,
		})
		return
	}

	var transitionErr *models.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error": transitionErr.Error(),
			"from":  transitionErr.From,
			"to":    transitionErr.To,
		})
		return
	}

	switch {
	case models.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, &models.PermissionError{}):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, &models.ValidationError{}):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case models.IsBackendUnavailable(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// Auth

type signUpRequest struct {
	Email    string      `json:"email" binding:"required"`
	Password string      `json:"password" binding:"required"`
	Name     string      `json:"name" binding:"required"`
	Role     models.Role `json:"role" binding:"required"`
}

func (g *Gateway) signUp(c *gin.Context) {
	var req signUpRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, token, err := g.identity.SignUp(c.Request.Context(), req.Email, req.Password, req.Name, req.Role)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": profile, "token": token})
}

type signInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (g *Gateway) signIn(c *gin.Context) {
	var req signInRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, token, err := g.identity.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		// Do not leak whether the email or the password was wrong.
		if models.IsBackendUnavailable(err) {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": profile, "token": token})
}

func (g *Gateway) signOut(c *gin.Context) {
	token := c.GetString("token")
	if err := g.identity.SignOut(c.Request.Context(), token); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (g *Gateway) currentUser(c *gin.Context) {
	token := c.GetString("token")
	profile, err := g.identity.CurrentUser(c.Request.Context(), token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": profile})
}

func (g *Gateway) updateProfile(c *gin.Context) {
	var update models.ProfileUpdate
	if err := c.BindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := g.identity.UpdateProfile(c.Request.Context(), g.session(c).UserID, update)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": profile})
}

// Products

func (g *Gateway) listProducts(c *gin.Context) {
	filter := store.ProductFilter{
		Category: c.Query("category"),
		FarmerID: c.Query("farmer_id"),
	}
	if v, ok := c.GetQuery("featured"); ok {
		featured := v == "true"
		filter.Featured = &featured
	}
	if v, ok := c.GetQuery("organic"); ok {
		organic := v == "true"
		filter.Organic = &organic
	}

	products, err := g.store.ListProducts(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "total": len(products)})
}

func (g *Gateway) getProduct(c *gin.Context) {
	product, err := g.store.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

type productRequest struct {
	Name        string   `json:"name" binding:"required"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Unit        string   `json:"unit"`
	Description string   `json:"description"`
	Stock       int      `json:"stock"`
	Images      []string `json:"images"`
	Organic     bool     `json:"organic"`
	Featured    bool     `json:"featured"`
}

func (r *productRequest) validate() error {
	if r.Price < 0 {
		return models.NewValidationError("price must not be negative")
	}
	if r.Stock < 0 {
		return models.NewValidationError("stock must not be negative")
	}
	return nil
}

func (g *Gateway) createProduct(c *gin.Context) {
	session := g.session(c)
	if session.Role != models.RoleFarmer {
		writeError(c, models.NewPermissionError(session.Role, "create product"))
		return
	}

	var req productRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.validate(); err != nil {
		writeError(c, err)
		return
	}

	product := &models.Product{
		ID:          uuid.New().String(),
		FarmerID:    session.UserID,
		Name:        req.Name,
		Category:    req.Category,
		Price:       req.Price,
		Unit:        req.Unit,
		Description: req.Description,
		Stock:       req.Stock,
		Images:      req.Images,
		Organic:     req.Organic,
		Featured:    req.Featured,
	}
	if err := g.store.CreateProduct(c.Request.Context(), product); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"product": product})
}

func (g *Gateway) updateProduct(c *gin.Context) {
	session := g.session(c)
	existing, err := g.store.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if session.Role != models.RoleFarmer || existing.FarmerID != session.UserID {
		writeError(c, models.NewPermissionError(session.Role, "edit product"))
		return
	}

	var req productRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.validate(); err != nil {
		writeError(c, err)
		return
	}

	existing.Name = req.Name
	existing.Category = req.Category
	existing.Price = req.Price
	existing.Unit = req.Unit
	existing.Description = req.Description
	existing.Stock = req.Stock
	existing.Images = req.Images
	existing.Organic = req.Organic
	existing.Featured = req.Featured

	if err := g.store.UpdateProduct(c.Request.Context(), existing); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": existing})
}

func (g *Gateway) deleteProduct(c *gin.Context) {
	session := g.session(c)
	existing, err := g.store.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if session.Role != models.RoleFarmer || existing.FarmerID != session.UserID {
		writeError(c, models.NewPermissionError(session.Role, "delete product"))
		return
	}

	if err := g.store.DeleteProduct(c.Request.Context(), existing.ID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Cart

func (g *Gateway) getCart(c *gin.Context) {
	engine := g.cartEngine(c)
	c.JSON(http.StatusOK, gin.H{"items": engine.Items(), "totals": engine.Totals()})
}

type addCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

func (g *Gateway) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := g.store.GetProduct(c.Request.Context(), req.ProductID)
	if err != nil {
		writeError(c, err)
		return
	}

	engine := g.cartEngine(c)
	if err := engine.AddItem(c.Request.Context(), *product, req.Quantity); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": engine.Items(), "totals": engine.Totals()})
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (g *Gateway) updateCartItem(c *gin.Context) {
	var req updateCartItemRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	engine := g.cartEngine(c)
	err := engine.UpdateQuantity(c.Request.Context(), c.Param("productId"), req.Quantity)
	if err != nil {
		// The clamp path has already persisted a corrected quantity; the
		// conflict response carries both the cart and what is available.
		var stockErr *models.InsufficientStockError
		if errors.As(err, &stockErr) {
			c.JSON(http.StatusConflict, gin.H{
				"error":     stockErr.Error(),
				"available": stockErr.Available,
				"items":     engine.Items(),
				"totals":    engine.Totals(),
			})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": engine.Items(), "totals": engine.Totals()})
}

func (g *Gateway) removeCartItem(c *gin.Context) {
	engine := g.cartEngine(c)
	if err := engine.RemoveItem(c.Request.Context(), c.Param("productId")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": engine.Items(), "totals": engine.Totals()})
}

func (g *Gateway) clearCart(c *gin.Context) {
	engine := g.cartEngine(c)
	if err := engine.Clear(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": engine.Items(), "totals": engine.Totals()})
}

// Orders

func (g *Gateway) checkout(c *gin.Context) {
	session := g.session(c)
	engine := g.cartEngine(c)

	items := engine.Items()
	totals := engine.Totals()

	created, err := g.orders.CreateOrder(c.Request.Context(), session, items, totals.Price)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := engine.Clear(c.Request.Context()); err != nil {
		// The order exists; a stale cart is recoverable on the next load, so
		// report the order along with a warning instead of failing.
		c.JSON(http.StatusCreated, gin.H{"order": created, "warning": "cart could not be cleared"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": created})
}

func (g *Gateway) listOrders(c *gin.Context) {
	session := g.session(c)

	var (
		orders []models.Order
		err    error
	)
	switch session.Role {
	case models.RoleFarmer:
		orders, err = g.orders.ListByFarmer(c.Request.Context(), session.UserID)
	default:
		orders, err = g.orders.ListByConsumer(c.Request.Context(), session.UserID)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": ordersWithItems(orders), "total": len(orders)})
}

func (g *Gateway) getOrder(c *gin.Context) {
	o, err := g.orders.GetOrder(c.Request.Context(), g.session(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	items, _ := o.Items()
	c.JSON(http.StatusOK, gin.H{"order": o, "items": items})
}

type updateStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

func (g *Gateway) updateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	o, err := g.orders.UpdateStatus(c.Request.Context(), g.session(c), c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

func (g *Gateway) getOrderEvents(c *gin.Context) {
	// Ownership check rides on GetOrder.
	if _, err := g.orders.GetOrder(c.Request.Context(), g.session(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}

	events, err := g.audit.GetOrderEvents(c.Request.Context(), c.Param("id"), 100)
	if err != nil {
		writeError(c, models.NewBackendUnavailableError("order events", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// ordersWithItems decodes each order's line snapshots for the response. A
// row with an undecodable payload keeps its summary fields and an empty
// item list.
func ordersWithItems(orders []models.Order) []gin.H {
	out := make([]gin.H, len(orders))
	for i, o := range orders {
		items, err := o.Items()
		if err != nil {
			items = []models.OrderItem{}
		}
		out[i] = gin.H{"order": o, "items": items}
	}
	return out
}
