package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"

	"github.com/flicky/flashmart-api/internal/authz"
	"github.com/flicky/flashmart-api/internal/dto"
	"github.com/flicky/flashmart-api/internal/lock"
	"github.com/flicky/flashmart-api/internal/model"
	"github.com/flicky/flashmart-api/internal/realtime"
	"github.com/flicky/flashmart-api/internal/repository/memory"
	"github.com/flicky/flashmart-api/internal/service"
	"github.com/flicky/flashmart-api/internal/worker"
)

type testAPI struct {
	router        *gin.Engine
	adminToken    string
	customerToken string
}

func newTestAPI(t *testing.T, policy model.StatusPolicy) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	store := memory.NewStore()
	locker := lock.NewKeyedMutex()
	hub := realtime.NewHub(log)
	publisher := worker.NewInlinePublisher(worker.NewEventHandler(store.Orders, nil, hub, log))

	authSvc := service.NewAuthService(store.Users, "test-secret", time.Hour)
	productSvc := service.NewProductService(store.Products, store.Categories, nil)
	orderSvc := service.NewOrderService(store.Orders, store.Carts, store.Users, productSvc, locker, publisher,
		service.OrderOptions{StatusPolicy: policy, DeliveryETA: 15 * time.Minute, ListLimit: 100, AdminListLimit: 500}, log)

	enforcer, err := authz.NewEnforcer()
	require.NoError(t, err)

	router := gin.New()
	RegisterRoutes(router, Handlers{
		Auth:    NewAuthHandler(authSvc),
		Address: NewAddressHandler(service.NewAddressService(store.Users)),
		Catalog: NewCatalogHandler(productSvc, service.NewCategoryService(store.Categories)),
		Pincode: NewPincodeHandler(service.NewPincodeService(store.Pincodes)),
		Cart:    NewCartHandler(service.NewCartService(store.Carts, productSvc, locker, log)),
		Order:   NewOrderHandler(orderSvc),
		Admin:   NewAdminOrderHandler(orderSvc, hub),
		Health:  NewHealthHandler(nil, nil, nil, nil),
	}, authSvc, enforcer)

	admin := service.AdminAccount{Email: "admin@flashmart.in", Password: "admin123", Name: "Admin", Phone: "9999999999"}
	_, err = authSvc.EnsureAdmin(ctx, admin)
	require.NoError(t, err)
	adminAuth, err := authSvc.Login(ctx, dto.LoginRequest{Email: admin.Email, Password: admin.Password})
	require.NoError(t, err)
	customerAuth, err := authSvc.Register(ctx, dto.RegisterRequest{
		Name: "Asha", Email: "asha@example.com", Password: "password123", Phone: "9000000000",
	})
	require.NoError(t, err)

	return &testAPI{router: router, adminToken: adminAuth.Token, customerToken: customerAuth.Token}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// seedCatalog creates one category and a product priced 28 against an mrp of 30.
func (a *testAPI) seedCatalog(t *testing.T) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/admin/categories", a.adminToken, dto.CategoryRequest{Name: "Dairy & Bread"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	category := decode[dto.CategoryResponse](t, w)

	w = a.do(t, http.MethodPost, "/api/admin/products", a.adminToken, map[string]any{
		"name": "Milk", "price": "28", "mrp": "30", "unit": "500 ml", "category_id": category.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[dto.ProductResponse](t, w).ID
}

func (a *testAPI) addAddress(t *testing.T) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/addresses", a.customerToken, dto.AddressRequest{
		FullName: "Asha", Phone: "9000000000", AddressLine1: "12 MG Road", City: "Pune", State: "MH", Pincode: "411001",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[dto.AddressResponse](t, w).ID
}

func TestCheckoutFlow(t *testing.T) {
	api := newTestAPI(t, model.StatusPolicyStrict)
	productID := api.seedCatalog(t)
	addressID := api.addAddress(t)

	w := api.do(t, http.MethodPost, "/api/cart/add", api.customerToken, map[string]any{"product_id": productID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"message":"Added to cart"}`, w.Body.String())
	w = api.do(t, http.MethodPost, "/api/cart/add", api.customerToken, map[string]any{"product_id": productID, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/api/cart", api.customerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cart := decode[dto.CartResponse](t, w)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, "84", cart.Total.String())
	assert.Equal(t, "6", cart.Savings.String())

	w = api.do(t, http.MethodPost, "/api/orders", api.customerToken, dto.CreateOrderRequest{AddressID: addressID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[dto.OrderResponse](t, w)
	assert.Len(t, order.ID, 8)
	assert.Equal(t, model.OrderStatusConfirmed, order.Status)
	assert.Equal(t, "COD", order.PaymentMethod)
	assert.Equal(t, "Pune", order.Address.City)

	w = api.do(t, http.MethodGet, "/api/cart", api.customerToken, nil)
	assert.Empty(t, decode[dto.CartResponse](t, w).Items)

	w = api.do(t, http.MethodGet, "/api/orders/"+order.ID, api.customerToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = api.do(t, http.MethodGet, "/api/orders", api.customerToken, nil)
	assert.Len(t, decode[[]dto.OrderResponse](t, w), 1)

	w = api.do(t, http.MethodPut, "/api/admin/orders/"+order.ID+"/status", api.adminToken, dto.UpdateOrderStatusRequest{Status: "preparing"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Order status updated to preparing")

	// Query parameter form.
	w = api.do(t, http.MethodPut, "/api/admin/orders/"+order.ID+"/status?status=out_for_delivery", api.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, "/api/orders/"+order.ID+"/history", api.customerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[[]dto.OrderEventResponse](t, w)
	require.Len(t, history, 3)
	assert.Equal(t, model.EventOrderPlaced, history[0].Type)
	assert.Equal(t, model.OrderStatusOutForDelivery, history[2].Status)
	assert.Equal(t, model.OrderStatusPreparing, history[2].PreviousStatus)

	w = api.do(t, http.MethodGet, "/api/admin/orders", api.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[[]dto.OrderResponse](t, w)
	require.Len(t, all, 1)
	assert.Equal(t, model.OrderStatusOutForDelivery, all[0].Status)
}

func TestCartEndpoints(t *testing.T) {
	api := newTestAPI(t, model.StatusPolicyStrict)
	productID := api.seedCatalog(t)

	w := api.do(t, http.MethodPost, "/api/cart/add", api.customerToken, map[string]any{"product_id": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"product not found"}`, w.Body.String())

	w = api.do(t, http.MethodPost, "/api/cart/add", api.customerToken, map[string]any{"product_id": productID, "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/cart/add", api.customerToken, map[string]any{"product_id": productID, "quantity": 4})
	require.Equal(t, http.StatusOK, w.Code)
	w = api.do(t, http.MethodPut, "/api/cart/update", api.customerToken, dto.UpdateCartItemRequest{ProductID: productID, Quantity: 2})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Cart updated"}`, w.Body.String())

	w = api.do(t, http.MethodGet, "/api/cart", api.customerToken, nil)
	assert.Equal(t, 2, decode[dto.CartResponse](t, w).Items[0].Quantity)

	w = api.do(t, http.MethodDelete, "/api/cart/remove/"+productID, api.customerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Removed from cart"}`, w.Body.String())

	w = api.do(t, http.MethodDelete, "/api/cart/clear", api.customerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Cart cleared"}`, w.Body.String())
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t, model.StatusPolicyStrict)
	productID := api.seedCatalog(t)
	addressID := api.addAddress(t)

	t.Run("unauthenticated", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/cart", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("customer on admin route", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/admin/orders", api.customerToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		w = api.do(t, http.MethodDelete, "/api/admin/products/"+productID, api.customerToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("empty cart", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/orders", api.customerToken, dto.CreateOrderRequest{AddressID: addressID})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"cart is empty"}`, w.Body.String())
	})

	t.Run("unknown address", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/cart/add", api.customerToken, map[string]any{"product_id": productID})
		require.Equal(t, http.StatusOK, w.Code)
		w = api.do(t, http.MethodPost, "/api/orders", api.customerToken, dto.CreateOrderRequest{AddressID: "nope"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"address not found"}`, w.Body.String())
	})

	t.Run("status rules", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/orders", api.customerToken, dto.CreateOrderRequest{AddressID: addressID})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		order := decode[dto.OrderResponse](t, w)
		path := "/api/admin/orders/" + order.ID + "/status"

		w = api.do(t, http.MethodPut, path, api.adminToken, dto.UpdateOrderStatusRequest{Status: "shipped"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = api.do(t, http.MethodPut, path, api.adminToken, dto.UpdateOrderStatusRequest{Status: "delivered"})
		require.Equal(t, http.StatusOK, w.Code)
		w = api.do(t, http.MethodPut, path, api.adminToken, dto.UpdateOrderStatusRequest{Status: "preparing"})
		assert.Equal(t, http.StatusConflict, w.Code)

		w = api.do(t, http.MethodPut, "/api/admin/orders/FFFFFFFF/status", api.adminToken, dto.UpdateOrderStatusRequest{Status: "preparing"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("other user's order is not found", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/orders/FFFFFFFF", api.customerToken, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"order not found"}`, w.Body.String())
	})

	t.Run("duplicate registration", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/auth/register", "", dto.RegisterRequest{
			Name: "Asha", Email: "ASHA@example.com", Password: "password123", Phone: "9000000000",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad login", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{Email: "asha@example.com", Password: "nope"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"invalid credentials"}`, w.Body.String())
	})
}

func TestPermissivePolicyAllowsBackwardMoves(t *testing.T) {
	api := newTestAPI(t, model.StatusPolicyPermissive)
	productID := api.seedCatalog(t)
	addressID := api.addAddress(t)

	w := api.do(t, http.MethodPost, "/api/cart/add", api.customerToken, map[string]any{"product_id": productID})
	require.Equal(t, http.StatusOK, w.Code)
	w = api.do(t, http.MethodPost, "/api/orders", api.customerToken, dto.CreateOrderRequest{AddressID: addressID})
	require.Equal(t, http.StatusCreated, w.Code)
	path := "/api/admin/orders/" + decode[dto.OrderResponse](t, w).ID + "/status"

	w = api.do(t, http.MethodPut, path, api.adminToken, dto.UpdateOrderStatusRequest{Status: "delivered"})
	require.Equal(t, http.StatusOK, w.Code)
	w = api.do(t, http.MethodPut, path, api.adminToken, dto.UpdateOrderStatusRequest{Status: "preparing"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCatalogAndPincodes(t *testing.T) {
	api := newTestAPI(t, model.StatusPolicyStrict)
	productID := api.seedCatalog(t)

	w := api.do(t, http.MethodGet, "/api/products?search=milk", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	products := decode[[]dto.ProductResponse](t, w)
	require.Len(t, products, 1)
	assert.Equal(t, "Dairy & Bread", products[0].CategoryName)
	assert.Equal(t, 6, products[0].DiscountPercent)

	w = api.do(t, http.MethodGet, "/api/products?limit=500", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPut, "/api/admin/products/"+productID, api.adminToken, map[string]any{
		"name": "Milk", "mrp": "30", "unit": "500 ml", "category_id": products[0].CategoryID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	w = api.do(t, http.MethodGet, "/api/products/"+productID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[dto.ProductResponse](t, w).Price.Equal(decimal.NewFromInt(28)))

	w = api.do(t, http.MethodGet, "/api/categories", "", nil)
	assert.Len(t, decode[[]dto.CategoryResponse](t, w), 1)

	w = api.do(t, http.MethodDelete, "/api/admin/products/"+productID, api.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = api.do(t, http.MethodGet, "/api/products/"+productID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodPost, "/api/pincode/check", "", dto.PincodeCheckRequest{Pincode: "411001"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[dto.PincodeResponse](t, w).IsServiceable)

	w = api.do(t, http.MethodPut, "/api/admin/pincodes/411001", api.adminToken, dto.PincodeUpsertRequest{City: "Pune", IsServiceable: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = api.do(t, http.MethodPost, "/api/pincode/check", "", dto.PincodeCheckRequest{Pincode: "411001"})
	assert.True(t, decode[dto.PincodeResponse](t, w).IsServiceable)
}

func TestAdminExport(t *testing.T) {
	api := newTestAPI(t, model.StatusPolicyStrict)
	productID := api.seedCatalog(t)
	addressID := api.addAddress(t)

	w := api.do(t, http.MethodPost, "/api/cart/add", api.customerToken, map[string]any{"product_id": productID, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)
	w = api.do(t, http.MethodPost, "/api/orders", api.customerToken, dto.CreateOrderRequest{AddressID: addressID})
	require.Equal(t, http.StatusCreated, w.Code)
	order := decode[dto.OrderResponse](t, w)

	w = api.do(t, http.MethodGet, "/api/admin/orders/export", api.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "attachment; filename=orders.xlsx", w.Header().Get("Content-Disposition"))

	file, err := xlsx.OpenBinary(w.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)
	rows := file.Sheets[0].Rows
	require.Len(t, rows, 2)
	assert.Equal(t, "Order ID", rows[0].Cells[0].String())
	assert.Equal(t, order.ID, rows[1].Cells[0].String())
	assert.Equal(t, "confirmed", rows[1].Cells[2].String())
	assert.Equal(t, "56.00", rows[1].Cells[3].String())
	assert.Equal(t, "2", rows[1].Cells[4].String())
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, model.StatusPolicyStrict)

	w := api.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = api.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
