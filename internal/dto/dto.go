package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/flicky/flashmart-api/internal/model"
)

// --- Auth ---

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Phone    string `json:"phone" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	IsAdmin bool   `json:"is_admin"`
}

// --- Address ---

type AddressRequest struct {
	FullName     string `json:"full_name" binding:"required"`
	Phone        string `json:"phone" binding:"required"`
	AddressLine1 string `json:"address_line1" binding:"required"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city" binding:"required"`
	State        string `json:"state" binding:"required"`
	Pincode      string `json:"pincode" binding:"required"`
	IsDefault    bool   `json:"is_default"`
}

type AddressResponse struct {
	ID           string `json:"id"`
	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	State        string `json:"state"`
	Pincode      string `json:"pincode"`
	IsDefault    bool   `json:"is_default"`
}

// --- Catalog ---

type CategoryRequest struct {
	Name         string `json:"name" binding:"required"`
	ImageURL     string `json:"image_url"`
	DisplayOrder int    `json:"display_order"`
}

type CategoryResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ImageURL     string `json:"image_url"`
	DisplayOrder int    `json:"display_order"`
}

// ProductRequest is a full product body; PUT replaces every field.
type ProductRequest struct {
	Name        string           `json:"name" binding:"required"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price" binding:"required"`
	MRP         *decimal.Decimal `json:"mrp" binding:"required"`
	Unit        string           `json:"unit"`
	CategoryID  string           `json:"category_id" binding:"required"`
	ImageURL    string           `json:"image_url"`
	Stock       *int             `json:"stock" binding:"omitempty,min=0"`
	IsAvailable *bool            `json:"is_available"`
}

type ListProductsRequest struct {
	CategoryID string `form:"category_id"`
	Search     string `form:"search"`
	Limit      int    `form:"limit,default=50" binding:"min=1,max=100"`
}

type ProductResponse struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	MRP             decimal.Decimal `json:"mrp"`
	Unit            string          `json:"unit"`
	CategoryID      string          `json:"category_id"`
	CategoryName    string          `json:"category_name"`
	ImageURL        string          `json:"image_url"`
	Stock           int             `json:"stock"`
	IsAvailable     bool            `json:"is_available"`
	DiscountPercent int             `json:"discount_percent"`
}

// --- Serviceability ---

type PincodeCheckRequest struct {
	Pincode string `json:"pincode" binding:"required"`
}

type PincodeUpsertRequest struct {
	City          string `json:"city" binding:"required"`
	IsServiceable bool   `json:"is_serviceable"`
}

type PincodeResponse struct {
	Pincode       string `json:"pincode"`
	IsServiceable bool   `json:"is_serviceable"`
	DeliveryTime  string `json:"delivery_time"`
	Message       string `json:"message"`
}

// --- Cart ---

type AddCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  *int   `json:"quantity"`
}

// UpdateCartItemRequest allows zero or negative quantities, which remove the line.
type UpdateCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type CartResponse struct {
	Items         []CartItemResponse `json:"items"`
	Total         decimal.Decimal    `json:"total"`
	ItemCount     int                `json:"item_count"`
	Savings       decimal.Decimal    `json:"savings"`
	ExcludedCount int                `json:"excluded_count"`
}

type CartItemResponse struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	MRP       decimal.Decimal `json:"mrp"`
	Unit      string          `json:"unit"`
	ImageURL  string          `json:"image_url"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// --- Order ---

type CreateOrderRequest struct {
	AddressID     string `json:"address_id" binding:"required"`
	PaymentMethod string `json:"payment_method"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" form:"status"`
}

type OrderResponse struct {
	ID                string                `json:"id"`
	UserID            string                `json:"user_id"`
	Items             []OrderItemResponse   `json:"items"`
	Address           model.AddressSnapshot `json:"address"`
	Total             decimal.Decimal       `json:"total"`
	Status            model.OrderStatus     `json:"status"`
	PaymentMethod     string                `json:"payment_method"`
	CreatedAt         time.Time             `json:"created_at"`
	EstimatedDelivery time.Time             `json:"estimated_delivery"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

type OrderItemResponse struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type OrderEventResponse struct {
	Type           string            `json:"type"`
	Status         model.OrderStatus `json:"status"`
	PreviousStatus model.OrderStatus `json:"previous_status,omitempty"`
	ActorID        string            `json:"actor_id"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
