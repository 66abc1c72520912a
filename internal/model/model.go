package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Password  string
	IsAdmin   bool
	Addresses []Address
	CreatedAt time.Time
}

// Identity is the resolved caller of a request.
type Identity struct {
	UserID  string
	IsAdmin bool
}

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

func (i Identity) Role() string {
	if i.IsAdmin {
		return RoleAdmin
	}
	return RoleCustomer
}

type Address struct {
	ID           string
	FullName     string
	Phone        string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	Pincode      string
	IsDefault    bool
}

// Snapshot copies the delivery fields frozen into an order.
func (a Address) Snapshot() AddressSnapshot {
	return AddressSnapshot{
		FullName:     a.FullName,
		Phone:        a.Phone,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		Pincode:      a.Pincode,
	}
}

type AddressSnapshot struct {
	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	State        string `json:"state"`
	Pincode      string `json:"pincode"`
}

type Category struct {
	ID           string
	Name         string
	ImageURL     string
	DisplayOrder int
}

type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	MRP         decimal.Decimal
	Unit        string
	CategoryID  string
	ImageURL    string
	Stock       int
	IsAvailable bool
}

type ProductFilter struct {
	CategoryID string
	Search     string
	Limit      int
	// AvailableOnly hides products flagged unavailable.
	AvailableOnly bool
}

type Cart struct {
	UserID    string
	Lines     []CartLine
	UpdatedAt time.Time
}

// CartLine keeps the product presentation captured when the line was first added.
type CartLine struct {
	ProductID string
	Quantity  int
	Name      string
	Price     decimal.Decimal
	ImageURL  string
	AddedAt   time.Time
}

// Line returns the index of productID in the cart, or -1.
func (c *Cart) Line(productID string) int {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) IsEmpty() bool { return len(c.Lines) == 0 }

type Order struct {
	ID                string
	UserID            string
	Items             []OrderLine
	Address           AddressSnapshot
	Total             decimal.Decimal
	PaymentMethod     string
	Status            OrderStatus
	CreatedAt         time.Time
	EstimatedDelivery time.Time
	UpdatedAt         time.Time
}

type OrderLine struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int
	Subtotal  decimal.Decimal
}

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent is both the message on the order event queue and a timeline entry.
type OrderEvent struct {
	ID             string      `json:"id"`
	Type           string      `json:"type"`
	OrderID        string      `json:"order_id"`
	UserID         string      `json:"user_id"`
	Status         OrderStatus `json:"status"`
	PreviousStatus OrderStatus `json:"previous_status,omitempty"`
	ActorID        string      `json:"actor_id"`
	OccurredAt     time.Time   `json:"occurred_at"`
}

type Pincode struct {
	Pincode       string
	City          string
	IsServiceable bool
}
