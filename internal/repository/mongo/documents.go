package mongo

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/flicky/flashmart-api/internal/model"
)

func toDecimal128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.NewDecimal128(0, 0)
	}
	return v
}

func fromDecimal128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

type addressDoc struct {
	ID           string `bson:"id"`
	FullName     string `bson:"full_name"`
	Phone        string `bson:"phone"`
	AddressLine1 string `bson:"address_line1"`
	AddressLine2 string `bson:"address_line2"`
	City         string `bson:"city"`
	State        string `bson:"state"`
	Pincode      string `bson:"pincode"`
	IsDefault    bool   `bson:"is_default"`
}

type userDoc struct {
	ID        string       `bson:"id"`
	Name      string       `bson:"name"`
	Email     string       `bson:"email"`
	Phone     string       `bson:"phone"`
	Password  string       `bson:"password"`
	IsAdmin   bool         `bson:"is_admin"`
	Addresses []addressDoc `bson:"addresses"`
	CreatedAt time.Time    `bson:"created_at"`
}

func toAddressDoc(a model.Address) addressDoc {
	return addressDoc{
		ID: a.ID, FullName: a.FullName, Phone: a.Phone, AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2, City: a.City, State: a.State, Pincode: a.Pincode, IsDefault: a.IsDefault,
	}
}

func toUserDoc(u *model.User) userDoc {
	doc := userDoc{
		ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone, Password: u.Password,
		IsAdmin: u.IsAdmin, Addresses: []addressDoc{}, CreatedAt: u.CreatedAt,
	}
	for _, a := range u.Addresses {
		doc.Addresses = append(doc.Addresses, toAddressDoc(a))
	}
	return doc
}

func (d userDoc) model() *model.User {
	u := &model.User{
		ID: d.ID, Name: d.Name, Email: d.Email, Phone: d.Phone, Password: d.Password,
		IsAdmin: d.IsAdmin, CreatedAt: d.CreatedAt,
	}
	for _, a := range d.Addresses {
		u.Addresses = append(u.Addresses, model.Address{
			ID: a.ID, FullName: a.FullName, Phone: a.Phone, AddressLine1: a.AddressLine1,
			AddressLine2: a.AddressLine2, City: a.City, State: a.State, Pincode: a.Pincode, IsDefault: a.IsDefault,
		})
	}
	return u
}

type categoryDoc struct {
	ID           string `bson:"id"`
	Name         string `bson:"name"`
	ImageURL     string `bson:"image_url"`
	DisplayOrder int    `bson:"display_order"`
}

type productDoc struct {
	ID          string               `bson:"id"`
	Name        string               `bson:"name"`
	Description string               `bson:"description"`
	Price       primitive.Decimal128 `bson:"price"`
	MRP         primitive.Decimal128 `bson:"mrp"`
	Unit        string               `bson:"unit"`
	CategoryID  string               `bson:"category_id"`
	ImageURL    string               `bson:"image_url"`
	Stock       int                  `bson:"stock"`
	IsAvailable bool                 `bson:"is_available"`
}

func toProductDoc(p *model.Product) productDoc {
	return productDoc{
		ID: p.ID, Name: p.Name, Description: p.Description, Price: toDecimal128(p.Price),
		MRP: toDecimal128(p.MRP), Unit: p.Unit, CategoryID: p.CategoryID, ImageURL: p.ImageURL,
		Stock: p.Stock, IsAvailable: p.IsAvailable,
	}
}

func (d productDoc) model() *model.Product {
	return &model.Product{
		ID: d.ID, Name: d.Name, Description: d.Description, Price: fromDecimal128(d.Price),
		MRP: fromDecimal128(d.MRP), Unit: d.Unit, CategoryID: d.CategoryID, ImageURL: d.ImageURL,
		Stock: d.Stock, IsAvailable: d.IsAvailable,
	}
}

type cartLineDoc struct {
	ProductID string               `bson:"product_id"`
	Quantity  int                  `bson:"quantity"`
	Name      string               `bson:"name"`
	Price     primitive.Decimal128 `bson:"price"`
	ImageURL  string               `bson:"image_url"`
	AddedAt   time.Time            `bson:"added_at"`
}

type cartDoc struct {
	UserID    string        `bson:"user_id"`
	Lines     []cartLineDoc `bson:"items"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

func toCartDoc(c *model.Cart) cartDoc {
	doc := cartDoc{UserID: c.UserID, Lines: []cartLineDoc{}, UpdatedAt: c.UpdatedAt}
	for _, l := range c.Lines {
		doc.Lines = append(doc.Lines, cartLineDoc{
			ProductID: l.ProductID, Quantity: l.Quantity, Name: l.Name,
			Price: toDecimal128(l.Price), ImageURL: l.ImageURL, AddedAt: l.AddedAt,
		})
	}
	return doc
}

func (d cartDoc) model() *model.Cart {
	c := &model.Cart{UserID: d.UserID, UpdatedAt: d.UpdatedAt}
	for _, l := range d.Lines {
		c.Lines = append(c.Lines, model.CartLine{
			ProductID: l.ProductID, Quantity: l.Quantity, Name: l.Name,
			Price: fromDecimal128(l.Price), ImageURL: l.ImageURL, AddedAt: l.AddedAt,
		})
	}
	return c
}

type orderLineDoc struct {
	ProductID string               `bson:"product_id"`
	Name      string               `bson:"name"`
	Price     primitive.Decimal128 `bson:"price"`
	Quantity  int                  `bson:"quantity"`
	Subtotal  primitive.Decimal128 `bson:"subtotal"`
}

type orderAddressDoc struct {
	FullName     string `bson:"full_name"`
	Phone        string `bson:"phone"`
	AddressLine1 string `bson:"address_line1"`
	AddressLine2 string `bson:"address_line2"`
	City         string `bson:"city"`
	State        string `bson:"state"`
	Pincode      string `bson:"pincode"`
}

type orderDoc struct {
	ID                string               `bson:"id"`
	UserID            string               `bson:"user_id"`
	Items             []orderLineDoc       `bson:"items"`
	Address           orderAddressDoc      `bson:"address"`
	Total             primitive.Decimal128 `bson:"total"`
	PaymentMethod     string               `bson:"payment_method"`
	Status            string               `bson:"status"`
	CreatedAt         time.Time            `bson:"created_at"`
	EstimatedDelivery time.Time            `bson:"estimated_delivery"`
	UpdatedAt         time.Time            `bson:"updated_at"`
}

func toOrderDoc(o *model.Order) orderDoc {
	a := o.Address
	doc := orderDoc{
		ID: o.ID, UserID: o.UserID, Items: []orderLineDoc{},
		Address: orderAddressDoc{
			FullName: a.FullName, Phone: a.Phone, AddressLine1: a.AddressLine1, AddressLine2: a.AddressLine2,
			City: a.City, State: a.State, Pincode: a.Pincode,
		},
		Total: toDecimal128(o.Total), PaymentMethod: o.PaymentMethod, Status: string(o.Status),
		CreatedAt: o.CreatedAt, EstimatedDelivery: o.EstimatedDelivery, UpdatedAt: o.UpdatedAt,
	}
	for _, it := range o.Items {
		doc.Items = append(doc.Items, orderLineDoc{
			ProductID: it.ProductID, Name: it.Name, Price: toDecimal128(it.Price),
			Quantity: it.Quantity, Subtotal: toDecimal128(it.Subtotal),
		})
	}
	return doc
}

func (d orderDoc) model() *model.Order {
	a := d.Address
	o := &model.Order{
		ID: d.ID, UserID: d.UserID,
		Address: model.AddressSnapshot{
			FullName: a.FullName, Phone: a.Phone, AddressLine1: a.AddressLine1, AddressLine2: a.AddressLine2,
			City: a.City, State: a.State, Pincode: a.Pincode,
		},
		Total: fromDecimal128(d.Total), PaymentMethod: d.PaymentMethod, Status: model.OrderStatus(d.Status),
		CreatedAt: d.CreatedAt, EstimatedDelivery: d.EstimatedDelivery, UpdatedAt: d.UpdatedAt,
	}
	for _, it := range d.Items {
		o.Items = append(o.Items, model.OrderLine{
			ProductID: it.ProductID, Name: it.Name, Price: fromDecimal128(it.Price),
			Quantity: it.Quantity, Subtotal: fromDecimal128(it.Subtotal),
		})
	}
	return o
}

type orderEventDoc struct {
	ID             string    `bson:"id"`
	Type           string    `bson:"type"`
	OrderID        string    `bson:"order_id"`
	UserID         string    `bson:"user_id"`
	Status         string    `bson:"status"`
	PreviousStatus string    `bson:"previous_status"`
	ActorID        string    `bson:"actor_id"`
	OccurredAt     time.Time `bson:"occurred_at"`
}

type pincodeDoc struct {
	Pincode       string `bson:"pincode"`
	City          string `bson:"city"`
	IsServiceable bool   `bson:"is_serviceable"`
}
