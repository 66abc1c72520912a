// Package memory implements the repository interfaces on process memory.
// Every read and write copies, so callers never share state with the store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flicky/flashmart-api/internal/model"
	"github.com/flicky/flashmart-api/internal/repository"
)

// Store bundles one repository per entity.
type Store struct {
	Users      *UserRepo
	Categories *CategoryRepo
	Products   *ProductRepo
	Carts      *CartRepo
	Orders     *OrderRepo
	Pincodes   *PincodeRepo
}

func NewStore() *Store {
	carts := NewCartRepository()
	orders := NewOrderRepository()
	orders.carts = carts
	return &Store{
		Users:      NewUserRepository(),
		Categories: NewCategoryRepository(),
		Products:   NewProductRepository(),
		Carts:      carts,
		Orders:     orders,
		Pincodes:   NewPincodeRepository(),
	}
}

// --- users ---

type UserRepo struct {
	mu    sync.RWMutex
	users map[string]*model.User
}

var _ repository.UserRepository = (*UserRepo)(nil)

func NewUserRepository() *UserRepo {
	return &UserRepo{users: make(map[string]*model.User)}
}

func copyUser(u *model.User) *model.User {
	c := *u
	c.Addresses = append([]model.Address(nil), u.Addresses...)
	return &c
}

func (r *UserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicateKey
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if _, ok := r.users[user.ID]; ok {
		return repository.ErrDuplicateKey
	}
	user.CreatedAt = time.Now().UTC()
	r.users[user.ID] = copyUser(user)
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (r *UserRepo) AddAddress(_ context.Context, userID string, addr *model.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil
	}
	if addr.ID == "" {
		addr.ID = uuid.NewString()
	}
	if addr.IsDefault {
		for i := range u.Addresses {
			u.Addresses[i].IsDefault = false
		}
	}
	u.Addresses = append(u.Addresses, *addr)
	return nil
}

func (r *UserRepo) DeleteAddress(_ context.Context, userID, addressID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil
	}
	kept := u.Addresses[:0]
	for _, a := range u.Addresses {
		if a.ID != addressID {
			kept = append(kept, a)
		}
	}
	u.Addresses = kept
	return nil
}

// --- categories ---

type CategoryRepo struct {
	mu         sync.RWMutex
	categories map[string]model.Category
}

var _ repository.CategoryRepository = (*CategoryRepo)(nil)

func NewCategoryRepository() *CategoryRepo {
	return &CategoryRepo{categories: make(map[string]model.Category)}
}

func (r *CategoryRepo) Create(_ context.Context, c *model.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, ok := r.categories[c.ID]; ok {
		return repository.ErrDuplicateKey
	}
	r.categories[c.ID] = *c
	return nil
}

func (r *CategoryRepo) GetByID(_ context.Context, id string) (*model.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.categories[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (r *CategoryRepo) List(_ context.Context) ([]model.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Category, 0, len(r.categories))
	for _, c := range r.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// --- products ---

type ProductRepo struct {
	mu       sync.RWMutex
	products map[string]model.Product
}

var _ repository.ProductRepository = (*ProductRepo)(nil)

func NewProductRepository() *ProductRepo {
	return &ProductRepo{products: make(map[string]model.Product)}
}

func (r *ProductRepo) Create(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := r.products[p.ID]; ok {
		return repository.ErrDuplicateKey
	}
	r.products[p.ID] = *p
	return nil
}

func (r *ProductRepo) GetByID(_ context.Context, id string) (*model.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.products[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (r *ProductRepo) List(_ context.Context, f model.ProductFilter) ([]model.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	search := strings.ToLower(f.Search)
	var out []model.Product
	for _, p := range r.products {
		if f.AvailableOnly && !p.IsAvailable {
			continue
		}
		if f.CategoryID != "" && p.CategoryID != f.CategoryID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *ProductRepo) Update(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[p.ID]; ok {
		r.products[p.ID] = *p
	}
	return nil
}

func (r *ProductRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.products, id)
	return nil
}

// --- carts ---

type CartRepo struct {
	mu    sync.Mutex
	carts map[string]*model.Cart
}

var _ repository.CartRepository = (*CartRepo)(nil)

func NewCartRepository() *CartRepo {
	return &CartRepo{carts: make(map[string]*model.Cart)}
}

func copyCart(c *model.Cart) *model.Cart {
	out := *c
	out.Lines = append([]model.CartLine(nil), c.Lines...)
	return &out
}

func (r *CartRepo) GetOrCreate(_ context.Context, userID string) (*model.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[userID]
	if !ok {
		c = &model.Cart{UserID: userID, UpdatedAt: time.Now().UTC()}
		r.carts[userID] = c
	}
	return copyCart(c), nil
}

func (r *CartRepo) Save(_ context.Context, cart *model.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cart.UpdatedAt = time.Now().UTC()
	r.carts[cart.UserID] = copyCart(cart)
	return nil
}

// --- orders ---

// OrderRepo empties carts on Place only when it was built by NewStore.
type OrderRepo struct {
	mu     sync.RWMutex
	orders map[string]*model.Order
	events map[string][]model.OrderEvent
	seen   map[string]bool
	carts  *CartRepo
}

var _ repository.OrderRepository = (*OrderRepo)(nil)

func NewOrderRepository() *OrderRepo {
	return &OrderRepo{
		orders: make(map[string]*model.Order),
		events: make(map[string][]model.OrderEvent),
		seen:   make(map[string]bool),
	}
}

func copyOrder(o *model.Order) *model.Order {
	out := *o
	out.Items = append([]model.OrderLine(nil), o.Items...)
	return &out
}

func (r *OrderRepo) Create(_ context.Context, order *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; ok {
		return repository.ErrDuplicateKey
	}
	r.orders[order.ID] = copyOrder(order)
	return nil
}

// Place holds the cart lock, then the order lock, so the two writes are seen together.
func (r *OrderRepo) Place(_ context.Context, order *model.Order) error {
	if r.carts != nil {
		r.carts.mu.Lock()
		defer r.carts.mu.Unlock()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; ok {
		return repository.ErrDuplicateKey
	}
	r.orders[order.ID] = copyOrder(order)
	if r.carts != nil {
		if c, ok := r.carts.carts[order.UserID]; ok {
			c.Lines = nil
			c.UpdatedAt = order.CreatedAt
		}
	}
	return nil
}

func (r *OrderRepo) GetByID(_ context.Context, id string) (*model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if o, ok := r.orders[id]; ok {
		return copyOrder(o), nil
	}
	return nil, nil
}

func (r *OrderRepo) ListByUserID(_ context.Context, userID string, limit int) ([]model.Order, error) {
	return r.list(func(o *model.Order) bool { return o.UserID == userID }, limit), nil
}

func (r *OrderRepo) ListAll(_ context.Context, limit int) ([]model.Order, error) {
	return r.list(func(*model.Order) bool { return true }, limit), nil
}

func (r *OrderRepo) list(match func(*model.Order) bool, limit int) []model.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Order
	for _, o := range r.orders {
		if match(o) {
			out = append(out, *copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *OrderRepo) UpdateStatus(_ context.Context, id string, status model.OrderStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return false, nil
	}
	o.Status = status
	o.UpdatedAt = at
	return true, nil
}

func (r *OrderRepo) AppendEvent(_ context.Context, e *model.OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[e.ID] {
		return repository.ErrDuplicateKey
	}
	r.seen[e.ID] = true
	r.events[e.OrderID] = append(r.events[e.OrderID], *e)
	return nil
}

func (r *OrderRepo) ListEvents(_ context.Context, orderID string) ([]model.OrderEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.OrderEvent(nil), r.events[orderID]...), nil
}

// --- pincodes ---

type PincodeRepo struct {
	mu       sync.RWMutex
	pincodes map[string]model.Pincode
}

var _ repository.PincodeRepository = (*PincodeRepo)(nil)

func NewPincodeRepository() *PincodeRepo {
	return &PincodeRepo{pincodes: make(map[string]model.Pincode)}
}

func (r *PincodeRepo) Get(_ context.Context, pincode string) (*model.Pincode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.pincodes[pincode]; ok {
		return &p, nil
	}
	return nil, nil
}

func (r *PincodeRepo) Upsert(_ context.Context, p *model.Pincode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pincodes[p.Pincode] = *p
	return nil
}
