// Package mongo implements the repository interfaces on MongoDB.
package mongo

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flicky/flashmart-api/internal/model"
	"github.com/flicky/flashmart-api/internal/repository"
)

const (
	usersCollection       = "users"
	categoriesCollection  = "categories"
	productsCollection    = "products"
	cartsCollection       = "carts"
	ordersCollection      = "orders"
	orderEventsCollection = "order_events"
	pincodesCollection    = "pincodes"
)

// Store bundles one repository per entity over a single database.
type Store struct {
	Users      repository.UserRepository
	Categories repository.CategoryRepository
	Products   repository.ProductRepository
	Carts      repository.CartRepository
	Orders     repository.OrderRepository
	Pincodes   repository.PincodeRepository
}

func NewStore(db *mongo.Database) *Store {
	return &Store{
		Users:      &UserRepo{coll: db.Collection(usersCollection)},
		Categories: &CategoryRepo{coll: db.Collection(categoriesCollection)},
		Products:   &ProductRepo{coll: db.Collection(productsCollection)},
		Carts:      &CartRepo{coll: db.Collection(cartsCollection)},
		Orders: &OrderRepo{
			coll:   db.Collection(ordersCollection),
			events: db.Collection(orderEventsCollection),
			carts:  db.Collection(cartsCollection),
		},
		Pincodes:   &PincodeRepo{coll: db.Collection(pincodesCollection)},
	}
}

// EnsureIndexes creates the unique keys the repositories rely on for duplicate detection.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
	}
	specs := map[string][]mongo.IndexModel{
		usersCollection:       {unique(bson.D{{Key: "id", Value: 1}}), unique(bson.D{{Key: "email", Value: 1}})},
		categoriesCollection:  {unique(bson.D{{Key: "id", Value: 1}})},
		productsCollection:    {unique(bson.D{{Key: "id", Value: 1}}), {Keys: bson.D{{Key: "category_id", Value: 1}}}},
		cartsCollection:       {unique(bson.D{{Key: "user_id", Value: 1}})},
		ordersCollection:      {unique(bson.D{{Key: "id", Value: 1}}), {Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}}},
		orderEventsCollection: {unique(bson.D{{Key: "id", Value: 1}}), {Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "occurred_at", Value: 1}}}},
		pincodesCollection:    {unique(bson.D{{Key: "pincode", Value: 1}})},
	}
	for name, models := range specs {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return repository.NewStorageError("mongo: create indexes on "+name, err)
		}
	}
	return nil
}

func findOne[D any](ctx context.Context, coll *mongo.Collection, filter bson.M, op string) (*D, error) {
	var doc D
	err := coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, repository.NewStorageError(op, err)
	}
	return &doc, nil
}

func insertErr(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicateKey
	}
	return repository.NewStorageError(op, err)
}

type UserRepo struct{ coll *mongo.Collection }

var _ repository.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if _, err := r.coll.InsertOne(ctx, toUserDoc(user)); err != nil {
		return insertErr("mongo: insert user", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	doc, err := findOne[userDoc](ctx, r.coll, bson.M{"id": id}, "mongo: get user")
	if doc == nil {
		return nil, err
	}
	return doc.model(), nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	doc, err := findOne[userDoc](ctx, r.coll, bson.M{"email": strings.ToLower(email)}, "mongo: get user by email")
	if doc == nil {
		return nil, err
	}
	return doc.model(), nil
}

func (r *UserRepo) AddAddress(ctx context.Context, userID string, addr *model.Address) error {
	if addr.ID == "" {
		addr.ID = uuid.NewString()
	}
	if addr.IsDefault {
		_, err := r.coll.UpdateOne(ctx, bson.M{"id": userID},
			bson.M{"$set": bson.M{"addresses.$[].is_default": false}})
		if err != nil {
			return repository.NewStorageError("mongo: clear default address", err)
		}
	}
	_, err := r.coll.UpdateOne(ctx, bson.M{"id": userID},
		bson.M{"$push": bson.M{"addresses": toAddressDoc(*addr)}})
	return repository.NewStorageError("mongo: push address", err)
}

func (r *UserRepo) DeleteAddress(ctx context.Context, userID, addressID string) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"id": userID},
		bson.M{"$pull": bson.M{"addresses": bson.M{"id": addressID}}})
	return repository.NewStorageError("mongo: pull address", err)
}

type CategoryRepo struct{ coll *mongo.Collection }

var _ repository.CategoryRepository = (*CategoryRepo)(nil)

func (r *CategoryRepo) Create(ctx context.Context, c *model.Category) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	doc := categoryDoc{ID: c.ID, Name: c.Name, ImageURL: c.ImageURL, DisplayOrder: c.DisplayOrder}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return insertErr("mongo: insert category", err)
	}
	return nil
}

func (r *CategoryRepo) GetByID(ctx context.Context, id string) (*model.Category, error) {
	doc, err := findOne[categoryDoc](ctx, r.coll, bson.M{"id": id}, "mongo: get category")
	if doc == nil {
		return nil, err
	}
	return &model.Category{ID: doc.ID, Name: doc.Name, ImageURL: doc.ImageURL, DisplayOrder: doc.DisplayOrder}, nil
}

func (r *CategoryRepo) List(ctx context.Context) ([]model.Category, error) {
	opts := options.Find().SetSort(bson.D{{Key: "display_order", Value: 1}, {Key: "name", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, repository.NewStorageError("mongo: list categories", err)
	}
	var docs []categoryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, repository.NewStorageError("mongo: decode categories", err)
	}
	out := make([]model.Category, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.Category{ID: d.ID, Name: d.Name, ImageURL: d.ImageURL, DisplayOrder: d.DisplayOrder})
	}
	return out, nil
}

type ProductRepo struct{ coll *mongo.Collection }

var _ repository.ProductRepository = (*ProductRepo)(nil)

func (r *ProductRepo) Create(ctx context.Context, p *model.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, err := r.coll.InsertOne(ctx, toProductDoc(p)); err != nil {
		return insertErr("mongo: insert product", err)
	}
	return nil
}

func (r *ProductRepo) GetByID(ctx context.Context, id string) (*model.Product, error) {
	doc, err := findOne[productDoc](ctx, r.coll, bson.M{"id": id}, "mongo: get product")
	if doc == nil {
		return nil, err
	}
	return doc.model(), nil
}

func productFilter(f model.ProductFilter) bson.M {
	filter := bson.M{}
	if f.AvailableOnly {
		filter["is_available"] = true
	}
	if f.CategoryID != "" {
		filter["category_id"] = f.CategoryID
	}
	if f.Search != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(f.Search), "$options": "i"}
		filter["$or"] = bson.A{bson.M{"name": pattern}, bson.M{"description": pattern}}
	}
	return filter
}

func (r *ProductRepo) List(ctx context.Context, f model.ProductFilter) ([]model.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	cur, err := r.coll.Find(ctx, productFilter(f), opts)
	if err != nil {
		return nil, repository.NewStorageError("mongo: list products", err)
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, repository.NewStorageError("mongo: decode products", err)
	}
	out := make([]model.Product, 0, len(docs))
	for _, d := range docs {
		out = append(out, *d.model())
	}
	return out, nil
}

func (r *ProductRepo) Update(ctx context.Context, p *model.Product) error {
	_, err := r.coll.ReplaceOne(ctx, bson.M{"id": p.ID}, toProductDoc(p))
	return repository.NewStorageError("mongo: update product", err)
}

func (r *ProductRepo) Delete(ctx context.Context, id string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"id": id})
	return repository.NewStorageError("mongo: delete product", err)
}

type CartRepo struct{ coll *mongo.Collection }

var _ repository.CartRepository = (*CartRepo)(nil)

func (r *CartRepo) GetOrCreate(ctx context.Context, userID string) (*model.Cart, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{"$setOnInsert": bson.M{"user_id": userID, "items": bson.A{}, "updated_at": now}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc cartDoc
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"user_id": userID}, update, opts).Decode(&doc); err != nil {
		return nil, repository.NewStorageError("mongo: get or create cart", err)
	}
	return doc.model(), nil
}

func (r *CartRepo) Save(ctx context.Context, cart *model.Cart) error {
	cart.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	_, err := r.coll.ReplaceOne(ctx, bson.M{"user_id": cart.UserID}, toCartDoc(cart),
		options.Replace().SetUpsert(true))
	return repository.NewStorageError("mongo: save cart", err)
}

type OrderRepo struct {
	coll   *mongo.Collection
	events *mongo.Collection
	carts  *mongo.Collection
}

var _ repository.OrderRepository = (*OrderRepo)(nil)

func (r *OrderRepo) Create(ctx context.Context, order *model.Order) error {
	if _, err := r.coll.InsertOne(ctx, toOrderDoc(order)); err != nil {
		return insertErr("mongo: insert order", err)
	}
	return nil
}

// Place inserts the order, then empties the cart. Multi-document transactions need a replica
// set, so a failed cart write is undone by deleting the order instead.
func (r *OrderRepo) Place(ctx context.Context, order *model.Order) error {
	if err := r.Create(ctx, order); err != nil {
		return err
	}

	_, err := r.carts.UpdateOne(ctx, bson.M{"user_id": order.UserID}, bson.M{"$set": bson.M{
		"items":      bson.A{},
		"updated_at": order.CreatedAt,
	}})
	if err == nil {
		return nil
	}

	undoCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, undoErr := r.coll.DeleteOne(undoCtx, bson.M{"id": order.ID}); undoErr != nil {
		return repository.NewStorageError("mongo: clear cart", errors.Join(err, undoErr))
	}
	return repository.NewStorageError("mongo: clear cart", err)
}

func (r *OrderRepo) GetByID(ctx context.Context, id string) (*model.Order, error) {
	doc, err := findOne[orderDoc](ctx, r.coll, bson.M{"id": id}, "mongo: get order")
	if doc == nil {
		return nil, err
	}
	return doc.model(), nil
}

func (r *OrderRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]model.Order, error) {
	return r.list(ctx, bson.M{"user_id": userID}, limit)
}

func (r *OrderRepo) ListAll(ctx context.Context, limit int) ([]model.Order, error) {
	return r.list(ctx, bson.M{}, limit)
}

func (r *OrderRepo) list(ctx context.Context, filter bson.M, limit int) ([]model.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, repository.NewStorageError("mongo: list orders", err)
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, repository.NewStorageError("mongo: decode orders", err)
	}
	out := make([]model.Order, 0, len(docs))
	for _, d := range docs {
		out = append(out, *d.model())
	}
	return out, nil
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, status model.OrderStatus, at time.Time) (bool, error) {
	res, err := r.coll.UpdateOne(ctx, bson.M{"id": id},
		bson.M{"$set": bson.M{"status": string(status), "updated_at": at}})
	if err != nil {
		return false, repository.NewStorageError("mongo: update order status", err)
	}
	return res.MatchedCount > 0, nil
}

func (r *OrderRepo) AppendEvent(ctx context.Context, e *model.OrderEvent) error {
	doc := orderEventDoc{
		ID: e.ID, Type: e.Type, OrderID: e.OrderID, UserID: e.UserID, Status: string(e.Status),
		PreviousStatus: string(e.PreviousStatus), ActorID: e.ActorID, OccurredAt: e.OccurredAt,
	}
	if _, err := r.events.InsertOne(ctx, doc); err != nil {
		return insertErr("mongo: insert order event", err)
	}
	return nil
}

func (r *OrderRepo) ListEvents(ctx context.Context, orderID string) ([]model.OrderEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}})
	cur, err := r.events.Find(ctx, bson.M{"order_id": orderID}, opts)
	if err != nil {
		return nil, repository.NewStorageError("mongo: list order events", err)
	}
	var docs []orderEventDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, repository.NewStorageError("mongo: decode order events", err)
	}
	out := make([]model.OrderEvent, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.OrderEvent{
			ID: d.ID, Type: d.Type, OrderID: d.OrderID, UserID: d.UserID, Status: model.OrderStatus(d.Status),
			PreviousStatus: model.OrderStatus(d.PreviousStatus), ActorID: d.ActorID, OccurredAt: d.OccurredAt,
		})
	}
	return out, nil
}

type PincodeRepo struct{ coll *mongo.Collection }

var _ repository.PincodeRepository = (*PincodeRepo)(nil)

func (r *PincodeRepo) Get(ctx context.Context, pincode string) (*model.Pincode, error) {
	doc, err := findOne[pincodeDoc](ctx, r.coll, bson.M{"pincode": pincode}, "mongo: get pincode")
	if doc == nil {
		return nil, err
	}
	return &model.Pincode{Pincode: doc.Pincode, City: doc.City, IsServiceable: doc.IsServiceable}, nil
}

func (r *PincodeRepo) Upsert(ctx context.Context, p *model.Pincode) error {
	doc := pincodeDoc{Pincode: p.Pincode, City: p.City, IsServiceable: p.IsServiceable}
	_, err := r.coll.ReplaceOne(ctx, bson.M{"pincode": p.Pincode}, doc, options.Replace().SetUpsert(true))
	return repository.NewStorageError("mongo: upsert pincode", err)
}
