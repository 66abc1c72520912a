package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flicky/flashmart-api/internal/model"
	"github.com/flicky/flashmart-api/internal/repository"
)

func TestOrderDoc_BSONRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	order := &model.Order{
		ID: "ABCD1234", UserID: "u1",
		Items: []model.OrderLine{{ProductID: "p1", Name: "Milk", Price: decimal.NewFromInt(28),
			Quantity: 2, Subtotal: decimal.NewFromInt(56)}},
		Address:       model.AddressSnapshot{FullName: "John", City: "Pune", Pincode: "411001"},
		Total:         decimal.NewFromInt(56),
		PaymentMethod: "COD", Status: model.OrderStatusConfirmed,
		CreatedAt: now, EstimatedDelivery: now.Add(15 * time.Minute), UpdatedAt: now,
	}

	raw, err := bson.Marshal(toOrderDoc(order))
	require.NoError(t, err)
	var doc orderDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))
	got := doc.model()

	assert.Equal(t, order.ID, got.ID)
	assert.Equal(t, order.Address, got.Address)
	assert.True(t, order.Total.Equal(got.Total))
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Subtotal.Equal(decimal.NewFromInt(56)))
	assert.True(t, order.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, model.OrderStatusConfirmed, got.Status)
}

func TestCartDoc_DecimalsSurvive(t *testing.T) {
	cart := &model.Cart{UserID: "u1", Lines: []model.CartLine{
		{ProductID: "p1", Quantity: 3, Name: "Bread", Price: decimal.RequireFromString("42.50")},
	}}
	raw, err := bson.Marshal(toCartDoc(cart))
	require.NoError(t, err)
	var doc cartDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))

	got := doc.model()
	require.Len(t, got.Lines, 1)
	assert.True(t, got.Lines[0].Price.Equal(decimal.RequireFromString("42.5")))
	assert.Equal(t, 3, got.Lines[0].Quantity)
}

func TestProductFilter(t *testing.T) {
	f := productFilter(model.ProductFilter{CategoryID: "c1", Search: "a.b", AvailableOnly: true})
	assert.Equal(t, true, f["is_available"])
	assert.Equal(t, "c1", f["category_id"])
	or, ok := f["$or"].(bson.A)
	require.True(t, ok)
	assert.Equal(t, `a\.b`, or[0].(bson.M)["name"].(bson.M)["$regex"])

	assert.Empty(t, productFilter(model.ProductFilter{}))
}

func testDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)

	db := client.Database("flashmart_test_" + uuid.NewString()[:8])
	require.NoError(t, EnsureIndexes(ctx, db))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func TestStore_Integration(t *testing.T) {
	db := testDatabase(t)
	store := NewStore(db)
	ctx := context.Background()

	user := &model.User{Name: "John", Email: "John@Example.com", Password: "h"}
	require.NoError(t, store.Users.Create(ctx, user))
	assert.ErrorIs(t, store.Users.Create(ctx, &model.User{Email: "john@example.com"}), repository.ErrDuplicateKey)

	require.NoError(t, store.Users.AddAddress(ctx, user.ID, &model.Address{City: "Pune", IsDefault: true}))
	require.NoError(t, store.Users.AddAddress(ctx, user.ID, &model.Address{City: "Delhi", IsDefault: true}))
	found, err := store.Users.GetByEmail(ctx, "john@example.com")
	require.NoError(t, err)
	require.Len(t, found.Addresses, 2)
	assert.False(t, found.Addresses[0].IsDefault)
	assert.True(t, found.Addresses[1].IsDefault)

	cart, err := store.Carts.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Lines)
	cart.Lines = []model.CartLine{{ProductID: "p1", Quantity: 2, Name: "Milk", Price: decimal.NewFromInt(28)}}
	require.NoError(t, store.Carts.Save(ctx, cart))
	cart, err = store.Carts.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)

	now := time.Now().UTC().Truncate(time.Millisecond)
	order := &model.Order{ID: "ABCD1234", UserID: user.ID, Total: decimal.NewFromInt(56),
		Status: model.OrderStatusConfirmed, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.Orders.Create(ctx, order))
	assert.ErrorIs(t, store.Orders.Create(ctx, order), repository.ErrDuplicateKey)

	ok, err := store.Orders.UpdateStatus(ctx, order.ID, model.OrderStatusPreparing, now)
	require.NoError(t, err)
	assert.True(t, ok)

	event := &model.OrderEvent{ID: "e1", Type: model.EventOrderPlaced, OrderID: order.ID, OccurredAt: now}
	require.NoError(t, store.Orders.AppendEvent(ctx, event))
	assert.ErrorIs(t, store.Orders.AppendEvent(ctx, event), repository.ErrDuplicateKey)

	placed := &model.Order{ID: "PLACE001", UserID: user.ID, Total: decimal.NewFromInt(56),
		Status: model.OrderStatusConfirmed, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.Orders.Place(ctx, placed))
	cart, err = store.Carts.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Lines)
	assert.ErrorIs(t, store.Orders.Place(ctx, placed), repository.ErrDuplicateKey)

	missing, err := store.Orders.GetByID(ctx, "MISSING1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
