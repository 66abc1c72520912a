package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/flicky/flashmart-api/internal/model"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestDiscountPercent(t *testing.T) {
	assert.Equal(t, 6, DiscountPercent(d(28), d(30)))
	assert.Equal(t, 10, DiscountPercent(d(45), d(50)))
	assert.Equal(t, 0, DiscountPercent(d(30), d(30)))
	assert.Equal(t, 0, DiscountPercent(d(35), d(30)))
	assert.Equal(t, 0, DiscountPercent(d(0), d(0)))
	assert.Equal(t, 33, DiscountPercent(d(20), d(30)))
	assert.Equal(t, 50, DiscountPercent(decimal.RequireFromString("0.5"), d(1)))
}

func TestPrice_Example(t *testing.T) {
	cart := &model.Cart{UserID: "u1", Lines: []model.CartLine{
		{ProductID: "A", Quantity: 1},
		{ProductID: "B", Quantity: 2},
	}}
	products := map[string]*model.Product{
		"A": {ID: "A", Price: d(320), MRP: d(320)},
		"B": {ID: "B", Price: d(28), MRP: d(30)},
	}

	s := Price(cart, products)
	assert.True(t, s.Total.Equal(d(376)), "total %s", s.Total)
	assert.True(t, s.Savings.Equal(d(4)), "savings %s", s.Savings)
	assert.Equal(t, 2, s.ItemCount)
	assert.Empty(t, s.Excluded)
	assert.True(t, s.Lines[1].Subtotal.Equal(d(56)))
}

func TestPrice_ItemCountIsDistinctLines(t *testing.T) {
	cart := &model.Cart{Lines: []model.CartLine{{ProductID: "A", Quantity: 7}}}
	s := Price(cart, map[string]*model.Product{"A": {Price: d(10), MRP: d(10)}})
	assert.Equal(t, 1, s.ItemCount)
	assert.True(t, s.Total.Equal(d(70)))
}

func TestPrice_DanglingLinesExcluded(t *testing.T) {
	cart := &model.Cart{Lines: []model.CartLine{
		{ProductID: "A", Quantity: 1},
		{ProductID: "gone", Quantity: 3},
	}}
	s := Price(cart, map[string]*model.Product{"A": {Price: d(10), MRP: d(12)}})
	assert.Equal(t, 1, s.ItemCount)
	assert.Len(t, s.Lines, 1)
	assert.True(t, s.Total.Equal(d(10)))
	assert.True(t, s.Savings.Equal(d(2)))
	assert.Equal(t, []string{"gone"}, s.Excluded)
}

func TestLineSavings_NeverNegative(t *testing.T) {
	assert.True(t, LineSavings(d(40), d(30), 3).IsZero())
}
