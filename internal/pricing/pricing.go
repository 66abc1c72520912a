// Package pricing derives cart totals, savings and discounts from catalog prices.
// Everything here is a pure function of its inputs.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/flicky/flashmart-api/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Line is a priced cart line.
type Line struct {
	Product  *model.Product
	Quantity int
	Subtotal decimal.Decimal
	Savings  decimal.Decimal
}

// Summary aggregates the priced lines of a cart.
type Summary struct {
	Lines     []Line
	Total     decimal.Decimal
	Savings   decimal.Decimal
	ItemCount int
	// Excluded lists product ids of cart lines that no longer resolve.
	Excluded []string
}

// DiscountPercent is floor((mrp-price)/mrp*100), or 0 when mrp <= price or mrp is zero.
func DiscountPercent(price, mrp decimal.Decimal) int {
	if !mrp.IsPositive() || mrp.LessThanOrEqual(price) {
		return 0
	}
	q, _ := mrp.Sub(price).Mul(hundred).QuoRem(mrp, 0)
	return int(q.IntPart())
}

// LineSubtotal is price x quantity.
func LineSubtotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// LineSavings is (mrp-price) x quantity, never negative.
func LineSavings(price, mrp decimal.Decimal, quantity int) decimal.Decimal {
	diff := mrp.Sub(price)
	if !diff.IsPositive() {
		return decimal.Zero
	}
	return diff.Mul(decimal.NewFromInt(int64(quantity)))
}

// Price prices the cart against products, keyed by product id. Lines without a
// product entry are left out of every aggregate and reported in Excluded.
// ItemCount is the number of distinct priced lines, not the sum of quantities.
func Price(cart *model.Cart, products map[string]*model.Product) Summary {
	s := Summary{Total: decimal.Zero, Savings: decimal.Zero, Lines: []Line{}}
	if cart == nil {
		return s
	}
	for _, cl := range cart.Lines {
		p, ok := products[cl.ProductID]
		if !ok || p == nil {
			s.Excluded = append(s.Excluded, cl.ProductID)
			continue
		}
		line := Line{
			Product:  p,
			Quantity: cl.Quantity,
			Subtotal: LineSubtotal(p.Price, cl.Quantity),
			Savings:  LineSavings(p.Price, p.MRP, cl.Quantity),
		}
		s.Lines = append(s.Lines, line)
		s.Total = s.Total.Add(line.Subtotal)
		s.Savings = s.Savings.Add(line.Savings)
	}
	s.ItemCount = len(s.Lines)
	return s
}
