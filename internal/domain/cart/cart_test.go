package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProduct(id int64, price string) Product {
	return Product{ID: id, Name: "Product", SpecialPrice: price, MRPPrice: price}
}

func TestCart_AddMergesQuantity(t *testing.T) {
	c := New(nil)

	require.NoError(t, c.Add(newTestProduct(1, "100"), 1))
	require.NoError(t, c.Add(newTestProduct(2, "50"), 2))
	require.NoError(t, c.Add(newTestProduct(1, "100"), 3))

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, int64(1), items[0].Product.ID)
	assert.Equal(t, 4, items[0].Quantity)
	assert.Equal(t, 2, items[1].Quantity)
}

func TestCart_AddRejectsNonPositiveQuantity(t *testing.T) {
	c := New(nil)

	require.ErrorIs(t, c.Add(newTestProduct(1, "10"), 0), ErrInvalidQuantity)
	require.ErrorIs(t, c.Add(newTestProduct(1, "10"), -2), ErrInvalidQuantity)
	assert.Zero(t, c.Len())
}

func TestCart_UpdateQuantity(t *testing.T) {
	tests := []struct {
		name      string
		productID int64
		quantity  int
		wantFound bool
		wantItems int
		wantQty   int
	}{
		{name: "sets quantity", productID: 1, quantity: 5, wantFound: true, wantItems: 1, wantQty: 5},
		{name: "zero removes", productID: 1, quantity: 0, wantFound: true, wantItems: 0},
		{name: "negative removes", productID: 1, quantity: -1, wantFound: true, wantItems: 0},
		{name: "unknown product is a no-op", productID: 9, quantity: 3, wantFound: false, wantItems: 1, wantQty: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New([]LineItem{{Product: newTestProduct(1, "10"), Quantity: 2}})

			found := c.UpdateQuantity(tt.productID, tt.quantity)

			assert.Equal(t, tt.wantFound, found)
			require.Equal(t, tt.wantItems, c.Len())
			if tt.wantItems > 0 {
				assert.Equal(t, tt.wantQty, c.Items()[0].Quantity)
			}
		})
	}
}

func TestCart_Remove(t *testing.T) {
	c := New([]LineItem{
		{Product: newTestProduct(1, "10"), Quantity: 1},
		{Product: newTestProduct(2, "20"), Quantity: 1},
	})

	assert.False(t, c.Remove(3))
	assert.True(t, c.Remove(1))
	require.Equal(t, 1, c.Len())
	assert.Equal(t, int64(2), c.Items()[0].Product.ID)
}

func TestCart_ItemsTotal(t *testing.T) {
	c := New([]LineItem{
		{Product: newTestProduct(1, "100.50"), Quantity: 2},
		{Product: newTestProduct(2, "not-a-price"), Quantity: 3},
		{Product: newTestProduct(-7, "99"), Quantity: 1},
	})

	assert.True(t, decimal.RequireFromString("300").Equal(c.ItemsTotal()), "got %s", c.ItemsTotal())
}

func TestCart_ItemsReturnsCopy(t *testing.T) {
	c := New([]LineItem{{Product: newTestProduct(1, "10"), Quantity: 1}})

	items := c.Items()
	items[0].Quantity = 100

	assert.Equal(t, 1, c.Items()[0].Quantity)
}

func TestSanitize(t *testing.T) {
	items, dropped := Sanitize([]LineItem{
		{Product: newTestProduct(0, "10"), Quantity: 1},
		{Product: newTestProduct(1, "10"), Quantity: 0},
		{Product: newTestProduct(2, "10"), Quantity: 1},
		{Product: newTestProduct(2, "10"), Quantity: 2},
	})

	assert.Equal(t, 2, dropped)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestProduct_IsCustomBox(t *testing.T) {
	assert.True(t, Product{ID: -1700000000}.IsCustomBox())
	assert.False(t, Product{ID: 12}.IsCustomBox())
}
