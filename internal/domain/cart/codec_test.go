package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_StorefrontLayout(t *testing.T) {
	data := []byte(`[
		{"product":{"id":3,"name":"Tea","special_price":"120.00","mrp_price":"150.00","tag":"new","categories":["drinks"]},"quantity":2},
		{"product":{"id":"4","name":"Box","special_price":45.5,"mrp_price":null},"quantity":"1"}
	]`)

	items, dropped, err := Decode(data)
	require.NoError(t, err)
	assert.Zero(t, dropped)
	require.Len(t, items, 2)

	assert.Equal(t, int64(3), items[0].Product.ID)
	assert.Equal(t, "Tea", items[0].Product.Name)
	assert.Equal(t, "120.00", items[0].Product.SpecialPrice)
	assert.Equal(t, 2, items[0].Quantity)

	assert.Equal(t, int64(4), items[1].Product.ID)
	assert.Equal(t, "45.5", items[1].Product.SpecialPrice)
	assert.Empty(t, items[1].Product.MRPPrice)
	assert.Equal(t, 1, items[1].Quantity)
}

func TestDecode_DropsInvalidLines(t *testing.T) {
	data := []byte(`[
		{"product":null,"quantity":1},
		{"product":{"id":5,"special_price":"10"},"quantity":0},
		{"product":{"id":6,"special_price":"10"},"quantity":1}
	]`)

	items, dropped, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)
	require.Len(t, items, 1)
	assert.Equal(t, int64(6), items[0].Product.ID)
}

func TestDecode_Malformed(t *testing.T) {
	for _, data := range []string{`{`, `{"items":[]}`, `[{"product":{"id":true}}]`, ``} {
		_, _, err := Decode([]byte(data))
		assert.Error(t, err, "input %q", data)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	in := []LineItem{
		{Product: Product{ID: 1, Name: "Soap", SpecialPrice: "80.00", MRPPrice: "100.00", ImageURL: "soap.jpg"}, Quantity: 2},
		{Product: Product{ID: -42, Name: "Custom box", SpecialPrice: "499.00"}, Quantity: 1},
	}

	out, dropped, err := Decode(Encode(in))
	require.NoError(t, err)
	assert.Zero(t, dropped)
	assert.Equal(t, in, out)
}
