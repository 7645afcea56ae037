package persist

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendlyapp/selfcheckout/internal/domain"
)

func populatedRegistry() *domain.Registry {
	reg := domain.NewRegistry()
	reg.ActiveStoreID = "store-b"

	a := domain.NewStoreCart()
	a.Lines = append(a.Lines,
		domain.CartLine{Product: domain.ProductSnapshot{ID: "p1", Name: "Milk", Price: decimal.RequireFromString("1.25"), Stock: 40, Currency: "CHF"}, Quantity: 3},
		domain.CartLine{Product: domain.ProductSnapshot{ID: "p2", Name: "Bread", Price: decimal.RequireFromString("3.5"), Stock: 8, Currency: "CHF"}, Quantity: 1},
	)
	a.PromoCode = "SAVE10"
	a.PromoApplied = true
	a.Discount = &domain.DiscountDescriptor{Type: domain.DiscountPercentage, Value: decimal.NewFromInt(10)}
	a.Reconcile()
	reg.Carts["store-a"] = a

	b := domain.NewStoreCart()
	b.Lines = append(b.Lines,
		domain.CartLine{Product: domain.ProductSnapshot{ID: "p9", Name: "Coffee", Price: decimal.RequireFromString("12"), Stock: 2, Currency: "CHF"}, Quantity: 2},
	)
	reg.Carts["store-b"] = b
	return reg
}

func TestRoundTrip(t *testing.T) {
	reg := populatedRegistry()

	data, err := Encode(reg)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, reg.ActiveStoreID, decoded.ActiveStoreID)
	require.Len(t, decoded.Carts, 2)

	for id, want := range reg.Carts {
		got := decoded.Carts[id]
		require.NotNil(t, got, id)
		require.Len(t, got.Lines, len(want.Lines))
		for i := range want.Lines {
			assert.Equal(t, want.Lines[i].Product.ID, got.Lines[i].Product.ID)
			assert.Equal(t, want.Lines[i].Product.Name, got.Lines[i].Product.Name)
			assert.Equal(t, want.Lines[i].Quantity, got.Lines[i].Quantity)
			assert.True(t, want.Lines[i].Product.Price.Equal(got.Lines[i].Product.Price))
		}
		assert.Equal(t, want.PromoCode, got.PromoCode)
		assert.Equal(t, want.PromoApplied, got.PromoApplied)
		assert.True(t, want.DiscountAmount.Equal(got.DiscountAmount))
	}

	again, err := Encode(decoded)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestDecode_DiscountSurvivesRoundTrip(t *testing.T) {
	data, err := Encode(populatedRegistry())
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	a := decoded.Carts["store-a"]
	require.NotNil(t, a.Discount)
	assert.Equal(t, domain.DiscountPercentage, a.Discount.Type)
	assert.True(t, decimal.RequireFromString("0.73").Equal(a.DiscountAmount), a.DiscountAmount.String())
}

func TestDecode_MissingFieldsTakeDefaults(t *testing.T) {
	reg, err := Decode([]byte(`{"version":1,"carts":{"store-a":{},"store-b":null}}`))
	require.NoError(t, err)

	assert.Equal(t, "", reg.ActiveStoreID)
	for _, id := range []string{"store-a", "store-b"} {
		c := reg.Carts[id]
		require.NotNil(t, c, id)
		assert.NotNil(t, c.Lines)
		assert.Empty(t, c.Lines)
		assert.False(t, c.PromoApplied)
		assert.Empty(t, c.PromoCode)
		assert.True(t, c.DiscountAmount.IsZero())
	}
}

func TestDecode_NoCarts(t *testing.T) {
	reg, err := Decode([]byte(`{"version":1,"activeStoreId":"s"}`))
	require.NoError(t, err)
	assert.NotNil(t, reg.Carts)
	assert.Equal(t, "s", reg.ActiveStoreID)
}

func TestDecode_DropsInvalidLines(t *testing.T) {
	payload := `{"version":1,"carts":{"a":{"lines":[
		{"product":{"id":"","price":"1"},"quantity":1},
		{"product":{"id":"p1","price":"2"},"quantity":0},
		{"product":{"id":"p2","price":"2"},"quantity":-3},
		{"product":{"id":"p3","price":"2"},"quantity":2}
	]}}}`

	reg, err := Decode([]byte(payload))
	require.NoError(t, err)

	lines := reg.Carts["a"].Lines
	require.Len(t, lines, 1)
	assert.Equal(t, "p3", lines[0].Product.ID)
}

func TestDecode_CollapsesDuplicateLines(t *testing.T) {
	payload := `{"version":1,"carts":{"a":{"lines":[
		{"product":{"id":"p1","price":"2"},"quantity":1},
		{"product":{"id":"p2","price":"5"},"quantity":1},
		{"product":{"id":"p1","price":"2.5"},"quantity":4}
	]}}}`

	reg, err := Decode([]byte(payload))
	require.NoError(t, err)

	lines := reg.Carts["a"].Lines
	require.Len(t, lines, 2)
	assert.Equal(t, "p1", lines[0].Product.ID)
	assert.Equal(t, 4, lines[0].Quantity)
	assert.Equal(t, "2.5", lines[0].Product.Price.String())
	assert.Equal(t, "p2", lines[1].Product.ID)
}

func TestDecode_ReconcilesStaleDiscount(t *testing.T) {
	payload := `{"version":1,"carts":{"a":{
		"lines":[{"product":{"id":"p1","price":"5"},"quantity":1}],
		"promoCode":"BIG","promoApplied":true,"discountAmount":"50",
		"discount":{"type":"fixed","value":"20"}
	}}}`

	reg, err := Decode([]byte(payload))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5).Equal(reg.Carts["a"].DiscountAmount))
}

func TestDecode_Corrupt(t *testing.T) {
	for _, payload := range []string{"", "{", "not json", `{"version":"one"}`, `[]`} {
		_, err := Decode([]byte(payload))
		assert.ErrorIs(t, err, ErrCorruptPayload, payload)
	}
}

func TestDecode_IncompatibleVersion(t *testing.T) {
	for _, payload := range []string{`{}`, `{"version":0}`, `{"version":2,"carts":{}}`} {
		_, err := Decode([]byte(payload))
		assert.ErrorIs(t, err, ErrIncompatibleVersion, payload)
	}
}

func TestEncode_NilRegistry(t *testing.T) {
	data, err := Encode(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"activeStoreId":"","carts":{}}`, string(data))
}
