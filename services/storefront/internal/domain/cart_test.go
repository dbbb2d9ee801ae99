package domain

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mascara() ProductRef {
	return ProductRef{ID: 1, Title: "Essence Mascara", Price: 9.99, Thumbnail: "https://cdn.example.com/1.png"}
}

func lipstick() ProductRef {
	return ProductRef{ID: 2, Title: "Red Lipstick", Price: 12.5, Thumbnail: "https://cdn.example.com/2.png"}
}

// ============================================================================
// AddItem
// ============================================================================

func TestAddItem_NewLine(t *testing.T) {
	s := EmptyCart().AddItem(mascara())

	require.Len(t, s.Items, 1)
	assert.Equal(t, LineItem{ID: 1, Title: "Essence Mascara", Price: 9.99, Thumbnail: "https://cdn.example.com/1.png", Quantity: 1}, s.Items[0])
	assert.Equal(t, 1, s.TotalItems)
	assert.InDelta(t, 9.99, s.TotalPrice, 1e-9)
}

func TestAddItem_TwiceIncrementsQuantity(t *testing.T) {
	s := EmptyCart().AddItem(mascara()).AddItem(mascara())

	require.Len(t, s.Items, 1)
	assert.Equal(t, 2, s.Items[0].Quantity)
	assert.Equal(t, 2, s.TotalItems)
	assert.InDelta(t, 19.98, s.TotalPrice, 1e-9)
}

func TestAddItem_KeepsCapturedDisplayData(t *testing.T) {
	s := EmptyCart().AddItem(mascara())

	changed := mascara()
	changed.Title = "Renamed"
	changed.Price = 100
	s = s.AddItem(changed)

	require.Len(t, s.Items, 1)
	assert.Equal(t, "Essence Mascara", s.Items[0].Title)
	assert.Equal(t, 9.99, s.Items[0].Price)
	assert.Equal(t, 2, s.Items[0].Quantity)
}

func TestAddItem_PreservesInsertionOrder(t *testing.T) {
	s := EmptyCart().AddItem(mascara()).AddItem(lipstick()).AddItem(mascara())

	require.Len(t, s.Items, 2)
	assert.Equal(t, 1, s.Items[0].ID)
	assert.Equal(t, 2, s.Items[1].ID)
}

func TestAddItem_DoesNotMutateReceiver(t *testing.T) {
	before := EmptyCart().AddItem(mascara())
	after := before.AddItem(mascara())

	assert.Equal(t, 1, before.Items[0].Quantity)
	assert.Equal(t, 2, after.Items[0].Quantity)
}

// ============================================================================
// RemoveItem / SetQuantity
// ============================================================================

func TestRemoveItem_Present(t *testing.T) {
	s := EmptyCart().AddItem(mascara()).AddItem(lipstick()).RemoveItem(1)

	require.Len(t, s.Items, 1)
	assert.Equal(t, 2, s.Items[0].ID)
	assert.Equal(t, 1, s.TotalItems)
	assert.InDelta(t, 12.5, s.TotalPrice, 1e-9)
}

func TestRemoveItem_AbsentIsNoop(t *testing.T) {
	s := EmptyCart().AddItem(mascara())
	assert.Equal(t, s, s.RemoveItem(42))
}

func TestSetQuantity_Absolute(t *testing.T) {
	s := EmptyCart().AddItem(mascara()).AddItem(lipstick()).SetQuantity(1, 5)

	assert.Equal(t, 5, s.Items[0].Quantity)
	assert.Equal(t, 1, s.Items[0].ID, "position is kept")
	assert.Equal(t, 6, s.TotalItems)
	assert.InDelta(t, 5*9.99+12.5, s.TotalPrice, 1e-9)
}

func TestSetQuantity_ZeroOrNegativeRemoves(t *testing.T) {
	for _, q := range []int{0, -1, -100} {
		s := EmptyCart().AddItem(mascara()).SetQuantity(1, q)
		assert.True(t, s.IsEmpty(), "quantity %d", q)
		assert.Equal(t, 0, s.TotalItems)
		assert.Zero(t, s.TotalPrice)
	}
}

func TestSetQuantity_AbsentIsNoop(t *testing.T) {
	s := EmptyCart().AddItem(mascara())
	assert.Equal(t, s, s.SetQuantity(99, 3))
}

// ============================================================================
// LoadCart
// ============================================================================

func TestLoadCart_ReplacesWholesale(t *testing.T) {
	items := []LineItem{
		{ID: 7, Title: "A", Price: 2, Quantity: 3},
		{ID: 3, Title: "B", Price: 1.5, Quantity: 2},
	}
	s := LoadCart(items)

	assert.Equal(t, items, s.Items)
	assert.Equal(t, 5, s.TotalItems)
	assert.InDelta(t, 9.0, s.TotalPrice, 1e-9)
}

func TestLoadCart_DropsInvalidLines(t *testing.T) {
	s := LoadCart([]LineItem{
		{ID: 1, Quantity: 0},
		{ID: 2, Price: 1, Quantity: 1},
		{ID: 2, Price: 5, Quantity: 4},
		{ID: 3, Quantity: -2},
	})

	require.Len(t, s.Items, 1)
	assert.Equal(t, 2, s.Items[0].ID)
	assert.Equal(t, 1, s.Items[0].Quantity)
	assert.Equal(t, 1, s.TotalItems)
}

func TestLoadCart_Empty(t *testing.T) {
	s := LoadCart(nil)
	assert.NotNil(t, s.Items)
	assert.True(t, s.IsEmpty())
}

// ============================================================================
// Clone / Find
// ============================================================================

func TestClone_IsDeep(t *testing.T) {
	s := EmptyCart().AddItem(mascara())
	c := s.Clone()
	c.Items[0].Quantity = 50

	assert.Equal(t, 1, s.Items[0].Quantity)
}

func TestFind(t *testing.T) {
	s := EmptyCart().AddItem(lipstick())

	it, ok := s.Find(2)
	require.True(t, ok)
	assert.Equal(t, "Red Lipstick", it.Title)

	_, ok = s.Find(1)
	assert.False(t, ok)
}

// ============================================================================
// Randomized invariants
// ============================================================================

// applyRandom runs n random transitions and calls check after each one.
func applyRandom(seed uint64, n int, check func(step int, s CartState)) {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	s := EmptyCart()
	for step := 0; step < n; step++ {
		id := r.IntN(6) + 1
		switch r.IntN(5) {
		case 0, 1:
			s = s.AddItem(ProductRef{ID: id, Title: "p", Price: float64(r.IntN(5000)) / 100})
		case 2:
			s = s.RemoveItem(id)
		case 3:
			s = s.SetQuantity(id, r.IntN(8)-2)
		case 4:
			if r.IntN(10) == 0 {
				s = EmptyCart()
			}
		}
		check(step, s)
	}
}

func TestInvariants_RandomSequences(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		applyRandom(seed, 300, func(step int, s CartState) {
			var items int
			var price float64
			ids := map[int]bool{}
			for _, it := range s.Items {
				require.GreaterOrEqual(t, it.Quantity, 1, "seed %d step %d", seed, step)
				require.False(t, ids[it.ID], "duplicate id %d", it.ID)
				ids[it.ID] = true
				items += it.Quantity
				price += it.Price * float64(it.Quantity)
			}
			require.Equal(t, items, s.TotalItems, "seed %d step %d", seed, step)
			require.InDelta(t, price, s.TotalPrice, 1e-6, "seed %d step %d", seed, step)
		})
	}
}

func TestProduct_Ref(t *testing.T) {
	p := Product{ID: 4, Title: "Watch", Price: 99, Thumbnail: "t.png", Stock: 3, Category: "watches"}
	assert.Equal(t, ProductRef{ID: 4, Title: "Watch", Price: 99, Thumbnail: "t.png"}, p.Ref())
}
