package domain

// LineItem is one product in the cart. Title, price and thumbnail are
// captured when the product is first added and never refreshed.
type LineItem struct {
	ID        int     `json:"id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Thumbnail string  `json:"thumbnail"`
	Quantity  int     `json:"quantity"`
}

// Subtotal returns price × quantity for the line.
func (i LineItem) Subtotal() float64 {
	return i.Price * float64(i.Quantity)
}

// ProductRef is the subset of a product needed to add it to the cart.
type ProductRef struct {
	ID        int     `json:"id" validate:"required,gte=1"`
	Title     string  `json:"title" validate:"required"`
	Price     float64 `json:"price" validate:"gte=0"`
	Thumbnail string  `json:"thumbnail"`
}

// CartState is an immutable snapshot of the cart. Transitions return a new
// state; the receiver is never modified.
type CartState struct {
	Items      []LineItem `json:"items"`
	TotalItems int        `json:"totalItems"`
	TotalPrice float64    `json:"totalPrice"`
}

// EmptyCart returns a cart with no items and zero totals.
func EmptyCart() CartState {
	return CartState{Items: []LineItem{}}
}

// newState takes ownership of items and recomputes both totals from them.
func newState(items []LineItem) CartState {
	s := CartState{Items: items}
	for _, it := range items {
		s.TotalItems += it.Quantity
		s.TotalPrice += it.Subtotal()
	}
	return s
}

// Clone returns a deep copy of the state.
func (s CartState) Clone() CartState {
	items := make([]LineItem, len(s.Items))
	copy(items, s.Items)
	return CartState{Items: items, TotalItems: s.TotalItems, TotalPrice: s.TotalPrice}
}

// IsEmpty reports whether the cart has no lines.
func (s CartState) IsEmpty() bool {
	return len(s.Items) == 0
}

// Find returns the line with the given product id.
func (s CartState) Find(id int) (LineItem, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.Items[i], true
	}
	return LineItem{}, false
}

func (s CartState) indexOf(id int) int {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// AddItem increments the quantity of an existing line, keeping its captured
// display data, or appends a new line with quantity 1.
func (s CartState) AddItem(ref ProductRef) CartState {
	items := s.Clone().Items
	if i := s.indexOf(ref.ID); i >= 0 {
		items[i].Quantity++
		return newState(items)
	}
	items = append(items, LineItem{
		ID:        ref.ID,
		Title:     ref.Title,
		Price:     ref.Price,
		Thumbnail: ref.Thumbnail,
		Quantity:  1,
	})
	return newState(items)
}

// RemoveItem deletes the line with the given id. Unknown ids leave the
// state unchanged.
func (s CartState) RemoveItem(id int) CartState {
	i := s.indexOf(id)
	if i < 0 {
		return s.Clone()
	}
	items := make([]LineItem, 0, len(s.Items)-1)
	items = append(items, s.Items[:i]...)
	items = append(items, s.Items[i+1:]...)
	return newState(items)
}

// SetQuantity sets an absolute quantity. A quantity of zero or less removes
// the line.
func (s CartState) SetQuantity(id, quantity int) CartState {
	if quantity <= 0 {
		return s.RemoveItem(id)
	}
	i := s.indexOf(id)
	if i < 0 {
		return s.Clone()
	}
	items := s.Clone().Items
	items[i].Quantity = quantity
	return newState(items)
}

// LoadCart replaces the whole cart with items. Lines with a non-positive
// quantity are dropped and a repeated id keeps its first position.
func LoadCart(items []LineItem) CartState {
	out := make([]LineItem, 0, len(items))
	seen := make(map[int]struct{}, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return newState(out)
}
