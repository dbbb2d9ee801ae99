package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/validator"
)

// persistedItem mirrors LineItem with pointer fields so that a missing key
// can be told apart from a zero value.
type persistedItem struct {
	ID        *int     `json:"id" validate:"required,gte=1"`
	Title     *string  `json:"title" validate:"required"`
	Price     *float64 `json:"price" validate:"required,gte=0"`
	Thumbnail *string  `json:"thumbnail" validate:"required"`
	Quantity  *int     `json:"quantity" validate:"required,gte=1"`
}

// EncodeItems renders items in the persisted form: a JSON array of line items.
func EncodeItems(items []LineItem) (string, error) {
	if items == nil {
		items = []LineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode cart items: %w", err)
	}
	return string(data), nil
}

// DecodeItems parses the persisted form. Anything that is not an array of
// complete, valid line items with unique ids is reported as corruption.
func DecodeItems(raw string) ([]LineItem, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, apperrors.Corrupted("decode cart items", errors.New("top-level value is not an array"))
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()

	var wire []persistedItem
	if err := dec.Decode(&wire); err != nil {
		return nil, apperrors.Corrupted("decode cart items", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, apperrors.Corrupted("decode cart items", errors.New("trailing data after array"))
	}

	items := make([]LineItem, 0, len(wire))
	seen := make(map[int]struct{}, len(wire))
	for i, w := range wire {
		if err := validator.Validate(w); err != nil {
			return nil, apperrors.Corrupted("decode cart items", fmt.Errorf("item %d: %w", i, err))
		}
		if _, dup := seen[*w.ID]; dup {
			return nil, apperrors.Corrupted("decode cart items", fmt.Errorf("item %d: duplicate id %d", i, *w.ID))
		}
		seen[*w.ID] = struct{}{}
		items = append(items, LineItem{
			ID:        *w.ID,
			Title:     *w.Title,
			Price:     *w.Price,
			Thumbnail: *w.Thumbnail,
			Quantity:  *w.Quantity,
		})
	}
	return items, nil
}
