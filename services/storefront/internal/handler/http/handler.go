package http

import (
	"context"
	"log/slog"

	"github.com/utafrali/storefront/services/storefront/internal/domain"
	"github.com/utafrali/storefront/services/storefront/internal/notify"
)

// CatalogReader is the read side of the product catalog.
type CatalogReader interface {
	GetProduct(ctx context.Context, id int) (*domain.Product, error)
	ListProducts(ctx context.Context, limit, skip int) (*domain.ProductsPage, error)
	SearchProducts(ctx context.Context, query string, limit, skip int) (*domain.ProductsPage, error)
}

// Notifier shows transient messages to the shopper.
type Notifier interface {
	Show(text string, kind notify.Kind) notify.Message
	Hide()
	Current() (notify.Message, bool)
}

// Toast texts.
func addedMessage(title string) string   { return title + " added to cart!" }
func removedMessage(title string) string { return title + " removed from cart" }

const clearedMessage = "Cart cleared"

func orDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
