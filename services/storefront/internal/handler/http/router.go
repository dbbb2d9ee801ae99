package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/services/storefront/internal/service"
)

// RouterDeps carries everything the router mounts.
type RouterDeps struct {
	Store   *service.CartStore
	Mirror  *service.CartMirror
	Catalog CatalogReader
	Toast   Notifier
	Health  *health.Handler
	Logger  *slog.Logger

	// DebugRoutes mounts the cart inspector. Development only.
	DebugRoutes bool
	PprofCIDRs  []string
	CORSOrigins []string
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(d RouterDeps) http.Handler {
	logger := orDefault(d.Logger)
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(d.CORSOrigins)))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("storefront"))
	r.Use(middleware.Tracing())
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", d.Health.LivenessHandler())
	r.Get("/health/ready", d.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, d.PprofCIDRs, logger)

	products := NewProductHandler(d.Catalog, d.Store, d.Toast, logger)
	cart := NewCartHandler(d.Store, d.Toast, logger)
	notifications := NewNotificationHandler(d.Toast)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Group(func(r chi.Router) {
			r.Use(middleware.CacheControl(60))
			r.Get("/products", products.ListProducts)
			r.Get("/products/{id}", products.GetProduct)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.NoStore)

			r.Post("/products/{id}/cart", products.AddToCart)

			r.Get("/cart", cart.GetCart)
			r.Delete("/cart", cart.ClearCart)
			r.Post("/cart/items", cart.AddItem)
			r.Put("/cart/items/{id}", cart.SetQuantity)
			r.Delete("/cart/items/{id}", cart.RemoveItem)

			r.Get("/notification", notifications.Current)
			r.Delete("/notification", notifications.Dismiss)

			if d.DebugRoutes && d.Mirror != nil {
				debug := NewDebugHandler(d.Store, d.Mirror, logger)
				r.Get("/debug/cart", debug.Cart)
				r.Post("/debug/cart/storage/clear", debug.ClearStorage)
			}
		})
	})

	return r
}
