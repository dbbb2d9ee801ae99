package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/services/storefront/internal/domain"
	"github.com/utafrali/storefront/services/storefront/internal/notify"
	"github.com/utafrali/storefront/services/storefront/internal/repository/memory"
	"github.com/utafrali/storefront/services/storefront/internal/service"
)

// ============================================================================
// Mock catalog
// ============================================================================

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) GetProduct(ctx context.Context, id int) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockCatalog) ListProducts(ctx context.Context, limit, skip int) (*domain.ProductsPage, error) {
	args := m.Called(ctx, limit, skip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProductsPage), args.Error(1)
}

func (m *mockCatalog) SearchProducts(ctx context.Context, query string, limit, skip int) (*domain.ProductsPage, error) {
	args := m.Called(ctx, query, limit, skip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProductsPage), args.Error(1)
}

// ============================================================================
// Test helpers
// ============================================================================

type testEnv struct {
	router  http.Handler
	store   *service.CartStore
	mirror  *service.CartMirror
	kv      *memory.KVStore
	catalog *mockCatalog
	toast   *notify.Toast
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, debug bool) *testEnv {
	t.Helper()
	kv := memory.NewKVStore()
	mirror := service.NewCartMirror(kv, service.MirrorConfig{Key: "cart", WriteTimeout: time.Second}, testLogger())
	t.Cleanup(func() { _ = mirror.Close(context.Background()) })

	store := service.NewCartStore(mirror, testLogger())
	store.Subscribe(mirror.OnChange)
	store.Init(context.Background())

	catalog := new(mockCatalog)
	toast := notify.NewToast(time.Minute)

	router := NewRouter(RouterDeps{
		Store:       store,
		Mirror:      mirror,
		Catalog:     catalog,
		Toast:       toast,
		Health:      health.NewHandler(),
		Logger:      testLogger(),
		DebugRoutes: debug,
		PprofCIDRs:  []string{"127.0.0.1/32"},
		CORSOrigins: []string{"http://localhost:3000"},
	})

	return &testEnv{router: router, store: store, mirror: mirror, kv: kv, catalog: catalog, toast: toast}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.mirror.Flush(ctx))
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) domain.CartState {
	t.Helper()
	env := decode(t, rec)
	require.Nil(t, env.Error)
	var st domain.CartState
	require.NoError(t, json.Unmarshal(env.Data, &st))
	return st
}

func sampleProduct() *domain.Product {
	return &domain.Product{
		ID:          1,
		Title:       "Essence Mascara",
		Description: "Popular mascara",
		Price:       9.99,
		Stock:       5,
		Category:    "beauty",
		Thumbnail:   "https://cdn.example.com/1.png",
		Images:      []string{"https://cdn.example.com/1a.png"},
	}
}

func toastText(t *testing.T, toast *notify.Toast) string {
	t.Helper()
	m, ok := toast.Current()
	if !ok {
		return ""
	}
	return m.Text
}
