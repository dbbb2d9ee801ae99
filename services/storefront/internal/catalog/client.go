package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/slug"
	"github.com/utafrali/storefront/pkg/tracing"
	"github.com/utafrali/storefront/services/storefront/internal/domain"
)

// DefaultBaseURL is the public product catalog API.
const DefaultBaseURL = "https://dummyjson.com"

const upstreamName = "catalog"

// HTTPGetter issues GET requests. httpclient.Client and
// httpclient.CircuitBreakerClient both satisfy it.
type HTTPGetter interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// Client reads products from the remote catalog. It never writes.
type Client struct {
	http    HTTPGetter
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a catalog client rooted at baseURL.
func NewClient(getter HTTPGetter, baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:    getter,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// GetProduct fetches a single product.
func (c *Client) GetProduct(ctx context.Context, id int) (*domain.Product, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.GetProduct", attribute.Int("product.id", id))
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	var p domain.Product
	err = c.getJSON(ctx, fmt.Sprintf("%s/products/%d", c.baseURL, id), &p)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("product", strconv.Itoa(id))
		}
		return nil, err
	}
	p.Slug = slug.Generate(p.Title)
	return &p, nil
}

// ListProducts fetches one page of the catalog.
func (c *Client) ListProducts(ctx context.Context, limit, skip int) (*domain.ProductsPage, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.ListProducts",
		attribute.Int("limit", limit),
		attribute.Int("skip", skip),
	)
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("skip", strconv.Itoa(skip))

	var page domain.ProductsPage
	if err = c.getJSON(ctx, c.baseURL+"/products?"+q.Encode(), &page); err != nil {
		return nil, err
	}
	return withSlugs(&page), nil
}

// SearchProducts runs a free-text catalog search.
func (c *Client) SearchProducts(ctx context.Context, query string, limit, skip int) (*domain.ProductsPage, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.SearchProducts", attribute.String("query", query))
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("skip", strconv.Itoa(skip))

	var page domain.ProductsPage
	if err = c.getJSON(ctx, c.baseURL+"/products/search?"+q.Encode(), &page); err != nil {
		return nil, err
	}
	return withSlugs(&page), nil
}

// Ping checks that the catalog answers. Used as a non-critical readiness check.
func (c *Client) Ping(ctx context.Context) error {
	var page domain.ProductsPage
	return c.getJSON(ctx, c.baseURL+"/products?limit=1&select=id", &page)
}

func (c *Client) getJSON(ctx context.Context, u string, dst any) error {
	resp, err := c.http.Get(ctx, u)
	if err != nil {
		return c.transportError(ctx, u, err)
	}
	defer resp.Body.Close()

	if !httpclient.IsSuccess(resp.StatusCode) {
		return httpclient.ParseResponseError(resp, upstreamName)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode catalog response: %w", err)
	}
	return nil
}

func (c *Client) transportError(ctx context.Context, u string, err error) error {
	c.logger.WarnContext(ctx, "catalog request failed",
		slog.String("url", u),
		slog.String("error", err.Error()),
	)

	var statusErr *httpclient.UpstreamStatusError
	switch {
	case errors.Is(err, httpclient.ErrCircuitOpen):
		return apperrors.Unavailable("catalog is temporarily unavailable")
	case errors.As(err, &statusErr):
		return apperrors.Unavailable(fmt.Sprintf("catalog returned status %d", statusErr.Status))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("call catalog: %w", err)
	default:
		return apperrors.Unavailable("catalog is unreachable")
	}
}

func withSlugs(page *domain.ProductsPage) *domain.ProductsPage {
	if page.Products == nil {
		page.Products = []domain.Product{}
	}
	for i := range page.Products {
		page.Products[i].Slug = slug.Generate(page.Products[i].Title)
	}
	return page
}
