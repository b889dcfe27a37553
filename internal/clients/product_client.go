package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/danghoa77/e-project-be-sub000/internal/httpapi"
	"github.com/danghoa77/e-project-be-sub000/internal/product/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrVariantNotFound     = errors.New("variant not found")
	ErrSizeNotFound        = errors.New("size option not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// businessError marks rejections that must not trip the breaker: the
// remote service answered, it just said no.
func businessError(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrVariantNotFound) ||
		errors.Is(err, ErrSizeNotFound) ||
		errors.Is(err, ErrInsufficientStock)
}

func newBreaker(name string) *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || businessError(err)
		},
	})
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// ProductClient is the checkout path's view of the product service:
// variant reads for validation and the stock ledger's bulk decrement.
type ProductClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[any]
}

func NewProductClient(baseURL string, timeout time.Duration) *ProductClient {
	return &ProductClient{
		baseURL: baseURL,
		client:  newHTTPClient(timeout),
		breaker: newBreaker("product-service"),
	}
}

func (c *ProductClient) GetVariant(ctx context.Context, productID, variantID, sizeID string) (*domain.VariantInfo, error) {
	v, err := c.breaker.Execute(func() (any, error) {
		endpoint := fmt.Sprintf("%s/products/%s/variants/%s?size=%s",
			c.baseURL, url.PathEscape(productID), url.PathEscape(variantID), url.QueryEscape(sizeID))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("build variant request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, decodeError(resp)
		}

		var info domain.VariantInfo
		if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
			return nil, fmt.Errorf("decode variant response: %w", err)
		}
		return &info, nil
	})
	if err != nil {
		return nil, mapBreakerErr(err)
	}
	return v.(*domain.VariantInfo), nil
}

// DecreaseStock applies the order's stock lines. The order id travels
// with the request so the ledger can suppress a re-delivered decrement.
func (c *ProductClient) DecreaseStock(ctx context.Context, orderID string, lines []domain.StockLine) error {
	_, err := c.breaker.Execute(func() (any, error) {
		body, err := json.Marshal(map[string]interface{}{"order_id": orderID, "items": lines})
		if err != nil {
			return nil, fmt.Errorf("marshal stock request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/stock/decrease", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build stock request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, decodeError(resp)
		}
		return nil, nil
	})
	return mapBreakerErr(err)
}

// decodeError converts the product service's error envelope back into
// the sentinel the orchestrator branches on.
func decodeError(resp *http.Response) error {
	var body httpapi.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	switch body.Code {
	case "product_not_found":
		return fmt.Errorf("%w: %s", ErrProductNotFound, body.Error)
	case "variant_not_found":
		return fmt.Errorf("%w: %s", ErrVariantNotFound, body.Error)
	case "size_not_found":
		return fmt.Errorf("%w: %s", ErrSizeNotFound, body.Error)
	case "insufficient_stock":
		return fmt.Errorf("%w: %s", ErrInsufficientStock, body.Error)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d: %s", ErrUpstreamUnavailable, resp.StatusCode, body.Error)
	}
	return fmt.Errorf("product service rejected request (%s): %s", body.Code, body.Error)
}

func mapBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return err
}
