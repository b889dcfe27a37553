package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
)

// OrderClient is the payment service's view of the order service. The
// single call it makes is the best-effort finalization notification
// after a successful payment.
type OrderClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[any]
}

func NewOrderClient(baseURL string, timeout time.Duration) *OrderClient {
	return &OrderClient{
		baseURL: baseURL,
		client:  newHTTPClient(timeout),
		breaker: newBreaker("order-service"),
	}
}

// NotifyOrderPaid tells the order service to move the order out of
// pending. Safe to deliver more than once: the order side applies it as
// a conditional transition.
func (c *OrderClient) NotifyOrderPaid(ctx context.Context, orderID, method string) error {
	_, err := c.breaker.Execute(func() (any, error) {
		body, err := json.Marshal(map[string]string{"method": method})
		if err != nil {
			return nil, fmt.Errorf("marshal paid notification: %w", err)
		}

		endpoint := fmt.Sprintf("%s/orders/%s/paid", c.baseURL, url.PathEscape(orderID))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build paid notification: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("order service rejected paid notification: status %d", resp.StatusCode)
		}
		return nil, nil
	})
	return mapBreakerErr(err)
}
