package provider

import (
	"errors"
	"net/url"
	"time"
)

var (
	ErrProviderNotConfigured = errors.New("payment provider is not configured")
	ErrUnknownProvider       = errors.New("unknown payment provider")
	ErrInvalidSignature      = errors.New("callback signature verification failed")
	ErrMalformedCallback     = errors.New("malformed callback payload")
)

// PaymentRequest carries what a provider needs to build a redirect URL.
type PaymentRequest struct {
	OrderID   string
	Amount    int64
	OrderInfo string
	ClientIP  string
	CreatedAt time.Time
}

// CallbackResult is the provider-neutral reading of a webhook payload.
type CallbackResult struct {
	OrderID       string
	Amount        int64
	Success       bool
	Code          string
	TransactionNo string
	PayDate       time.Time
}

// Provider is one payment gateway. Each implementation owns its
// canonicalization and signature rules; adding a gateway means adding
// one implementation, not another branch tree.
type Provider interface {
	Name() string
	BuildRedirectURL(req PaymentRequest) (string, error)
	VerifyCallback(params url.Values) error
	ParseCallback(params url.Values) (*CallbackResult, error)
}

// Registry holds the configured providers by name.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}
