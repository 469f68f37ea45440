package network

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/zerochat/zerochat/internal/registry"
)

// DefaultBaseURL is the production compute network API base URL.
const DefaultBaseURL = "https://api.zerochat.network"

const (
	defaultAccountTimeout = 15 * time.Second
	defaultInvokeTimeout  = 120 * time.Second

	// maxResponseSize bounds how much of an upstream response is read.
	maxResponseSize = 4 * 1024 * 1024
)

// HTTPBackend talks to the compute network over HTTP.
type HTTPBackend struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	invokeClient *http.Client
}

// Option configures the HTTPBackend.
type Option func(*HTTPBackend)

// WithHTTPClient sets a custom HTTP client for account operations.
func WithHTTPClient(c *http.Client) Option {
	return func(b *HTTPBackend) {
		b.httpClient = c
	}
}

// WithInvokeTimeout bounds the model invocation call.
func WithInvokeTimeout(timeout time.Duration) Option {
	return func(b *HTTPBackend) {
		b.invokeClient.Timeout = timeout
	}
}

// NewHTTPBackend creates a backend client. It reads ZEROCHAT_BASE_URL and
// ZEROCHAT_API_KEY from the environment when not provided.
func NewHTTPBackend(baseURL, apiKey string, opts ...Option) *HTTPBackend {
	if baseURL == "" {
		baseURL = os.Getenv("ZEROCHAT_BASE_URL")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if apiKey == "" {
		apiKey = os.Getenv("ZEROCHAT_API_KEY")
	}

	b := &HTTPBackend{
		baseURL:      baseURL,
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: defaultAccountTimeout},
		invokeClient: &http.Client{Timeout: defaultInvokeTimeout},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// FundAccount requests a deposit of amount into the prepaid account.
func (b *HTTPBackend) FundAccount(ctx context.Context, amount decimal.Decimal) error {
	body, _ := sjson.SetBytes([]byte(`{}`), "amount", amount.String())

	respBody, err := b.post(ctx, b.httpClient, "/v1/account/deposit", body)
	if err != nil {
		return fmt.Errorf("fund account: %w", err)
	}
	if !gjson.GetBytes(respBody, "ok").Bool() {
		return fmt.Errorf("fund account rejected: %s", gjson.GetBytes(respBody, "error").String())
	}
	return nil
}

// QueryBalance fetches the authoritative available balance.
func (b *HTTPBackend) QueryBalance(ctx context.Context) (decimal.Decimal, error) {
	respBody, err := b.get(ctx, "/v1/account/balance")
	if err != nil {
		return decimal.Zero, fmt.Errorf("query balance: %w", err)
	}

	raw := gjson.GetBytes(respBody, "available").String()
	available, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("query balance: bad amount %q: %w", raw, err)
	}
	return available, nil
}

// ListProviders fetches live model descriptors.
func (b *HTTPBackend) ListProviders(ctx context.Context) ([]registry.ProviderDescriptor, error) {
	respBody, err := b.get(ctx, "/v1/providers")
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}

	var out []registry.ProviderDescriptor
	for _, p := range gjson.GetBytes(respBody, "providers").Array() {
		inPrice, err := decimal.NewFromString(p.Get("input_price").String())
		if err != nil {
			continue // skip entries without parseable pricing
		}
		outPrice, err := decimal.NewFromString(p.Get("output_price").String())
		if err != nil {
			continue
		}
		out = append(out, registry.ProviderDescriptor{
			ID:              p.Get("model").String(),
			Name:            p.Get("name").String(),
			ProviderAddress: p.Get("address").String(),
			Description:     p.Get("description").String(),
			Verifiability:   registry.Verifiability(p.Get("verifiability").String()),
			InputPrice:      inPrice,
			OutputPrice:     outPrice,
		})
	}
	return out, nil
}

// Invoke sends one prompt to a model and returns the exchange.
func (b *HTTPBackend) Invoke(ctx context.Context, modelID, providerAddress, prompt string) (*InvokeResult, error) {
	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "model", modelID)
	body, _ = sjson.SetBytes(body, "provider", providerAddress)
	body, _ = sjson.SetBytes(body, "messages.0.role", "user")
	body, _ = sjson.SetBytes(body, "messages.0.content", prompt)

	respBody, err := b.post(ctx, b.invokeClient, "/v1/inference", body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvocationFailed, err)
	}

	content := gjson.GetBytes(respBody, "content")
	if !content.Exists() {
		return nil, fmt.Errorf("%w: response missing content: %s", ErrInvocationFailed, gjson.GetBytes(respBody, "error").String())
	}

	return &InvokeResult{
		Content:   content.String(),
		TokensIn:  int(gjson.GetBytes(respBody, "usage.input_tokens").Int()),
		TokensOut: int(gjson.GetBytes(respBody, "usage.output_tokens").Int()),
		Verified:  gjson.GetBytes(respBody, "verified").Bool(),
	}, nil
}

func (b *HTTPBackend) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return b.do(b.httpClient, req)
}

func (b *HTTPBackend) post(ctx context.Context, client *http.Client, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return b.do(client, req)
}

func (b *HTTPBackend) do(client *http.Client, req *http.Request) ([]byte, error) {
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upstream returned %d: %s", resp.StatusCode, truncate(respBody, 200))
	}
	return respBody, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
