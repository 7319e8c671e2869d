// Package tradeport is the REST client for the Tradeport marketplace API,
// which provides the order book, completed-sale history, token trait
// metadata, and holder snapshots for a collection.
package tradeport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nftvista/nftvista/internal/domain"
	"github.com/nftvista/nftvista/internal/retry"
)

// rateLimitKey is the shared budget key for all Tradeport calls.
const rateLimitKey = "tradeport"

// Client implements domain.MarketSource over the Tradeport REST API. Every
// request is routed through the retry wrapper; an optional rate limiter gates
// each outbound call.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    domain.RateLimiter
	retryCfg   retry.Config
	policy     retry.Policy
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimiter gates every outbound request on the given limiter.
func WithRateLimiter(l domain.RateLimiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithRetry overrides the default retry schedule and classification policy.
func WithRetry(cfg retry.Config, p retry.Policy) Option {
	return func(c *Client) {
		c.retryCfg = cfg
		c.policy = p
	}
}

// WithTimeout overrides the per-call HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a Tradeport client.
//
// baseURL is the API root, e.g. "https://api.tradeport.example". apiKey may
// be empty for unauthenticated endpoints.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retryCfg: retry.DefaultConfig(),
		policy:   retry.DefaultPolicy{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListOrders returns one page of the collection's open order book together
// with the server-reported total.
func (c *Client) ListOrders(ctx context.Context, ticker string, q domain.PageQuery) (domain.OrderPage, error) {
	params := pageParams(q)
	if q.TokenID != nil {
		params.Set("tokenId", strconv.FormatInt(*q.TokenID, 10))
	}
	path := fmt.Sprintf("/v1/collections/%s/orders?%s", url.PathEscape(ticker), params.Encode())

	body, err := c.doGet(ctx, "list_orders", path)
	if err != nil {
		// A token-scoped order query for an unknown token is "no data".
		if q.TokenID != nil && absence(err) {
			return domain.OrderPage{}, nil
		}
		return domain.OrderPage{}, fmt.Errorf("tradeport: list orders %s: %w", ticker, err)
	}

	var resp ordersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderPage{}, fmt.Errorf("tradeport: decode orders: %w", err)
	}

	page := domain.OrderPage{Total: resp.Total}
	page.Orders = make([]domain.Listing, 0, len(resp.Orders))
	for i := range resp.Orders {
		page.Orders = append(page.Orders, resp.Orders[i].ToDomainListing(ticker))
	}
	return page, nil
}

// CompletedOrders returns one page of a token's completed-sale history.
func (c *Client) CompletedOrders(ctx context.Context, ticker string, tokenID int64, q domain.PageQuery) (domain.SalesPage, error) {
	params := pageParams(q)
	path := fmt.Sprintf("/v1/collections/%s/tokens/%d/history?%s",
		url.PathEscape(ticker), tokenID, params.Encode())

	body, err := c.doGet(ctx, "completed_orders", path)
	if err != nil {
		if absence(err) {
			return domain.SalesPage{}, nil
		}
		return domain.SalesPage{}, fmt.Errorf("tradeport: completed orders %s/%d: %w", ticker, tokenID, err)
	}

	var resp salesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.SalesPage{}, fmt.Errorf("tradeport: decode sales: %w", err)
	}

	page := domain.SalesPage{Total: resp.Total}
	page.Sales = make([]domain.SalesRecord, 0, len(resp.Sales))
	for i := range resp.Sales {
		page.Sales = append(page.Sales, resp.Sales[i].ToDomainSale(ticker))
	}
	return page, nil
}

// TokenTraits returns the trait metadata for a token, or nil when the source
// has none recorded.
func (c *Client) TokenTraits(ctx context.Context, ticker string, tokenID int64) (*domain.TraitPayload, error) {
	path := fmt.Sprintf("/v1/collections/%s/tokens/%d/traits", url.PathEscape(ticker), tokenID)

	body, err := c.doGet(ctx, "token_traits", path)
	if err != nil {
		if absence(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("tradeport: token traits %s/%d: %w", ticker, tokenID, err)
	}

	var resp traitsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("tradeport: decode traits: %w", err)
	}
	if len(resp.Attributes) == 0 {
		return nil, nil
	}
	return resp.ToDomainPayload(tokenID), nil
}

// Owners returns the collection's current holder snapshot.
func (c *Client) Owners(ctx context.Context, ticker string) (domain.OwnerSnapshot, error) {
	path := fmt.Sprintf("/v1/collections/%s/owners", url.PathEscape(ticker))

	body, err := c.doGet(ctx, "owners", path)
	if err != nil {
		return domain.OwnerSnapshot{}, fmt.Errorf("tradeport: owners %s: %w", ticker, err)
	}

	var resp ownersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OwnerSnapshot{}, fmt.Errorf("tradeport: decode owners: %w", err)
	}
	return resp.ToDomainSnapshot(ticker), nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func pageParams(q domain.PageQuery) url.Values {
	params := url.Values{}
	params.Set("offset", strconv.Itoa(q.Offset))
	params.Set("limit", strconv.Itoa(q.Limit))
	if q.SortBy != "" {
		params.Set("sortBy", q.SortBy)
	}
	if q.SortDir != "" {
		params.Set("sortDir", string(q.SortDir))
	}
	return params
}

// absence reports whether an error is the "no data" case for a token-scoped
// query rather than a real failure.
func absence(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrBadRequest)
}

// doGet sends a GET request through the rate limiter and retry wrapper.
func (c *Client) doGet(ctx context.Context, op, path string) ([]byte, error) {
	return retry.Do(ctx, c.retryCfg, c.policy, "tradeport."+op, func(ctx context.Context) ([]byte, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, rateLimitKey); err != nil {
				return nil, fmt.Errorf("rate limit: %w", err)
			}
		}
		return c.get(ctx, path)
	})
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors so the retry
// policy can classify them.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch {
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case statusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrBadRequest, bodyStr)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	case statusCode >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrServerError, statusCode, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
