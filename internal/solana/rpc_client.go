package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/observability"
)

// DefaultCommitment is the commitment level of reads unless overridden.
const DefaultCommitment = "confirmed"

const defaultHTTPTimeout = 30 * time.Second

// RetryPolicy bounds how often and how patiently a call is retried.
type RetryPolicy struct {
	MaxRetries int           // attempts after the first
	BaseDelay  time.Duration // wait before the first retry
	MaxDelay   time.Duration
	Multiplier float64
}

// DefaultRetryPolicy retries three times, starting at 1s and doubling up to 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2}
}

func (p RetryPolicy) next(delay time.Duration) time.Duration {
	delay = time.Duration(float64(delay) * p.Multiplier)
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// HTTPClient is an RPCClient speaking JSON-RPC 2.0 over HTTP POST. Every
// read is made at the configured commitment level.
type HTTPClient struct {
	endpoint   string
	http       *http.Client
	retry      RetryPolicy
	commitment string
	nextID     atomic.Uint64
}

var _ RPCClient = (*HTTPClient)(nil)

// ClientOption adjusts an HTTPClient at construction.
type ClientOption func(*HTTPClient)

// WithRetryPolicy replaces the whole retry policy.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *HTTPClient) { c.retry = p }
}

// WithMaxRetries changes only the retry count.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) { c.retry.MaxRetries = n }
}

// WithRetryDelay changes only the first backoff delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.retry.BaseDelay = d }
}

// WithMaxDelay caps the backoff delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.retry.MaxDelay = d }
}

// WithCommitment sets the commitment level of reads.
func WithCommitment(level string) ClientOption {
	return func(c *HTTPClient) { c.commitment = level }
}

// WithTimeout bounds each HTTP attempt.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.http.Timeout = d }
}

// WithHTTPClient swaps the transport, e.g. for a proxy or test server.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) { c.http = hc }
}

// NewHTTPClient returns a client for endpoint using DefaultRetryPolicy and
// DefaultCommitment unless opts say otherwise.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:   endpoint,
		http:       &http.Client{Timeout: defaultHTTPTimeout},
		retry:      DefaultRetryPolicy(),
		commitment: DefaultCommitment,
	}
	for _, apply := range opts {
		apply(c)
	}
	if c.commitment == "" {
		c.commitment = DefaultCommitment
	}
	return c
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

// rpcError is an error object returned by the node. It is final: the same
// request would fail the same way.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call posts one JSON-RPC request, retrying transport failures, 429 and
// non-200 statuses with capped exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	start := time.Now()
	defer func() {
		observability.RecordRPCLatency(method, time.Since(start).Seconds())
	}()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", method, err)
	}

	var (
		raw   json.RawMessage
		delay = c.retry.BaseDelay
	)
	for attempt := 0; ; attempt++ {
		var retry bool
		raw, retry, err = c.post(ctx, body)
		if err == nil || !retry {
			break
		}
		if attempt >= c.retry.MaxRetries {
			return fmt.Errorf("%s: gave up after %d attempts: %w", method, attempt+1, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = c.retry.next(delay)
	}
	if err != nil {
		return err
	}

	if result == nil || raw == nil {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

// post performs a single attempt. retry reports whether err is transient.
func (c *HTTPClient) post(ctx context.Context, body []byte) (raw json.RawMessage, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("rate limited (429)")
	case resp.StatusCode != http.StatusOK:
		return nil, true, fmt.Errorf("status %d: %s", resp.StatusCode, payload)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, true, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return nil, false, decoded.Error
	}
	return decoded.Result, false, nil
}

// GetAccountInfo fetches one account with base64 data. A missing account is
// (nil, nil).
func (c *HTTPClient) GetAccountInfo(ctx context.Context, pubkey domain.Pubkey) (*AccountInfo, error) {
	params := []interface{}{
		pubkey.String(),
		map[string]interface{}{
			"encoding":   "base64",
			"commitment": c.commitment,
		},
	}

	var result getAccountInfoResult
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}

	if result.Value == nil {
		return nil, nil
	}
	return result.Value.decode()
}

type getAccountInfoResult struct {
	Value *rpcAccount `json:"value"`
}

// GetProgramAccounts lists accounts owned by programID.
func (c *HTTPClient) GetProgramAccounts(ctx context.Context, programID domain.Pubkey, filters ...AccountFilter) ([]KeyedAccount, error) {
	config := map[string]interface{}{
		"encoding":   "base64",
		"commitment": c.commitment,
	}
	if len(filters) > 0 {
		config["filters"] = encodeFilters(filters)
	}

	var result []getProgramAccountsItem
	if err := c.call(ctx, "getProgramAccounts", []interface{}{programID.String(), config}, &result); err != nil {
		return nil, err
	}

	out := make([]KeyedAccount, 0, len(result))
	for _, item := range result {
		key, err := domain.PubkeyFromBase58(item.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("program account key: %w", err)
		}
		info, err := item.Account.decode()
		if err != nil {
			return nil, fmt.Errorf("program account %s: %w", key, err)
		}
		out = append(out, KeyedAccount{Pubkey: key, Account: info})
	}
	return out, nil
}

type getProgramAccountsItem struct {
	Pubkey  string     `json:"pubkey"`
	Account rpcAccount `json:"account"`
}

// GetSlot returns the slot the node has reached at the client commitment.
func (c *HTTPClient) GetSlot(ctx context.Context) (uint64, error) {
	params := []interface{}{map[string]interface{}{"commitment": c.commitment}}
	var result uint64
	if err := c.call(ctx, "getSlot", params, &result); err != nil {
		return 0, err
	}
	observability.UpdateHighestSlot(result)
	return result, nil
}
