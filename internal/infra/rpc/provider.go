package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrTransport marks network-level failures (connection refused, timeout,
// DNS) as opposed to API-level errors carried in a well-formed response.
// Callers use errors.Is to decide whether a fallback source applies.
var ErrTransport = errors.New("transport error")

// DefaultPace is the fixed delay inserted between consecutive calls to the
// same provider.
const DefaultPace = 225 * time.Millisecond

// Provider executes Operations against one external endpoint.
type Provider interface {
	Execute(ctx context.Context, op Operation) (any, error)
	BatchCall(ctx context.Context, requests []BatchRequest) ([]BatchResponse, error)
	Name() string
	Close() error
}

// HTTPProvider implements Provider over HTTP for JSON-RPC and REST endpoints.
type HTTPProvider struct {
	name       string
	endpoint   string
	headers    map[string]string
	httpClient *http.Client

	mu       sync.Mutex
	pace     time.Duration
	lastCall time.Time
}

// NewHTTPProvider creates a provider for the given endpoint. The endpoint is
// the base URL; REST operation paths are joined onto it.
func NewHTTPProvider(name, endpoint string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		name:     name,
		endpoint: strings.TrimRight(endpoint, "/"),
		pace:     DefaultPace,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// SetHeader sets a header sent with every request (API keys etc).
func (p *HTTPProvider) SetHeader(key, value string) {
	if p.headers == nil {
		p.headers = make(map[string]string)
	}
	p.headers[key] = value
}

// SetPace overrides the inter-call pacing delay. Zero disables pacing.
func (p *HTTPProvider) SetPace(d time.Duration) {
	p.mu.Lock()
	p.pace = d
	p.mu.Unlock()
}

func (p *HTTPProvider) Name() string { return p.name }

func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// waitPace blocks until the pacing window since the previous call has passed.
func (p *HTTPProvider) waitPace(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()
	wait := p.pace - now.Sub(p.lastCall)
	if wait < 0 {
		wait = 0
	}
	// Reserve the slot before sleeping so concurrent callers queue up.
	p.lastCall = now.Add(wait)
	p.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// Execute runs a single operation and returns the decoded JSON result.
func (p *HTTPProvider) Execute(ctx context.Context, op Operation) (any, error) {
	if err := p.waitPace(ctx); err != nil {
		return nil, err
	}

	switch op.Kind {
	case OpRESTGet:
		return p.doREST(ctx, http.MethodGet, op)
	case OpRESTPost:
		return p.doREST(ctx, http.MethodPost, op)
	case OpJSONRPC1:
		return p.doJSONRPC(ctx, op, "1.0")
	default:
		return p.doJSONRPC(ctx, op, "2.0")
	}
}

func (p *HTTPProvider) doJSONRPC(ctx context.Context, op Operation, version string) (any, error) {
	reqBody := map[string]any{
		"jsonrpc": version,
		"method":  op.Name,
		"params":  op.Params,
		"id":      1,
	}
	if version == "1.0" {
		delete(reqBody, "jsonrpc")
	}

	body, err := p.post(ctx, p.endpoint, reqBody)
	if err != nil {
		return nil, err
	}

	var rpcResp struct {
		Result any             `json:"result"`
		Error  *map[string]any `json:"error"`
	}
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if rpcResp.Error != nil {
		errMsg := "unknown error"
		if msg, ok := (*rpcResp.Error)["message"].(string); ok {
			errMsg = msg
		}
		return nil, fmt.Errorf("rpc error: %s", errMsg)
	}

	return rpcResp.Result, nil
}

func (p *HTTPProvider) doREST(ctx context.Context, method string, op Operation) (any, error) {
	target := p.endpoint
	if op.Name != "" {
		target += "/" + strings.TrimLeft(op.Name, "/")
	}

	var reqBody io.Reader
	if method == http.MethodGet {
		if query, ok := op.Params.(map[string]string); ok && len(query) > 0 {
			vals := url.Values{}
			for k, v := range query {
				vals.Set(k, v)
			}
			target += "?" + vals.Encode()
		}
	} else if op.Params != nil {
		jsonData, err := json.Marshal(op.Params)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	body, err := p.send(req)
	if err != nil {
		return nil, err
	}

	var result any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return result, nil
}

func (p *HTTPProvider) post(ctx context.Context, target string, payload any) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	return p.send(req)
}

func (p *HTTPProvider) send(req *http.Request) ([]byte, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited (429), retry after: %s", resp.Header.Get("Retry-After"))
	}
	if resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("access blocked (403)")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// BatchCall sends multiple JSON-RPC 2.0 requests in one round trip.
// Per-request errors are reported independently in the response slice.
func (p *HTTPProvider) BatchCall(ctx context.Context, requests []BatchRequest) ([]BatchResponse, error) {
	if err := p.waitPace(ctx); err != nil {
		return nil, err
	}

	batchReq := make([]map[string]any, len(requests))
	for i, req := range requests {
		batchReq[i] = map[string]any{
			"jsonrpc": "2.0",
			"method":  req.Method,
			"params":  req.Params,
			"id":      i + 1,
		}
	}

	body, err := p.post(ctx, p.endpoint, batchReq)
	if err != nil {
		return nil, err
	}

	var batchResp []struct {
		ID     int             `json:"id"`
		Result any             `json:"result"`
		Error  *map[string]any `json:"error"`
	}
	if err := json.Unmarshal(body, &batchResp); err != nil {
		return nil, fmt.Errorf("parse batch response: %w", err)
	}

	// Responses may arrive out of order; match them back by id.
	responses := make([]BatchResponse, len(requests))
	for _, r := range batchResp {
		idx := r.ID - 1
		if idx < 0 || idx >= len(responses) {
			continue
		}
		if r.Error != nil {
			errMsg := "unknown error"
			if msg, ok := (*r.Error)["message"].(string); ok {
				errMsg = msg
			}
			responses[idx] = BatchResponse{Error: fmt.Errorf("rpc error: %s", errMsg)}
		} else {
			responses[idx] = BatchResponse{Result: r.Result}
		}
	}

	return responses, nil
}
