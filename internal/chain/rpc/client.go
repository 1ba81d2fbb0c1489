// Package rpc implements the chain transport over JSON-RPC 2.0. It targets
// the registry gateway, which exposes contract reads and writes as
// positional-parameter methods and returns positional result arrays.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"vitalia/internal/chain"
)

// JSON-RPC error codes the gateway uses for submission outcomes.
const (
	codeRejected = -32050 // user or wallet declined before broadcast
	codeReverted = -32051 // registry rejected the applied operation
)

// Gateway method names. Calls are namespaced under a single dispatch method;
// the contract address routes to the right registry.
const (
	rpcCall    = "registry_call"
	rpcSubmit  = "registry_submit"
	rpcReceipt = "registry_receipt"
)

const defaultPollInterval = 2 * time.Second

// Client is a JSON-RPC chain transport.
type Client struct {
	endpoint     string
	httpClient   *http.Client
	pollInterval time.Duration
	nextID       atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, e.g. to tighten timeouts in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithPollInterval overrides the receipt polling cadence.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = d
	}
}

// New creates a transport talking to the given gateway endpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("rpc endpoint is required")
	}
	c := &Client{
		endpoint:     endpoint,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// Call implements chain.Transport.
func (c *Client) Call(ctx context.Context, contract chain.ContractRef, method string, args ...any) ([]any, error) {
	params := append([]any{contract.Address.String(), method}, args...)
	raw, err := c.do(ctx, rpcCall, params)
	if err != nil {
		return nil, classify(contract.Name, method, err)
	}

	result, err := decodePositional(raw)
	if err != nil {
		return nil, chain.NewError(chain.CategoryTransport, contract.Name, method, "bad gateway result", err)
	}
	return result, nil
}

// Submit implements chain.Transport.
func (c *Client) Submit(ctx context.Context, contract chain.ContractRef, method string, args ...any) (chain.TxHandle, error) {
	params := append([]any{contract.Address.String(), method}, args...)
	raw, err := c.do(ctx, rpcSubmit, params)
	if err != nil {
		return "", classify(contract.Name, method, err)
	}

	var handle string
	if err := json.Unmarshal(raw, &handle); err != nil || handle == "" {
		return "", chain.NewError(chain.CategoryTransport, contract.Name, method, "gateway returned no tx handle", err)
	}
	return chain.TxHandle(handle), nil
}

// receiptResult is the gateway's receipt shape; a null result means the write
// is still pending.
type receiptResult struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Wait implements chain.Transport by polling the gateway for a receipt.
func (c *Client) Wait(ctx context.Context, handle chain.TxHandle) (chain.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		raw, err := c.do(ctx, rpcReceipt, []any{string(handle)})
		if err != nil {
			return chain.Receipt{}, classify("", "receipt", err)
		}

		if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
			var rr receiptResult
			if err := json.Unmarshal(raw, &rr); err != nil {
				return chain.Receipt{}, chain.NewError(chain.CategoryTransport, "", "receipt", "bad receipt shape", err)
			}
			switch rr.Status {
			case string(chain.ReceiptConfirmed):
				return chain.Receipt{Handle: handle, Status: chain.ReceiptConfirmed}, nil
			case string(chain.ReceiptReverted):
				return chain.Receipt{Handle: handle, Status: chain.ReceiptReverted, Reason: rr.Reason}, nil
			default:
				return chain.Receipt{}, chain.NewError(chain.CategoryTransport, "", "receipt",
					fmt.Sprintf("unknown receipt status %q", rr.Status), nil)
			}
		}

		select {
		case <-ctx.Done():
			return chain.Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned HTTP %d", resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var rr rpcResponse
	if err := dec.Decode(&rr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if rr.Error != nil {
		return nil, &gatewayError{code: rr.Error.Code, message: rr.Error.Message}
	}
	return rr.Result, nil
}

// gatewayError carries a JSON-RPC error object until classify maps it to the
// chain taxonomy.
type gatewayError struct {
	code    int
	message string
}

func (e *gatewayError) Error() string {
	return fmt.Sprintf("gateway error %d: %s", e.code, e.message)
}

func classify(contract, method string, err error) error {
	var ge *gatewayError
	if errors.As(err, &ge) {
		switch ge.code {
		case codeRejected:
			return chain.NewError(chain.CategoryRejected, contract, method, ge.message, nil)
		case codeReverted:
			return chain.NewError(chain.CategoryExecution, contract, method, ge.message, nil)
		default:
			return chain.NewError(chain.CategoryTransport, contract, method, ge.message, nil)
		}
	}
	return chain.NewError(chain.CategoryTransport, contract, method, "rpc call failed", err)
}

// decodePositional parses a JSON array result, keeping numbers as json.Number
// so the decoder can check integrality, and nested arrays as []any records.
func decodePositional(raw json.RawMessage) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var result []any
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("result is not a positional array: %w", err)
	}
	return result, nil
}
