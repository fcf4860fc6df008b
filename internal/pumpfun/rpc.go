package pumpfun

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"mintwatch/internal/resolver"
)

// Solana JSON-RPC throttling error code.
const rpcCodeRateLimited = -32429

// RPCClient looks up transactions on the ledger RPC endpoint. It implements
// resolver.TransactionSource.
type RPCClient struct {
	http *resty.Client
}

// NewRPCClient creates a ledger RPC client against endpoint.
func NewRPCClient(endpoint string, timeout time.Duration) *RPCClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &RPCClient{http: client}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type getTransactionResponse struct {
	Result *struct {
		Transaction struct {
			Message struct {
				AccountKeys []string `json:"accountKeys"`
			} `json:"message"`
		} `json:"transaction"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// AccountKeys returns the account identifiers referenced by the transaction.
// Throttling responses are reported as resolver.ErrRateLimited so the caller
// can back off and retry.
func (c *RPCClient) AccountKeys(ctx context.Context, signature string) ([]string, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getTransaction",
		Params: []any{
			signature,
			map[string]any{
				"encoding":                       "json",
				"commitment":                     "confirmed",
				"maxSupportedTransactionVersion": 0,
			},
		},
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("")
	if err != nil {
		return nil, fmt.Errorf("rpc getTransaction: %w", err)
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rpc getTransaction: %w", resolver.ErrRateLimited)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("rpc getTransaction: status %d", resp.StatusCode())
	}

	var parsed getTransactionResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("rpc getTransaction: decode: %w", err)
	}
	if parsed.Error != nil {
		if parsed.Error.Code == rpcCodeRateLimited ||
			strings.Contains(strings.ToLower(parsed.Error.Message), "too many requests") {
			return nil, fmt.Errorf("rpc getTransaction: %s: %w", parsed.Error.Message, resolver.ErrRateLimited)
		}
		return nil, fmt.Errorf("rpc getTransaction: %d %s", parsed.Error.Code, parsed.Error.Message)
	}
	if parsed.Result == nil {
		return nil, fmt.Errorf("rpc getTransaction: transaction %s not found", signature)
	}
	return parsed.Result.Transaction.Message.AccountKeys, nil
}
