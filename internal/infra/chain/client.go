// Package chain reads the minting contract over JSON-RPC and encodes the
// calls the worker emits back to it.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Client is a minimal JSON-RPC client for the handful of read methods the
// worker needs: eth_call against the contract and eth_getLogs for triggers.
type Client struct {
	endpoint string
	httpc    *http.Client
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		httpc: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	reqBody := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return json.Unmarshal(rpcResp.Result, result)
}

// EthCall executes a read-only contract call against the latest block.
func (c *Client) EthCall(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var out hexutil.Bytes
	err := c.call(ctx, "eth_call", []any{
		map[string]string{
			"to":   to.Hex(),
			"data": hexutil.Encode(data),
		},
		"latest",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Log is the slice of an Ethereum log the worker decodes triggers from.
type Log struct {
	Topics      []common.Hash  `json:"topics"`
	Data        hexutil.Bytes  `json:"data"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	LogIndex    hexutil.Uint64 `json:"logIndex"`
	TxHash      common.Hash    `json:"transactionHash"`
}

// BlockNumber returns the current chain head.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var out hexutil.Uint64
	if err := c.call(ctx, "eth_blockNumber", []any{}, &out); err != nil {
		return 0, err
	}
	return uint64(out), nil
}

// FilterLogs returns logs emitted by the contract with the given topic in
// [fromBlock, latest].
func (c *Client) FilterLogs(ctx context.Context, address common.Address, topic common.Hash, fromBlock uint64) ([]Log, error) {
	var out []Log
	err := c.call(ctx, "eth_getLogs", []any{
		map[string]any{
			"address":   address.Hex(),
			"topics":    []string{topic.Hex()},
			"fromBlock": hexutil.Uint64(fromBlock).String(),
			"toBlock":   "latest",
		},
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}
