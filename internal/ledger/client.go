// Package ledger talks to the Solana JSON-RPC service: fetching confirmed
// transactions for payment verification, reading the pot balance and
// submitting the prize payout. The client is constructed once at process
// start and injected.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SystemProgramID is the native program that owns plain lamport transfers.
const SystemProgramID = "11111111111111111111111111111111"

// LamportsPerSol is the ledger's smallest-unit scale.
const LamportsPerSol = 1_000_000_000

// Client is a thin typed JSON-RPC client.
type Client struct {
	url  string
	http *http.Client
}

// NewClient creates a ledger client for the given RPC endpoint. A nil
// httpClient gets a default with a timeout.
func NewClient(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{url: url, http: httpClient}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc %s: unexpected status %d", method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("rpc %s: %s (code %d)", method, rpcResp.Error.Message, rpcResp.Error.Code)
	}
	if out != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("unmarshal rpc result: %w", err)
		}
	}
	return nil
}

// Instruction is one compiled sub-instruction of a fetched transaction.
// Accounts holds indexes into the message account list; Data is base58.
type Instruction struct {
	ProgramIDIndex int    `json:"programIdIndex"`
	Accounts       []int  `json:"accounts"`
	Data           string `json:"data"`
}

type txMessage struct {
	AccountKeys  []string      `json:"accountKeys"`
	Instructions []Instruction `json:"instructions"`
}

type txMeta struct {
	Err interface{} `json:"err"`
}

type txEnvelope struct {
	Message txMessage `json:"message"`
}

// TransactionDetail is the subset of a fetched transaction the verifier
// reads.
type TransactionDetail struct {
	BlockTime   *int64     `json:"blockTime"`
	Meta        *txMeta    `json:"meta"`
	Transaction txEnvelope `json:"transaction"`
}

// Failed reports whether the ledger recorded an execution failure.
func (t *TransactionDetail) Failed() bool {
	return t.Meta != nil && t.Meta.Err != nil
}

// GetTransaction fetches a confirmed transaction by signature. A missing
// transaction is (nil, nil), not an error: absence is a verification
// outcome, an outage is not.
func (c *Client) GetTransaction(ctx context.Context, signature string) (*TransactionDetail, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "json",
			"commitment":                     "confirmed",
			"maxSupportedTransactionVersion": 0,
		},
	}
	var detail *TransactionDetail
	if err := c.call(ctx, "getTransaction", params, &detail); err != nil {
		return nil, err
	}
	return detail, nil
}

type balanceResult struct {
	Value uint64 `json:"value"`
}

// GetBalance returns an account balance in lamports.
func (c *Client) GetBalance(ctx context.Context, address string) (uint64, error) {
	var res balanceResult
	if err := c.call(ctx, "getBalance", []interface{}{address}, &res); err != nil {
		return 0, err
	}
	return res.Value, nil
}

type blockhashResult struct {
	Value struct {
		Blockhash string `json:"blockhash"`
	} `json:"value"`
}

// GetLatestBlockhash returns a recent blockhash for building a transaction.
func (c *Client) GetLatestBlockhash(ctx context.Context) (string, error) {
	params := []interface{}{map[string]interface{}{"commitment": "confirmed"}}
	var res blockhashResult
	if err := c.call(ctx, "getLatestBlockhash", params, &res); err != nil {
		return "", err
	}
	return res.Value.Blockhash, nil
}

// SendTransaction submits a signed, base64-encoded transaction and returns
// its signature.
func (c *Client) SendTransaction(ctx context.Context, signedTxBase64 string) (string, error) {
	params := []interface{}{
		signedTxBase64,
		map[string]interface{}{"encoding": "base64", "preflightCommitment": "confirmed"},
	}
	var signature string
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	return signature, nil
}
