package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// RPCClient is a minimal JSON-RPC 2.0 client for the base-chain node,
// used both for proof-gathering (dispatch_actions.go) and for forwarding
// operator-submitted raw transactions (spec.md §4.5 "RPC passthrough").
type RPCClient struct {
	endpoint string
	user     string
	pass     string
	client   *http.Client
	nextID   int64
	log      *logrus.Logger
}

func NewRPCClient(endpoint, user, pass string, log *logrus.Logger) *RPCClient {
	if log == nil {
		log = logrus.New()
	}
	return &RPCClient{
		endpoint: endpoint,
		user:     user,
		pass:     pass,
		client:   &http.Client{Timeout: 15 * time.Second},
		log:      log,
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
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

// Call performs one JSON-RPC request, decoding the result into out.
func (c *RPCClient) Call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	id := atomic.AddInt64(&c.nextID, 1)
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("rpc call %s: %w", method, err)
	}
	defer resp.Body.Close()

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("%w: decoding rpc response: %v", ErrMalformedPayload, err)
	}
	if decoded.Error != nil {
		return fmt.Errorf("rpc call %s: %d %s", method, decoded.Error.Code, decoded.Error.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("%w: decoding rpc result: %v", ErrMalformedPayload, err)
	}
	return nil
}

// SendRawTransaction forwards an operator-submitted raw transaction to the
// base chain node via sendrawtransaction, logging and returning the
// resulting txid. It does not submit a NotifyTransactionProxied command to
// the observer loop.
func (c *RPCClient) SendRawTransaction(ctx context.Context, rawTxHex string) (string, error) {
	var txid string
	if err := c.Call(ctx, "sendrawtransaction", []interface{}{rawTxHex}, &txid); err != nil {
		return "", err
	}
	c.log.WithField("txid", txid).Info("proxied raw transaction to base chain node")
	return txid, nil
}
