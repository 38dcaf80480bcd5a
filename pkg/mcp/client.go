package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Client calls the gateway over HTTP. The supplied http.Client is expected
// to attach a bearer credential.
type Client struct {
	endpoint   string
	workdir    string
	httpClient *http.Client
	nextID     atomic.Int64
}

// NewClient creates a client for the gateway at endpoint (e.g.
// "http://localhost:6970/mcp"). workdir is sent as the caller's working
// directory; empty leaves identity to the server.
func NewClient(endpoint, workdir string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{endpoint: endpoint, workdir: workdir, httpClient: httpClient}
}

// RPCError is a JSON-RPC error reply.
type RPCError struct {
	Status int
	Detail ErrorDetail
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s (code %d)", e.Status, e.Detail.Message, e.Detail.Code)
}

type rawResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *ErrorDetail    `json:"error"`
}

// Call invokes method and decodes its result into result.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	id := c.nextID.Add(1)
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	body, err := json.Marshal(Request{
		JSONRPC: JSONRPCVersion,
		ID:      json.RawMessage(fmt.Sprintf("%d", id)),
		Method:  method,
		Params:  raw,
	})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.workdir != "" {
		req.Header.Set(HeaderAgentWorkdir, c.workdir)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	var out rawResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(data))
	}
	if out.Error != nil {
		return &RPCError{Status: resp.StatusCode, Detail: *out.Error}
	}
	if result != nil {
		if err := json.Unmarshal(out.Result, result); err != nil {
			return fmt.Errorf("decoding result: %w", err)
		}
	}
	return nil
}

// ListTools calls tools/list.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	var res ToolsListResult
	if err := c.Call(ctx, "tools/list", struct{}{}, &res); err != nil {
		return nil, err
	}
	return res.Tools, nil
}

// CallTool calls tools/call for name with args.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*CallToolResult, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encoding arguments: %w", err)
	}
	var res CallToolResult
	if err := c.Call(ctx, "tools/call", ToolsCallParams{Name: name, Arguments: raw}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
