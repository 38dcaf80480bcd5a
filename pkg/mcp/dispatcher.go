package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/orctasks/internal/identity"
	"github.com/fyrsmithlabs/orctasks/internal/logging"
	"github.com/fyrsmithlabs/orctasks/internal/tools"
	"go.uber.org/zap"
)

// Server identity reported by initialize.
const (
	ServerName    = "orc-tasks"
	ServerVersion = "1.0.0"
)

// Protocol versions the dispatcher negotiates, newest first.
var supportedProtocolVersions = []string{"2025-06-18", "2025-03-26", "2024-11-05"}

// Decode errors returned by DecodeRequest.
var (
	ErrParse = errors.New("parse error")
	ErrBatch = errors.New("batch requests are not supported")
)

// Sender delivers a reply produced during dispatch.
type Sender interface {
	Send(ctx context.Context, resp Response) error
}

// Dispatcher routes JSON-RPC methods into the operation catalogue.
// It holds no per-request state and is safe for concurrent use.
type Dispatcher struct {
	catalogue *tools.Catalogue
	logger    *logging.Logger
}

// NewDispatcher creates a dispatcher over catalogue.
func NewDispatcher(catalogue *tools.Catalogue, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{catalogue: catalogue, logger: logger}
}

// DecodeRequest parses a single JSON-RPC request. Malformed JSON yields
// ErrParse and a JSON array yields ErrBatch.
func DecodeRequest(body []byte) (Request, error) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return Request{}, ErrParse
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return Request{}, ErrBatch
	}
	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		// Valid JSON that is not an object.
		return Request{}, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return req, nil
}

var errInvalidRequest = errors.New("invalid request")

// HandleMessage decodes body and dispatches it. Batches and non-object
// payloads are answered with InvalidRequest through out. ErrParse is
// returned to the caller unanswered.
func (d *Dispatcher) HandleMessage(ctx context.Context, body []byte, caller identity.Context, out Sender) error {
	req, err := DecodeRequest(body)
	switch {
	case errors.Is(err, ErrParse):
		return err
	case errors.Is(err, ErrBatch):
		return out.Send(ctx, Failure(nil, InvalidRequest, "Batch requests are not supported"))
	case err != nil:
		return out.Send(ctx, Failure(nil, InvalidRequest, "Invalid Request"))
	}
	return d.Handle(ctx, req, caller, out)
}

// Handle dispatches one request. Notifications produce no reply. A
// returned error is an internal failure; protocol errors are sent as
// replies.
func (d *Dispatcher) Handle(ctx context.Context, req Request, caller identity.Context, out Sender) error {
	if req.JSONRPC != JSONRPCVersion || req.Method == "" {
		return out.Send(ctx, Failure(req.ID, InvalidRequest, "Invalid Request"))
	}

	if req.IsNotification() || strings.HasPrefix(req.Method, "notifications/") {
		d.logger.Debug(ctx, "notification received", zap.String("method", req.Method))
		return nil
	}

	switch req.Method {
	case "initialize":
		return d.initialize(ctx, req, out)
	case "ping":
		return out.Send(ctx, Success(req.ID, struct{}{}))
	case "tools/list":
		return out.Send(ctx, Success(req.ID, d.toolsList()))
	case "tools/call":
		return d.toolsCall(ctx, req, caller, out)
	default:
		return out.Send(ctx, Failure(req.ID, MethodNotFound, "Method not found: "+req.Method))
	}
}

func (d *Dispatcher) initialize(ctx context.Context, req Request, out Sender) error {
	var params InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return out.Send(ctx, Failure(req.ID, InvalidParams, "Invalid params: "+err.Error()))
		}
	}
	version := negotiateProtocolVersion(params.ProtocolVersion)
	d.logger.Info(ctx, "client initialized",
		zap.String("client", params.ClientInfo.Name),
		zap.String("client_version", params.ClientInfo.Version),
		zap.String("protocol_version", version))

	return out.Send(ctx, Success(req.ID, InitializeResult{
		ProtocolVersion: version,
		Capabilities:    ServerCapabilities{Tools: map[string]any{"listChanged": false}},
		ServerInfo:      ServerInfo{Name: ServerName, Version: ServerVersion},
	}))
}

// negotiateProtocolVersion echoes a supported version and falls back to
// the newest one otherwise.
func negotiateProtocolVersion(requested string) string {
	for _, v := range supportedProtocolVersions {
		if requested == v {
			return v
		}
	}
	return supportedProtocolVersions[0]
}

func (d *Dispatcher) toolsList() ToolsListResult {
	ops := d.catalogue.List()
	list := make([]Tool, 0, len(ops))
	for _, op := range ops {
		list = append(list, Tool{
			Name:        op.Name,
			Description: op.Description,
			InputSchema: op.Schema.JSONSchema(),
		})
	}
	return ToolsListResult{Tools: list}
}

func (d *Dispatcher) toolsCall(ctx context.Context, req Request, caller identity.Context, out Sender) error {
	var params ToolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return out.Send(ctx, Failure(req.ID, InvalidParams, "Invalid params: tool name is required"))
	}

	res, err := d.catalogue.Dispatch(ctx, params.Name, params.Arguments, caller)
	var argErr *tools.ArgumentError
	switch {
	case errors.Is(err, tools.ErrUnknownOperation):
		return out.Send(ctx, Failure(req.ID, InvalidParams, "Unknown tool: "+params.Name))
	case errors.As(err, &argErr):
		return out.Send(ctx, Failure(req.ID, InvalidParams, argErr.Error()))
	case err != nil:
		return fmt.Errorf("tools/call %s: %w", params.Name, err)
	}

	return out.Send(ctx, Success(req.ID, CallToolResult{
		Content:           []Content{{Type: "text", Text: res.String()}},
		IsError:           res.IsError,
		StructuredContent: res.Data,
	}))
}
