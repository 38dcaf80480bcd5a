package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fyrsmithlabs/orctasks/internal/identity"
	"github.com/fyrsmithlabs/orctasks/internal/logging"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// HeaderAgentWorkdir carries the calling agent's working directory.
const HeaderAgentWorkdir = "X-Agent-Workdir"

// ProtectedResourcePath is the metadata document advertised in auth challenges.
const ProtectedResourcePath = "/.well-known/oauth-protected-resource"

// Config configures the gateway.
type Config struct {
	// Prefix is the path the gateway owns, e.g. "/mcp".
	Prefix string
	// BaseURL is the public origin used in WWW-Authenticate challenges.
	BaseURL string
	Realm   string
	// RequestTimeout bounds a single dispatch. Zero disables it.
	RequestTimeout time.Duration
	// MaxBodyBytes caps the JSON-RPC body. Zero means 1MB.
	MaxBodyBytes int64
}

// Resolver places a working directory in an agent identity.
type Resolver interface {
	Resolve(ctx context.Context, workdir string) (identity.Context, error)
}

// requestState tracks one request through the gateway.
type requestState int

const (
	stateAwaitingAuth requestState = iota
	stateAuthenticated
	stateDispatched
	stateResponded
	stateRejected
)

func (s requestState) String() string {
	switch s {
	case stateAwaitingAuth:
		return "awaiting_auth"
	case stateAuthenticated:
		return "authenticated"
	case stateDispatched:
		return "dispatched"
	case stateResponded:
		return "responded"
	case stateRejected:
		return "rejected"
	}
	return "unknown"
}

// Gateway serves JSON-RPC calls under a path prefix.
type Gateway struct {
	dispatcher *Dispatcher
	resolver   Resolver
	cfg        Config
	logger     *logging.Logger
	metrics    *Metrics
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithMetrics records request outcomes in m.
func WithMetrics(m *Metrics) GatewayOption {
	return func(g *Gateway) { g.metrics = m }
}

// NewGateway creates a gateway.
func NewGateway(d *Dispatcher, r Resolver, cfg Config, logger *logging.Logger, opts ...GatewayOption) *Gateway {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "/mcp"
	}
	cfg.Prefix = "/" + strings.Trim(cfg.Prefix, "/")
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Realm == "" {
		cfg.Realm = "MCP"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	g := &Gateway{dispatcher: d, resolver: r, cfg: cfg, logger: logger.Named("gateway")}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Middleware returns echo middleware that intercepts the gateway prefix
// and hands every other request to next.
func (g *Gateway) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sub, ok := g.subpath(c.Request().URL.Path)
			if !ok {
				return next(c)
			}
			return g.serve(c, sub)
		}
	}
}

// subpath reports whether path is under the prefix, matching whole
// segments, and returns the remainder.
func (g *Gateway) subpath(path string) (string, bool) {
	if path == g.cfg.Prefix {
		return "", true
	}
	if strings.HasPrefix(path, g.cfg.Prefix+"/") {
		return path[len(g.cfg.Prefix):], true
	}
	return "", false
}

func (g *Gateway) serve(c echo.Context, sub string) error {
	start := time.Now()
	var outcome string
	defer func() { g.metrics.observe(outcome, time.Since(start).Seconds()) }()

	switch sub {
	case "", "/", "/messages":
		var err error
		outcome, err = g.handleRPC(c)
		return err
	case "/sse":
		if m := c.Request().Method; m != http.MethodGet && m != http.MethodHead {
			outcome = "method_not_allowed"
			return methodNotAllowed(c, http.MethodGet)
		}
		outcome = "sse"
		return handleSSE(c)
	default:
		outcome = "not_found"
		return c.JSON(http.StatusNotFound, Failure(nil, MethodNotFound, "Endpoint not found"))
	}
}

func methodNotAllowed(c echo.Context, allow string) error {
	c.Response().Header().Set(echo.HeaderAllow, allow)
	return c.String(http.StatusMethodNotAllowed, "Method not allowed")
}

func (g *Gateway) handleRPC(c echo.Context) (string, error) {
	req := c.Request()
	if req.Method != http.MethodPost {
		return "method_not_allowed", methodNotAllowed(c, http.MethodPost)
	}

	ctx := req.Context()
	if id := requestID(c); id != "" {
		ctx = logging.WithRequestID(ctx, id)
	}

	state := stateAwaitingAuth
	token, present := bearerToken(req.Header.Get(echo.HeaderAuthorization))
	switch {
	case !present:
		state = stateRejected
		g.logger.Info(ctx, "gateway request rejected", zap.Stringer("state", state), zap.String("reason", "missing bearer"))
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, g.challenge())
		return "unauthorized", c.JSON(http.StatusUnauthorized, Failure(nil, AuthRequired, "Authorization required"))
	case token == "":
		state = stateRejected
		g.logger.Info(ctx, "gateway request rejected", zap.Stringer("state", state), zap.String("reason", "empty bearer"))
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, fmt.Sprintf(`Bearer realm="%s", error="invalid_token"`, g.cfg.Realm))
		return "unauthorized", c.JSON(http.StatusUnauthorized, Failure(nil, AuthRequired, "Invalid token"))
	}
	state = stateAuthenticated
	g.logger.Trace(ctx, "gateway request authenticated", zap.Stringer("state", state))

	body, err := io.ReadAll(io.LimitReader(req.Body, g.cfg.MaxBodyBytes+1))
	if err != nil {
		g.logger.Warn(ctx, "gateway body read failed", zap.Error(err))
		return "parse_error", c.JSON(http.StatusBadRequest, Failure(nil, ParseError, "Parse error"))
	}
	if int64(len(body)) > g.cfg.MaxBodyBytes {
		return "too_large", c.JSON(http.StatusRequestEntityTooLarge, Failure(nil, InvalidRequest, "Request body too large"))
	}

	workdir := req.Header.Get(HeaderAgentWorkdir)
	if workdir == "" {
		workdir = identity.ProcessDir()
	}
	caller, err := g.resolver.Resolve(ctx, workdir)
	if err != nil {
		g.logger.Warn(ctx, "identity resolution failed, continuing as maintenance", zap.Error(err))
	}
	ctx = logging.WithAgent(ctx, logging.Agent{ID: caller.AgentID, Role: string(caller.Role), Worktree: caller.WorktreeName()})

	if g.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.RequestTimeout)
		defer cancel()
	}

	state = stateDispatched
	capture := newReplyCapture()
	err = g.dispatch(ctx, body, caller, capture)
	reply, replied := capture.Reply()
	g.logger.Debug(ctx, "gateway dispatch finished", zap.Stringer("state", state), zap.Bool("replied", replied))

	switch {
	case errors.Is(err, ErrParse):
		return "parse_error", c.JSON(http.StatusBadRequest, Failure(nil, ParseError, "Parse error"))
	case err != nil:
		g.logger.Error(ctx, "gateway dispatch failed", zap.Error(err))
		return "internal_error", c.JSON(http.StatusInternalServerError, Failure(nil, InternalError, "Internal error: "+err.Error()))
	case !replied:
		return "no_response", c.JSON(http.StatusInternalServerError, Failure(nil, InternalError, "No response generated"))
	}

	state = stateResponded
	g.logger.Debug(ctx, "gateway reply sent", zap.Stringer("state", state))
	return "ok", c.JSON(http.StatusOK, reply)
}

// dispatch runs the dispatcher and converts a panic into an error.
func (g *Gateway) dispatch(ctx context.Context, body []byte, caller identity.Context, out Sender) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return g.dispatcher.HandleMessage(ctx, body, caller, out)
}

func (g *Gateway) challenge() string {
	return fmt.Sprintf(`Bearer realm="%s", resource_metadata="%s%s"`, g.cfg.Realm, g.cfg.BaseURL, ProtectedResourcePath)
}

// bearerToken extracts the token from an Authorization header. present is
// false when the header is not a Bearer credential at all. A bare "Bearer"
// counts as present with an empty token since trailing whitespace is
// stripped from header values on the wire.
func bearerToken(header string) (token string, present bool) {
	const scheme = "Bearer"
	if header == scheme {
		return "", true
	}
	if !strings.HasPrefix(header, scheme+" ") {
		return "", false
	}
	return strings.TrimSpace(header[len(scheme)+1:]), true
}

func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}
