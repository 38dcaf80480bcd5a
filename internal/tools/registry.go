// Package tools is the operation catalogue exposed to agents. It is built
// once at startup and is read-only afterwards, so lookups need no locking.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/orctasks/internal/identity"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrUnknownOperation is returned by Dispatch for names not in the catalogue.
var ErrUnknownOperation = errors.New("unknown operation")

// Category groups operations by the role that normally calls them.
type Category string

const (
	CategoryOrchestrator Category = "orchestrator"
	CategoryImplementer  Category = "implementer"
	CategoryShared       Category = "shared"
	CategoryDiagnostic   Category = "diagnostic"
)

// Call is what a handler receives: validated arguments and the caller
// identity captured by the transport for this request.
type Call struct {
	Args   Args
	Caller identity.Context
}

// Handler executes an operation. A returned error becomes a failure Result.
type Handler func(ctx context.Context, call Call) (Result, error)

// Operation is one catalogue entry.
type Operation struct {
	Name        string
	Description string
	Category    Category
	Schema      Schema
	Handler     Handler
}

// Result is either plain text or a string-keyed structured value.
type Result struct {
	Text    string
	Data    map[string]any
	IsError bool
}

// TextResult wraps plain text.
func TextResult(s string) Result { return Result{Text: s} }

// DataResult wraps a structured value.
func DataResult(m map[string]any) Result { return Result{Data: m} }

// Failure is a conversational error result.
func Failure(msg string) Result { return Result{Text: "❌ " + msg, IsError: true} }

// OperationError is a handler error whose Message is what the agent sees.
// Err stays reachable for errors.Is and error categorisation.
type OperationError struct {
	Message string
	Err     error
}

func (e *OperationError) Error() string { return e.Message }

func (e *OperationError) Unwrap() error { return e.Err }

// Failed prefixes err's text with summary, e.g. "Update failed: ...".
func Failed(summary string, err error) *OperationError {
	return &OperationError{Message: summary + ": " + err.Error(), Err: err}
}

// Hinted appends a sentence to err's text.
func Hinted(err error, hint string) *OperationError {
	return &OperationError{Message: err.Error() + ". " + hint, Err: err}
}

// String renders the result as text. Structured values become JSON.
func (r Result) String() string {
	if r.Data == nil {
		return r.Text
	}
	b, err := json.Marshal(r.Data)
	if err != nil {
		return fmt.Sprintf("%v", r.Data)
	}
	return string(b)
}

// Catalogue is the immutable set of operations.
type Catalogue struct {
	ops     map[string]*Operation
	order   []string
	logger  *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// Option configures a Catalogue.
type Option func(*Catalogue)

// WithLogger sets the catalogue logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Catalogue) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *Metrics) Option {
	return func(c *Catalogue) { c.metrics = m }
}

// WithTracer sets the tracer used for dispatch spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Catalogue) {
		if t != nil {
			c.tracer = t
		}
	}
}

// NewCatalogue validates and freezes ops. Names must be unique and every
// operation needs a handler.
func NewCatalogue(ops []Operation, opts ...Option) (*Catalogue, error) {
	c := &Catalogue{
		ops:    make(map[string]*Operation, len(ops)),
		logger: zap.NewNop(),
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(c.logger)
	}

	for i := range ops {
		op := ops[i]
		if op.Name == "" {
			return nil, fmt.Errorf("operation %d has no name", i)
		}
		if op.Handler == nil {
			return nil, fmt.Errorf("operation %q has no handler", op.Name)
		}
		if _, dup := c.ops[op.Name]; dup {
			return nil, fmt.Errorf("operation %q registered twice", op.Name)
		}
		op.Schema = append(Schema(nil), op.Schema...)
		c.ops[op.Name] = &op
		c.order = append(c.order, op.Name)
	}
	return c, nil
}

// Lookup returns a copy of the named operation.
func (c *Catalogue) Lookup(name string) (Operation, bool) {
	op, ok := c.ops[name]
	if !ok {
		return Operation{}, false
	}
	return *op, true
}

// List returns the operations in registration order.
func (c *Catalogue) List() []Operation {
	out := make([]Operation, len(c.order))
	for i, name := range c.order {
		out[i] = *c.ops[name]
	}
	return out
}

// Dispatch validates raw against the named operation's schema and runs its
// handler with caller. Unknown names and schema mismatches are returned as
// errors (ErrUnknownOperation, *ArgumentError). Handler errors are folded
// into a failure Result and never returned.
func (c *Catalogue) Dispatch(ctx context.Context, name string, raw json.RawMessage, caller identity.Context) (Result, error) {
	op, ok := c.ops[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	}

	args, err := op.Schema.Validate(raw)
	if err != nil {
		c.metrics.RecordInvocation(ctx, name, 0, err)
		return Result{}, err
	}

	ctx, span := c.tracer.Start(ctx, "tools."+name, trace.WithAttributes(
		attribute.String("tool.name", name),
		attribute.String("agent.id", caller.AgentID),
		attribute.String("agent.role", string(caller.Role)),
	))
	defer span.End()

	c.metrics.IncrementActive(ctx, name)
	defer c.metrics.DecrementActive(ctx, name)

	start := time.Now()
	result, err := op.Handler(ctx, Call{Args: args, Caller: caller})
	c.metrics.RecordInvocation(ctx, name, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Info("operation failed",
			zap.String("tool", name),
			zap.String("agent_id", caller.AgentID),
			zap.Error(err),
		)
		return Failure(err.Error()), nil
	}
	return result, nil
}
