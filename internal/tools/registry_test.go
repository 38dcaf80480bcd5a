package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/fyrsmithlabs/orctasks/internal/identity"
	"github.com/fyrsmithlabs/orctasks/internal/ledger"
	"github.com/fyrsmithlabs/orctasks/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
)

func echoOp(name string) Operation {
	return Operation{
		Name:   name,
		Schema: Schema{{Name: "msg", Type: TypeString, Required: true}},
		Handler: func(_ context.Context, call Call) (Result, error) {
			return TextResult(call.Caller.AgentID + ":" + call.Args.String("msg")), nil
		},
	}
}

func TestNewCatalogue_Rejects(t *testing.T) {
	_, err := NewCatalogue([]Operation{echoOp("a"), echoOp("a")})
	assert.ErrorContains(t, err, "registered twice")

	_, err = NewCatalogue([]Operation{{Name: "nohandler"}})
	assert.ErrorContains(t, err, "no handler")

	_, err = NewCatalogue([]Operation{{Handler: echoOp("x").Handler}})
	assert.ErrorContains(t, err, "no name")
}

func TestCatalogue_ListAndLookup(t *testing.T) {
	ops := []Operation{echoOp("b"), echoOp("a")}
	c, err := NewCatalogue(ops)
	require.NoError(t, err)

	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].Name)
	assert.Equal(t, "a", list[1].Name)

	ops[0].Schema[0].Name = "mutated"
	op, ok := c.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, "msg", op.Schema[0].Name)

	_, ok = c.Lookup("zzz")
	assert.False(t, ok)
}

func TestCatalogue_Dispatch(t *testing.T) {
	called := false
	failing := Operation{
		Name: "fails",
		Handler: func(context.Context, Call) (Result, error) {
			return Result{}, ledger.NotFound("Task", "#3")
		},
	}
	guarded := Operation{
		Name:   "guarded",
		Schema: Schema{{Name: "n", Type: TypeInteger, Required: true}},
		Handler: func(context.Context, Call) (Result, error) {
			called = true
			return TextResult("ran"), nil
		},
	}
	c, err := NewCatalogue([]Operation{echoOp("echo"), failing, guarded})
	require.NoError(t, err)

	caller := identity.Context{Role: identity.RoleOrchestrator, AgentID: "orchestrator"}
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		res, err := c.Dispatch(ctx, "echo", json.RawMessage(`{"msg":"hi"}`), caller)
		require.NoError(t, err)
		assert.Equal(t, "orchestrator:hi", res.String())
		assert.False(t, res.IsError)
	})

	t.Run("unknown operation", func(t *testing.T) {
		_, err := c.Dispatch(ctx, "nope", nil, caller)
		assert.ErrorIs(t, err, ErrUnknownOperation)
	})

	t.Run("argument error never reaches handler", func(t *testing.T) {
		_, err := c.Dispatch(ctx, "guarded", json.RawMessage(`{"n":"x"}`), caller)
		var argErr *ArgumentError
		assert.ErrorAs(t, err, &argErr)
		assert.False(t, called)
	})

	t.Run("handler error becomes failure result", func(t *testing.T) {
		res, err := c.Dispatch(ctx, "fails", nil, caller)
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Equal(t, "❌ Task #3 not found", res.Text)
	})
}

func TestCatalogue_Metrics(t *testing.T) {
	rec := telemetry.NewRecorder()
	c, err := NewCatalogue([]Operation{echoOp("echo")}, WithMetrics(NewMetricsWithMeter(rec.Meter("test"), nil)))
	require.NoError(t, err)

	ctx := context.Background()
	caller := identity.Maintenance("/tmp")
	_, err = c.Dispatch(ctx, "echo", json.RawMessage(`{"msg":"a"}`), caller)
	require.NoError(t, err)
	_, err = c.Dispatch(ctx, "echo", json.RawMessage(`{}`), caller)
	require.Error(t, err)

	echo := attribute.String("tool", "echo")
	invocations, err := rec.Sum(ctx, "orctasks.tools.invocations_total", echo)
	require.NoError(t, err)
	assert.Equal(t, int64(2), invocations)

	argErrors, err := rec.Sum(ctx, "orctasks.tools.errors_total", echo, attribute.String("reason", "argument_error"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), argErrors)

	active, err := rec.Sum(ctx, "orctasks.tools.active_requests", echo)
	require.NoError(t, err)
	assert.Zero(t, active)

	timed, err := rec.Observations(ctx, "orctasks.tools.duration_seconds", echo)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), timed)
}

func TestCatalogue_Tracing(t *testing.T) {
	rec := telemetry.NewRecorder()
	failing := Operation{
		Name: "fail",
		Handler: func(context.Context, Call) (Result, error) {
			return Result{}, ledger.NotFound("Task", "#9")
		},
	}
	c, err := NewCatalogue([]Operation{echoOp("echo"), failing},
		WithTracer(rec.Tracer("test")),
		WithMetrics(NewMetricsWithMeter(rec.Meter("test"), nil)),
	)
	require.NoError(t, err)

	caller := identity.Context{Role: identity.RoleImplementer, AgentID: "implementer_w1"}
	_, err = c.Dispatch(context.Background(), "echo", json.RawMessage(`{"msg":"hi"}`), caller)
	require.NoError(t, err)
	_, err = c.Dispatch(context.Background(), "fail", nil, caller)
	require.NoError(t, err)

	for key, want := range map[attribute.Key]string{
		"tool.name":  "echo",
		"agent.id":   "implementer_w1",
		"agent.role": "implementer",
	} {
		got, ok := rec.SpanAttr("tools.echo", key)
		require.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}

	span := rec.Span("tools.fail")
	require.NotNil(t, span)
	assert.Equal(t, otelcodes.Error, span.Status().Code)
	assert.Equal(t, "Task #9 not found", span.Status().Description)

	notFound, err := rec.Sum(context.Background(), "orctasks.tools.errors_total",
		attribute.String("tool", "fail"), attribute.String("reason", "not_found"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), notFound)
}

func TestOperationError(t *testing.T) {
	cause := ledger.NotFound("Worktree", "'ghost'")

	err := Hinted(cause, "Available: w1")
	assert.Equal(t, "Worktree 'ghost' not found. Available: w1", err.Error())
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.Equal(t, "not_found", categorizeError(err))

	err = Failed("Update failed", ledger.ErrValidation)
	assert.Equal(t, "Update failed: "+ledger.ErrValidation.Error(), err.Error())
	assert.Equal(t, "validation_error", categorizeError(err))

	err = &OperationError{Message: "No worktree context detected", Err: ledger.ErrNoContext}
	assert.Equal(t, "no_context", categorizeError(err))
}

func TestResult_String(t *testing.T) {
	assert.Equal(t, "plain", TextResult("plain").String())
	assert.JSONEq(t, `{"ok":true}`, DataResult(map[string]any{"ok": true}).String())
	assert.Equal(t, "❌ boom", Failure("boom").Text)
}
