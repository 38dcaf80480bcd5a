package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = Schema{
	{Name: "title", Type: TypeString, Required: true},
	{Name: "task_id", Type: TypeInteger},
	{Name: "priority", Type: TypeString, Enum: []string{"low", "high"}, Default: "low"},
	{Name: "flag", Type: TypeBoolean},
}

func TestSchema_Validate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Args
		errArg  string
		errText string
	}{
		{name: "minimal", raw: `{"title":"x"}`, want: Args{"title": "x", "priority": "low"}},
		{name: "full", raw: `{"title":"x","task_id":7,"priority":"high","flag":true}`,
			want: Args{"title": "x", "task_id": int64(7), "priority": "high", "flag": true}},
		{name: "integral float", raw: `{"title":"x","task_id":7.0}`, want: Args{"title": "x", "task_id": int64(7), "priority": "low"}},
		{name: "unknown keys dropped", raw: `{"title":"x","extra":1}`, want: Args{"title": "x", "priority": "low"}},
		{name: "empty optional string is absent", raw: `{"title":"x","priority":""}`, want: Args{"title": "x", "priority": "low"}},
		{name: "null optional is absent", raw: `{"title":"x","task_id":null}`, want: Args{"title": "x", "priority": "low"}},
		{name: "missing required", raw: `{}`, errArg: "title", errText: "invalid argument 'title': is required"},
		{name: "null payload", raw: `null`, errArg: "title"},
		{name: "empty required", raw: `{"title":"  "}`, errArg: "title", errText: "invalid argument 'title': must not be empty"},
		{name: "wrong type string", raw: `{"title":3}`, errArg: "title"},
		{name: "wrong type integer", raw: `{"title":"x","task_id":"7"}`, errArg: "task_id"},
		{name: "fractional integer", raw: `{"title":"x","task_id":7.5}`, errArg: "task_id"},
		{name: "integer above int64", raw: `{"title":"x","task_id":9223372036854775808}`, errArg: "task_id"},
		{name: "integer below int64", raw: `{"title":"x","task_id":-9223372036854775809}`, errArg: "task_id"},
		{name: "exponent above int64", raw: `{"title":"x","task_id":1e19}`, errArg: "task_id"},
		{name: "wrong type boolean", raw: `{"title":"x","flag":"yes"}`, errArg: "flag"},
		{name: "outside enum", raw: `{"title":"x","priority":"urgent"}`, errArg: "priority",
			errText: "invalid argument 'priority': must be one of low, high"},
		{name: "not an object", raw: `[1,2]`, errText: "invalid arguments: arguments must be a JSON object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := testSchema.Validate(json.RawMessage(tt.raw))
			if tt.errArg != "" || tt.errText != "" {
				var argErr *ArgumentError
				require.ErrorAs(t, err, &argErr)
				assert.Equal(t, tt.errArg, argErr.Arg)
				if tt.errText != "" {
					assert.EqualError(t, err, tt.errText)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchema_ValidateEmptyPayload(t *testing.T) {
	s := Schema{{Name: "include_completed", Type: TypeBoolean, Default: false}}
	got, err := s.Validate(nil)
	require.NoError(t, err)
	assert.False(t, got.Bool("include_completed"))
	assert.True(t, got.Has("include_completed"))
}

func TestSchema_JSONSchema(t *testing.T) {
	js := testSchema.JSONSchema()
	assert.Equal(t, "object", js["type"])
	assert.Equal(t, []string{"title"}, js["required"])

	props := js["properties"].(map[string]any)
	assert.Len(t, props, 4)
	prio := props["priority"].(map[string]any)
	assert.Equal(t, "string", prio["type"])
	assert.Equal(t, []string{"low", "high"}, prio["enum"])
	assert.Equal(t, "low", prio["default"])
	assert.Equal(t, "integer", props["task_id"].(map[string]any)["type"])
}

func TestArgs_Accessors(t *testing.T) {
	a := Args{"s": "v", "n": int64(3), "b": true}
	assert.Equal(t, "v", a.String("s"))
	assert.Equal(t, int64(3), a.Int("n"))
	assert.True(t, a.Bool("b"))
	assert.Equal(t, "", a.String("missing"))
	assert.Zero(t, a.Int("s"))
}
