package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// ArgType is the primitive type of an argument.
type ArgType string

const (
	TypeString  ArgType = "string"
	TypeInteger ArgType = "integer"
	TypeBoolean ArgType = "boolean"
)

// Arg declares one argument of an operation.
type Arg struct {
	Name        string
	Type        ArgType
	Description string
	Required    bool
	// Enum restricts string values when non-empty.
	Enum []string
	// Default is applied when an optional argument is absent.
	Default any
}

// Schema is the ordered argument list of an operation.
type Schema []Arg

// ArgumentError reports a payload that does not match a Schema. Handlers
// never see such payloads.
type ArgumentError struct {
	Arg    string
	Reason string
}

func (e *ArgumentError) Error() string {
	if e.Arg == "" {
		return "invalid arguments: " + e.Reason
	}
	return fmt.Sprintf("invalid argument '%s': %s", e.Arg, e.Reason)
}

// Args holds validated arguments. Strings are string, integers int64,
// booleans bool.
type Args map[string]any

// String returns a string argument or "".
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns an integer argument or 0.
func (a Args) Int(name string) int64 {
	n, _ := a[name].(int64)
	return n
}

// Bool returns a boolean argument or false.
func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Has reports whether name was supplied or defaulted.
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// Validate decodes raw against s. Missing or null raw is an empty object.
// Keys the schema does not declare are dropped. Empty optional strings
// count as absent.
func (s Schema) Validate(raw json.RawMessage) (Args, error) {
	fields := map[string]any{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return nil, &ArgumentError{Reason: "arguments must be a JSON object"}
		}
	}

	out := make(Args, len(s))
	for _, arg := range s {
		v, present := fields[arg.Name]
		if present && v == nil {
			present = false
		}
		if present {
			if str, ok := v.(string); ok && str == "" && !arg.Required && arg.Type == TypeString {
				present = false
			}
		}
		if !present {
			if arg.Required {
				return nil, &ArgumentError{Arg: arg.Name, Reason: "is required"}
			}
			if arg.Default != nil {
				out[arg.Name] = arg.Default
			}
			continue
		}

		val, err := arg.coerce(v)
		if err != nil {
			return nil, err
		}
		out[arg.Name] = val
	}
	return out, nil
}

func (arg Arg) coerce(v any) (any, error) {
	switch arg.Type {
	case TypeString:
		str, ok := v.(string)
		if !ok {
			return nil, &ArgumentError{Arg: arg.Name, Reason: "must be a string"}
		}
		if strings.TrimSpace(str) == "" {
			return nil, &ArgumentError{Arg: arg.Name, Reason: "must not be empty"}
		}
		if len(arg.Enum) > 0 && !contains(arg.Enum, str) {
			return nil, &ArgumentError{Arg: arg.Name, Reason: "must be one of " + strings.Join(arg.Enum, ", ")}
		}
		return str, nil

	case TypeInteger:
		num, ok := v.(json.Number)
		if !ok {
			return nil, &ArgumentError{Arg: arg.Name, Reason: "must be an integer"}
		}
		if n, err := num.Int64(); err == nil {
			return n, nil
		}
		f, err := num.Float64()
		// float64 bounds of int64; 2^63 itself does not fit.
		if err != nil || f != math.Trunc(f) || f >= 0x1p63 || f < -0x1p63 {
			return nil, &ArgumentError{Arg: arg.Name, Reason: "must be an integer"}
		}
		return int64(f), nil

	case TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, &ArgumentError{Arg: arg.Name, Reason: "must be a boolean"}
		}
		return b, nil
	}
	return nil, &ArgumentError{Arg: arg.Name, Reason: fmt.Sprintf("unsupported type %q", arg.Type)}
}

// JSONSchema renders s as a JSON Schema object for tools/list.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s))
	required := []string{}
	for _, arg := range s {
		p := map[string]any{"type": string(arg.Type)}
		if arg.Description != "" {
			p["description"] = arg.Description
		}
		if len(arg.Enum) > 0 {
			p["enum"] = append([]string(nil), arg.Enum...)
		}
		if arg.Default != nil {
			p["default"] = arg.Default
		}
		props[arg.Name] = p
		if arg.Required {
			required = append(required, arg.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
