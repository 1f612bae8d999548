// Package value provides the small conversion layer between the generic
// MessagePack-RPC dynamic value (as produced by rpc.Decode's DecodeInterface
// calls) and native Go scalars. Spec.md §4.1 places this out of scope for
// the core multiplexer; it's included here only far enough to make params
// and results end-to-end usable without every caller hand-rolling its own
// type switch.
package value

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// String asserts v is a string.
func String(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("value: %T is not a string", v)
	}
	return s, nil
}

// Int64 coerces v's numeric kind to int64. msgpack's generic decode produces
// the signed or unsigned integer type matching the encoded width (int8 to
// int64, uint8 to uint64) and float32 or float64 for a MessagePack float, so
// all of those are accepted here.
func Int64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case float32:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("value: %T is not a number", v)
	}
}

// Uint64 coerces v's numeric kind to uint64.
func Uint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("value: %d is negative, cannot convert to uint64", n)
		}
		return uint64(n), nil
	case float64:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case int8, int16, int32:
		i, _ := Int64(n)
		if i < 0 {
			return 0, fmt.Errorf("value: %d is negative, cannot convert to uint64", i)
		}
		return uint64(i), nil
	case float32:
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("value: %T is not a number", v)
	}
}

// Bool asserts v is a boolean.
func Bool(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("value: %T is not a bool", v)
	}
	return b, nil
}

// Bytes asserts v is a byte string (MessagePack bin/str decoded as []byte).
func Bytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return nil, fmt.Errorf("value: %T is not bytes", v)
	}
}

// Slice asserts v is a MessagePack array, decoded as []any.
func Slice(v any) ([]any, error) {
	s, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("value: %T is not an array", v)
	}
	return s, nil
}

// Map asserts v is a MessagePack map, decoded as map[string]any.
func Map(v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("value: %T is not a map", v)
	}
	return m, nil
}

// Decode populates out (a pointer) from v by round-tripping through
// MessagePack. This is the escape hatch for turning a generic
// map[string]any/[]any value — the shape every decoded Param or Result
// actually has — into a concrete typed struct, the same way a caller of the
// teacher's client would unmarshal a reply body into its own type.
func Decode(v any, out any) error {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("value: re-encode: %w", err)
	}
	if err := msgpack.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("value: decode into %T: %w", out, err)
	}
	return nil
}
