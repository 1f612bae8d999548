package rpc

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrMalformedFrame is wrapped into the decode error for a frame whose
// element count is wrong for its kind or whose discriminant is unknown. An
// element of the wrong type yields the msgpack decoder's own error instead,
// wrapped with the name of the part being read. Any decode error is fatal to
// the connection that produced it — see Endpoint.Serve.
var ErrMalformedFrame = errors.New("rpc: malformed frame")

// Decode reads exactly one MessagePack-RPC frame from dec. It never reads
// more than the one frame, so a shared *msgpack.Decoder can be reused
// across calls to pull frames back-to-back off a stream with no
// length-prefixed framing of its own.
func Decode(dec *msgpack.Decoder) (*Frame, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, fmt.Errorf("rpc: read frame header: %w", err)
	}
	if n != 3 && n != 4 {
		return nil, fmt.Errorf("rpc: frame array has %d elements: %w", n, ErrMalformedFrame)
	}

	kind, err := dec.DecodeUint64()
	if err != nil {
		return nil, fmt.Errorf("rpc: read frame kind: %w", err)
	}

	switch Kind(kind) {
	case KindRequest:
		if n != 4 {
			return nil, fmt.Errorf("rpc: request frame has %d elements, want 4: %w", n, ErrMalformedFrame)
		}
		return decodeRequest(dec)
	case KindResponse:
		if n != 4 {
			return nil, fmt.Errorf("rpc: response frame has %d elements, want 4: %w", n, ErrMalformedFrame)
		}
		return decodeResponse(dec)
	case KindNotification:
		if n != 3 {
			return nil, fmt.Errorf("rpc: notification frame has %d elements, want 3: %w", n, ErrMalformedFrame)
		}
		return decodeNotification(dec)
	default:
		return nil, fmt.Errorf("rpc: unknown frame discriminant %d: %w", kind, ErrMalformedFrame)
	}
}

func decodeRequest(dec *msgpack.Decoder) (*Frame, error) {
	id, err := dec.DecodeUint64()
	if err != nil {
		return nil, fmt.Errorf("rpc: read request id: %w", err)
	}
	method, err := dec.DecodeString()
	if err != nil {
		return nil, fmt.Errorf("rpc: read request method: %w", err)
	}
	params, err := decodeParamsArray(dec)
	if err != nil {
		return nil, fmt.Errorf("rpc: read request params: %w", err)
	}
	return &Frame{Kind: KindRequest, ID: id, Method: method, Params: params}, nil
}

func decodeResponse(dec *msgpack.Decoder) (*Frame, error) {
	id, err := dec.DecodeUint64()
	if err != nil {
		return nil, fmt.Errorf("rpc: read response id: %w", err)
	}
	errVal, err := dec.DecodeInterface()
	if err != nil {
		return nil, fmt.Errorf("rpc: read response error: %w", err)
	}
	result, err := dec.DecodeInterface()
	if err != nil {
		return nil, fmt.Errorf("rpc: read response result: %w", err)
	}
	return &Frame{Kind: KindResponse, ID: id, Error: errVal, Result: result}, nil
}

func decodeNotification(dec *msgpack.Decoder) (*Frame, error) {
	method, err := dec.DecodeString()
	if err != nil {
		return nil, fmt.Errorf("rpc: read notification method: %w", err)
	}
	params, err := decodeParamsArray(dec)
	if err != nil {
		return nil, fmt.Errorf("rpc: read notification params: %w", err)
	}
	return &Frame{Kind: KindNotification, Method: method, Params: params}, nil
}

func decodeParamsArray(dec *msgpack.Decoder) ([]any, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return []any{}, nil
	}
	params := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := dec.DecodeInterface()
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		params[i] = v
	}
	return params, nil
}

// Encode serializes f and writes it via enc. The caller is responsible for
// holding the writer's lock across Encode and the subsequent flush so that
// concurrent encodes on a shared stream never interleave — see
// frameWriter.write.
func Encode(enc *msgpack.Encoder, f *Frame) error {
	switch f.Kind {
	case KindRequest:
		if err := enc.EncodeArrayLen(4); err != nil {
			return err
		}
		if err := enc.EncodeUint64(uint64(KindRequest)); err != nil {
			return err
		}
		if err := enc.EncodeUint64(f.ID); err != nil {
			return err
		}
		if err := enc.EncodeString(f.Method); err != nil {
			return err
		}
		return encodeParams(enc, f.Params)

	case KindResponse:
		if err := enc.EncodeArrayLen(4); err != nil {
			return err
		}
		if err := enc.EncodeUint64(uint64(KindResponse)); err != nil {
			return err
		}
		if err := enc.EncodeUint64(f.ID); err != nil {
			return err
		}
		if err := enc.Encode(f.Error); err != nil {
			return err
		}
		return enc.Encode(f.Result)

	case KindNotification:
		if err := enc.EncodeArrayLen(3); err != nil {
			return err
		}
		if err := enc.EncodeUint64(uint64(KindNotification)); err != nil {
			return err
		}
		if err := enc.EncodeString(f.Method); err != nil {
			return err
		}
		return encodeParams(enc, f.Params)

	default:
		return fmt.Errorf("rpc: encode: unknown frame kind %d", f.Kind)
	}
}

func encodeParams(enc *msgpack.Encoder, params []any) error {
	if err := enc.EncodeArrayLen(len(params)); err != nil {
		return err
	}
	for _, p := range params {
		if err := enc.Encode(p); err != nil {
			return err
		}
	}
	return nil
}
