package provider

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// Strategy is one call convention for issuing a request to a wallet object.
type Strategy struct {
	Name     string
	Supports func(w Wallet) bool
	Call     func(ctx context.Context, w Wallet, args Args) (json.RawMessage, error)
}

// Strategies is the fixed preference order: direct request, nested
// sub-provider, legacy sendAsync.
var Strategies = []Strategy{
	{
		Name: "request",
		Supports: func(w Wallet) bool {
			_, ok := w.(Requester)
			return ok
		},
		Call: func(ctx context.Context, w Wallet, args Args) (json.RawMessage, error) {
			return w.(Requester).Request(ctx, args)
		},
	},
	{
		Name: "nested",
		Supports: func(w Wallet) bool {
			n, ok := w.(Nested)
			return ok && n.Inner() != nil
		},
		Call: func(ctx context.Context, w Wallet, args Args) (json.RawMessage, error) {
			return w.(Nested).Inner().Request(ctx, args)
		},
	},
	{
		Name: "sendAsync",
		Supports: func(w Wallet) bool {
			_, ok := w.(LegacySender)
			return ok
		},
		Call: callLegacy,
	},
}

// Supported returns the strategies w implements, in preference order.
func Supported(w Wallet) []Strategy {
	if w == nil {
		return nil
	}
	out := make([]Strategy, 0, len(Strategies))
	for _, s := range Strategies {
		if s.Supports(w) {
			out = append(out, s)
		}
	}
	return out
}

// Call issues method through the preferred strategy w supports. An error
// from the wallet is final: other strategies are not tried, since the same
// object would just reject again.
func Call(ctx context.Context, w Wallet, method string, params ...any) (json.RawMessage, error) {
	supported := Supported(w)
	if len(supported) == 0 {
		return nil, ErrNoCallMethod
	}
	if params == nil {
		params = []any{}
	}
	return supported[0].Call(ctx, w, Args{Method: method, Params: params})
}

// CallInto is Call followed by json.Unmarshal into out.
func CallInto(ctx context.Context, w Wallet, out any, method string, params ...any) error {
	raw, err := Call(ctx, w, method, params...)
	if err != nil {
		return err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return errors.Wrap(ErrEmptyResult, method)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "decode %s result", method)
	}
	return nil
}

var legacyID atomic.Uint64

func callLegacy(ctx context.Context, w Wallet, args Args) (json.RawMessage, error) {
	type reply struct {
		resp Response
		err  error
	}
	done := make(chan reply, 1)

	params := args.Params
	if params == nil {
		params = []any{}
	}
	w.(LegacySender).SendAsync(Payload{
		JSONRPC: "2.0",
		ID:      legacyID.Add(1),
		Method:  args.Method,
		Params:  params,
	}, func(resp Response, err error) {
		select {
		case done <- reply{resp: resp, err: err}:
		default:
		}
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if r.resp.Error != nil {
			return nil, r.resp.Error
		}
		return r.resp.Result, nil
	}
}
