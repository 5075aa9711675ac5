package bridge

import (
	"encoding/json"
	"fmt"
	"time"
)

// Stable route names understood by bridge hosts.
const (
	RouteAuthLogin           = "auth/login"
	RouteAuthVerify          = "auth/verify"
	RouteWalletBalance       = "wallet/balance"
	RouteWalletGetAddress    = "wallet/getAddress"
	RouteWalletIsConnected   = "wallet/isConnected"
	RouteWalletGetChainID    = "wallet/getChainId"
	RouteWalletTransfer      = "wallet/transfer"
	RouteWalletSign          = "wallet/sign"
	RouteWalletRecover       = "wallet/recoverAddress"
	RouteWalletSendRawTx     = "wallet/sendRawTransaction"
	RouteWalletSignTypedData = "wallet/signTypedData"
)

// Request invokes a route by name with string-encoded arguments.
//
// The JSON representation is:
//
//	{"id": 7, "route": "wallet/sign", "args": ["hello"], "ts": 1719000000000}
type Request struct {
	ID        uint64   `json:"id"`
	Route     string   `json:"route"`
	Args      []string `json:"args"`
	Timestamp uint64   `json:"ts"` // Unix milliseconds
}

// Response carries the route result or an error message. Exactly one of
// Result and Error is meaningful.
type Response struct {
	ID     uint64          `json:"id"`
	Route  string          `json:"route"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// NewRequest builds a request for the given route. Arguments are encoded
// with EncodeArgs.
func NewRequest(id uint64, route string, args ...any) (Request, error) {
	encoded, err := EncodeArgs(args...)
	if err != nil {
		return Request{}, err
	}
	return Request{
		ID:        id,
		Route:     route,
		Args:      encoded,
		Timestamp: uint64(time.Now().UnixMilli()),
	}, nil
}

// EncodeArgs converts arguments to the wire representation: strings pass
// through untouched, everything else is JSON-serialized.
func EncodeArgs(args ...any) ([]string, error) {
	encoded := make([]string, len(args))
	for i, arg := range args {
		if s, ok := arg.(string); ok {
			encoded[i] = s
			continue
		}
		data, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to encode argument %d: %w", i, err)
		}
		encoded[i] = string(data)
	}
	return encoded, nil
}

// DecodeResult unmarshals the response result into out. String results that
// are not valid JSON are assigned directly when out is a *string.
func (r *Response) DecodeResult(out any) error {
	if r.Error != "" {
		return fmt.Errorf("bridge error on %s: %s", r.Route, r.Error)
	}
	if sp, ok := out.(*string); ok {
		var s string
		if err := json.Unmarshal(r.Result, &s); err == nil {
			*sp = s
			return nil
		}
		*sp = string(r.Result)
		return nil
	}
	return json.Unmarshal(r.Result, out)
}

// Err returns the response error, if any.
func (r *Response) Err() error {
	if r.Error == "" {
		return nil
	}
	return fmt.Errorf("bridge error on %s: %s", r.Route, r.Error)
}
