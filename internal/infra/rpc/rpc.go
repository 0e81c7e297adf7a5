// Package rpc provides the shared HTTP transport for all source adapters.
//
// Every external endpoint the pipeline talks to — indexer query APIs,
// block-explorer REST APIs, raw node JSON-RPC, UTXO lookup APIs and the price
// API — is reached through a Provider executing Operations. An Operation is
// transport-shaped (JSON-RPC 2.0, JSON-RPC 1.0, REST GET or REST POST) so one
// provider implementation serves every source.
//
// Providers enforce a fixed pacing delay between consecutive calls to the
// same endpoint to respect third-party rate limits; calls within one
// orchestration run are sequential by design.
package rpc

// OpKind selects the wire shape of an Operation.
type OpKind int

const (
	OpJSONRPC2 OpKind = iota
	OpJSONRPC1
	OpRESTGet
	OpRESTPost
)

// Operation is a transport-agnostic description of one external call.
type Operation struct {
	// Name is the JSON-RPC method or the REST path relative to the
	// provider's endpoint.
	Name   string
	Params any
	Kind   OpKind
}

// NewJSONRPCOperation creates a JSON-RPC 2.0 operation.
func NewJSONRPCOperation(method string, params ...any) Operation {
	return Operation{Name: method, Params: params, Kind: OpJSONRPC2}
}

// NewJSONRPC10Operation creates a JSON-RPC 1.0 operation (positional params).
func NewJSONRPC10Operation(method string, params ...any) Operation {
	var p any = params
	if len(params) == 0 {
		p = nil
	}
	return Operation{Name: method, Params: p, Kind: OpJSONRPC1}
}

// NewGetOperation creates a REST GET operation with query parameters.
func NewGetOperation(path string, query map[string]string) Operation {
	return Operation{Name: path, Params: query, Kind: OpRESTGet}
}

// NewPostOperation creates a REST POST operation with a JSON body.
func NewPostOperation(path string, body any) Operation {
	return Operation{Name: path, Params: body, Kind: OpRESTPost}
}

// BatchRequest is a single request in a JSON-RPC batch call.
type BatchRequest struct {
	Method string
	Params []any
}

// BatchResponse is a single result from a JSON-RPC batch call.
type BatchResponse struct {
	Result any
	Error  error
}
