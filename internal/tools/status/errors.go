package status

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// rpcError carries the JSON-RPC code a tool failure should be reported with.
type rpcError struct {
	code int
	err  error
}

func (e *rpcError) Error() string { return e.err.Error() }
func (e *rpcError) Unwrap() error { return e.err }

func invalidParams(err error) error {
	return &rpcError{code: mcp.INVALID_PARAMS, err: err}
}

// fault is the per-request slot the error hook writes into. mcp-go reports every
// handler error as -32603, an unknown tool as -32602 and undecodable tools/call params
// as -32600; the endpoint rewrites the response from this slot.
type fault struct {
	code    int
	message string
}

type faultKey struct{}

func withFault(ctx context.Context) (context.Context, *fault) {
	f := &fault{}
	return context.WithValue(ctx, faultKey{}, f), f
}

// recordFault is installed as an OnError hook.
func recordFault(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
	f, ok := ctx.Value(faultKey{}).(*fault)
	if !ok {
		return
	}
	var (
		re         *rpcError
		unparsable *server.UnparsableMessageError
	)
	switch {
	case method == mcp.MethodToolsCall && errors.As(err, &unparsable):
		// params that do not decode as {name, arguments} are invalid params, not an invalid request.
		f.code = mcp.INVALID_PARAMS
		f.message = fmt.Sprintf("Invalid params: %v", unparsable.Unwrap())
	case errors.Is(err, server.ErrToolNotFound):
		f.code = mcp.METHOD_NOT_FOUND
		f.message = "Unknown tool"
		if req, ok := message.(*mcp.CallToolRequest); ok && req != nil {
			f.message = fmt.Sprintf("Unknown tool: %s", req.Params.Name)
		}
	case errors.As(err, &re):
		f.code = re.code
		f.message = re.Error()
	}
}

// apply rewrites resp when the hook recorded a fault for it.
func (f *fault) apply(resp mcp.JSONRPCMessage) mcp.JSONRPCMessage {
	if f.code == 0 {
		return resp
	}
	rpcErr, ok := resp.(mcp.JSONRPCError)
	if !ok {
		return resp
	}
	rpcErr.Error.Code = f.code
	if f.message != "" {
		rpcErr.Error.Message = f.message
	}
	return rpcErr
}
