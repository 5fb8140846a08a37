package status

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const maxRequestBytes = 1 << 20

// Endpoint serves single JSON-RPC messages over POST. Every JSON-RPC error is
// returned with HTTP 200; notifications get 202 with an empty body.
func Endpoint(s *server.MCPServer, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
		if err != nil {
			logger.Warn("mcp: read body failed", "err", err)
			writeMessage(w, logger, mcp.JSONRPCError{
				JSONRPC: mcp.JSONRPC_VERSION,
				ID:      mcp.NewRequestId(nil),
				Error:   mcp.NewJSONRPCErrorDetails(mcp.PARSE_ERROR, "Parse error", nil),
			})
			return
		}

		ctx, f := withFault(r.Context())
		resp := s.HandleMessage(ctx, json.RawMessage(body))
		if resp == nil {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		writeMessage(w, logger, f.apply(resp))
	})
}

func writeMessage(w http.ResponseWriter, logger *log.Logger, msg mcp.JSONRPCMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(msg); err != nil {
		logger.Warn("mcp: write response failed", "err", err)
	}
}
