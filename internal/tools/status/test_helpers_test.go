package status

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/agentbar/internal/app"
)

type testEnv struct {
	registry *app.Registry
	server   *server.MCPServer
	handler  http.Handler
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{now: time.UnixMilli(1_700_000_000_000)}
	logger := log.New(io.Discard)
	env.registry = app.NewRegistry(logger, app.WithClock(func() time.Time { return env.now }))
	env.server = NewServer(env.registry, logger, "test")
	env.handler = Endpoint(env.server, logger)
	return env
}

// rpcResponse is the decoded JSON-RPC envelope.
type rpcResponse struct {
	ID     any             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// post sends a raw body to the endpoint and returns the recorder.
func (env *testEnv) post(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

// rpc sends a JSON-RPC request and decodes the response.
func (env *testEnv) rpc(t *testing.T, method string, params any) rpcResponse {
	t.Helper()
	msg := map[string]any{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		msg["params"] = params
	}
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	rec := env.post(t, string(b))
	if rec.Code != http.StatusOK {
		t.Fatalf("HTTP status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var resp rpcResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v (body %s)", err, rec.Body.String())
	}
	return resp
}

// callTool calls a registered tool through the endpoint.
// Returns the parsed CallToolResult or an error carrying the RPC code.
func (env *testEnv) callTool(t *testing.T, name string, args map[string]any) (*mcp.CallToolResult, error) {
	t.Helper()
	resp := env.rpc(t, "tools/call", map[string]any{"name": name, "arguments": args})
	if resp.Error != nil {
		return nil, fmt.Errorf("RPC error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	var result mcp.CallToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	return &result, nil
}

// resultText extracts the first text content from a CallToolResult.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("result is nil")
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content in result")
	return ""
}

func mustReport(t *testing.T, r *app.Registry, id string) {
	t.Helper()
	if _, err := r.Report(app.ReportInput{TaskID: id, Name: "Cursor - " + id, IDE: "Cursor", WindowTitle: id, ProjectPath: "/src/" + id}); err != nil {
		t.Fatalf("report %s: %v", id, err)
	}
}

func httptestGet(env *testEnv) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp", nil))
	return rec
}
