package entitlements

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testImpl = &mcp.Implementation{Name: "entitlemate-test", Version: "0.1.0"}

func mcpSession(t *testing.T, sheetURL string) (*Service, *mcp.ClientSession) {
	t.Helper()
	cfg := &Config{RateLimit: RateLimitConfig{RPS: noLimit()}}
	cfg.Store.File.Path = filepath.Join(t.TempDir(), "entitlements.json")
	cfg.Sheet.URL = sheetURL
	if sheetURL == "" {
		cfg.Sheet.URL = "http://127.0.0.1:1/unused.csv"
	}
	svc, err := New(context.Background(), cfg, quiet)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { svc.Close() })

	srv := mcp.NewServer(testImpl, nil)
	svc.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return svc, session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	return tc.Text, result.IsError
}

func TestMCP_GetEmpty(t *testing.T) {
	_, session := mcpSession(t, "")
	text, isErr := callTool(t, session, "entitlements_get", map[string]any{})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	if text != "[]" {
		t.Fatalf("got %s, want []", text)
	}
}

func TestMCP_ReplaceThenGet(t *testing.T) {
	svc, session := mcpSession(t, "")

	text, isErr := callTool(t, session, "entitlements_replace", map[string]any{
		"records": map[string]any{"email": "a@x.com", "plan": "pro"},
	})
	if isErr {
		t.Fatalf("replace: %s", text)
	}
	if text != `{"records":1}` {
		t.Fatalf("replace: got %s", text)
	}

	text, _ = callTool(t, session, "entitlements_get", map[string]any{})
	var got []map[string]any
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatalf("get: %v (%s)", err, text)
	}
	if len(got) != 1 || got[0]["email"] != "a@x.com" {
		t.Fatalf("get: %v", got)
	}

	raw, err := svc.Raw(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) == 0 {
		t.Fatal("store empty after replace")
	}
}

func TestMCP_ReplaceRejectsScalar(t *testing.T) {
	_, session := mcpSession(t, "")
	text, isErr := callTool(t, session, "entitlements_replace", map[string]any{"records": 7})
	if !isErr {
		t.Fatalf("expected tool error, got %s", text)
	}
}

func TestMCP_ReplaceMissingRecords(t *testing.T) {
	_, session := mcpSession(t, "")
	_, isErr := callTool(t, session, "entitlements_replace", map[string]any{})
	if !isErr {
		t.Fatal("expected tool error")
	}
}

func TestMCP_FetchSheet(t *testing.T) {
	sheetSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("name,email\nAlice,a@x.com\n"))
	}))
	defer sheetSrv.Close()

	svc, session := mcpSession(t, sheetSrv.URL)
	text, isErr := callTool(t, session, "entitlements_fetch_sheet", map[string]any{})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	if text != `[{"name":"Alice","email":"a@x.com"}]` {
		t.Fatalf("got %s", text)
	}

	snap, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != 0 {
		t.Fatalf("fetch_sheet touched the store: %d records", len(snap))
	}
}
