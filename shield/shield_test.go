package shield

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/entitlemate/kit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func TestTraceID_GeneratesAndPropagates(t *testing.T) {
	var seen string
	var logger bool
	h := TraceID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = kit.GetTraceID(r.Context())
		logger = r.Context().Value(LoggerKey) != nil
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	if len(seen) != 12 {
		t.Fatalf("trace id: got %q, want 12 chars", seen)
	}
	if got := w.Header().Get("X-Trace-ID"); got != seen {
		t.Fatalf("header: got %q, want %q", got, seen)
	}
	if !logger {
		t.Fatal("expected per-request logger in context")
	}
}

func TestTraceID_ReusesIncoming(t *testing.T) {
	var seen string
	h := TraceID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = kit.GetTraceID(r.Context())
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Trace-ID", "caller-42")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "caller-42" {
		t.Fatalf("got %q, want caller-42", seen)
	}
}

func TestSecurityHeaders_API(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeaders(APIHeaders())(okHandler()).ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	for k, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	} {
		if got := w.Header().Get(k); got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
	if !strings.Contains(w.Header().Get("Content-Security-Policy"), "default-src 'none'") {
		t.Errorf("CSP: got %q", w.Header().Get("Content-Security-Policy"))
	}
}

func TestHeadToGet(t *testing.T) {
	var method string
	h := HeadToGet(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("HEAD", "/", nil))
	if method != http.MethodGet {
		t.Fatalf("method: got %s, want GET", method)
	}
}

func TestMaxBody_RejectsOversized(t *testing.T) {
	// WHAT: Reading past the cap yields an error that IsTooLarge recognizes.
	// WHY: Handlers turn it into 413 instead of a generic 400.
	var readErr error
	h := MaxBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))
	req := httptest.NewRequest("POST", "/upload", strings.NewReader(`[{"a":"0123456789"}]`))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !IsTooLarge(readErr) {
		t.Fatalf("got %v, want MaxBytesError", readErr)
	}
}

func TestMaxBody_AllowsSmall(t *testing.T) {
	var body []byte
	h := MaxBody(64)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/", strings.NewReader(`[]`)))
	if string(body) != "[]" {
		t.Fatalf("body: got %q", body)
	}
}

func TestCORS_Preflight(t *testing.T) {
	req := httptest.NewRequest("OPTIONS", "/api/entitlements", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	w := httptest.NewRecorder()
	CORS(nil)(okHandler()).ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example.com" {
		t.Fatalf("allow-origin: got %q", got)
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	req := httptest.NewRequest("GET", "/data", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	CORS([]string{"https://dash.example.com"})(okHandler()).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("allow-origin should be empty, got %q", got)
	}
}

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	// WHAT: A client exceeding its burst gets 429 with a JSON body.
	// WHY: One noisy webhook sender must not starve the others.
	rl := NewRateLimiter(0.001, 2)
	h := rl.Middleware(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/upload", nil)
		req.RemoteAddr = "192.0.2.1:5555"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			if !strings.Contains(w.Body.String(), "rate limit exceeded") {
				t.Errorf("body: got %q", w.Body.String())
			}
			if w.Header().Get("Retry-After") == "" {
				t.Error("missing Retry-After")
			}
		}
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes: got %v", codes)
	}

	// A different IP has its own bucket.
	req := httptest.NewRequest("POST", "/upload", nil)
	req.RemoteAddr = "192.0.2.2:5555"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("second ip: got %d", w.Code)
	}
}

func TestRateLimiter_GC(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.limiter("192.0.2.1")

	now = now.Add(visitorTTL + time.Second)
	rl.gc()

	rl.mu.Lock()
	n := len(rl.visitors)
	rl.mu.Unlock()
	if n != 0 {
		t.Fatalf("visitors after gc: got %d, want 0", n)
	}
}

func TestExtractIP(t *testing.T) {
	for addr, want := range map[string]string{
		"192.0.2.1:1234": "192.0.2.1",
		"[::1]:80":       "::1",
		"192.0.2.9":      "192.0.2.9",
	} {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = addr
		if got := ExtractIP(req); got != want {
			t.Errorf("ExtractIP(%q): got %q, want %q", addr, got, want)
		}
	}
}

func TestDefaultAPIStack_RateLimitOptional(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if n := len(DefaultAPIStack(ctx, Config{})); n != 5 {
		t.Fatalf("without rps: got %d middlewares, want 5", n)
	}
	if n := len(DefaultAPIStack(ctx, Config{RPS: 10, Burst: 20})); n != 6 {
		t.Fatalf("with rps: got %d middlewares, want 6", n)
	}
}
