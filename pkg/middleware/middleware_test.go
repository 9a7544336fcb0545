package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mk := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(mk("outer"), mk("inner"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	want := []string{"outer", "inner", "handler"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("execution order = %v, want %v", order, want)
		}
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want JSON", ct)
	}
}

func TestWriteJSONError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSONError(rr, http.StatusBadRequest, "Bad Request", "trace-123")

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}

	var payload struct {
		Error struct {
			Message string `json:"message"`
			TraceID string `json:"trace_id"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	if payload.Error.Message != "Bad Request" || payload.Error.TraceID != "trace-123" {
		t.Errorf("unexpected error payload: %+v", payload)
	}
}

func TestStatusWriterDefaultsTo200(t *testing.T) {
	rr := httptest.NewRecorder()
	sw := NewStatusWriter(rr)
	if _, err := sw.Write([]byte("hi")); err != nil {
		t.Fatalf("Write() returned error: %v", err)
	}
	if sw.Status() != http.StatusOK {
		t.Errorf("Status() = %d, want 200", sw.Status())
	}
	if sw.BytesWritten() != 2 {
		t.Errorf("BytesWritten() = %d, want 2", sw.BytesWritten())
	}
}

func TestTraceMiddleware(t *testing.T) {
	gen := NewIDGenerator(4)

	var seen string
	h := Trace(gen)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromRequest(r)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if seen == "" {
		t.Error("expected trace ID in request context")
	}
	if got := rr.Header().Get("X-Trace-ID"); got != seen {
		t.Errorf("X-Trace-ID header = %q, want %q", got, seen)
	}
}

func TestTraceMiddlewareHonorsIncomingID(t *testing.T) {
	h := Trace(NewIDGenerator(1))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := TraceIDFromRequest(r); got != "upstream-id" {
			t.Errorf("trace ID = %q, want %q", got, "upstream-id")
		}
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Trace-ID", "upstream-id")
	h.ServeHTTP(httptest.NewRecorder(), req)
}

func TestRateLimiterRejectsBurst(t *testing.T) {
	rl := NewRateLimiter(100, zap.NewNop())
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var rejected int
	for i := 0; i < 30; i++ {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(rr, req)
		if rr.Code == http.StatusTooManyRequests {
			rejected++
		}
	}
	if rejected == 0 {
		t.Error("expected at least one 429 in a 30-request burst at 100 rps")
	}
}

func TestDBSessionNilDBIsNoop(t *testing.T) {
	called := false
	h := DBSession(nil, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if TxFromContext(r.Context()) != nil {
			t.Error("expected no transaction in context")
		}
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if !called {
		t.Error("handler not invoked")
	}
}

func TestTimeoutWrites408(t *testing.T) {
	h := Timeout(10*time.Millisecond, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Sleep well past the deadline so the timeout path always wins.
		time.Sleep(200 * time.Millisecond)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if rr.Code != http.StatusRequestTimeout {
		t.Errorf("status = %d, want 408", rr.Code)
	}
}

func TestTimeoutPassesThroughFastHandlers(t *testing.T) {
	h := Timeout(time.Second, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if rr.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rr.Code)
	}
}

func TestMaxBodySize(t *testing.T) {
	h := MaxBodySize(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := io.ReadAll(r.Body)
		if err == nil {
			t.Error("expected read past limit to fail")
		}
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	}))

	req := httptest.NewRequest("POST", "/", strings.NewReader(strings.Repeat("x", 64)))
	h.ServeHTTP(httptest.NewRecorder(), req)
}
