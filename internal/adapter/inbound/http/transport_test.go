package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lin-gate/lingate/internal/service"
)

type stubInterceptor struct {
	gotPath string
	gotBody []byte
	reply   *service.Exchange
}

func (s *stubInterceptor) Handle(ctx context.Context, path string, body []byte) *service.Exchange {
	s.gotPath = path
	s.gotBody = body
	return s.reply
}

func newTestTransport(stub *stubInterceptor, opts ...Option) *Transport {
	return NewTransport(stub, opts...)
}

func TestHandler_InterceptRoute(t *testing.T) {
	stub := &stubInterceptor{reply: &service.Exchange{Status: 200, Body: []byte(`encrypted-blob`)}}
	h := newTestTransport(stub).Handler()

	req := httptest.NewRequest(http.MethodPost, "/public-interface.php", strings.NewReader(`{"method":"getCmd"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != "encrypted-blob" {
		t.Errorf("body = %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	if stub.gotPath != "/public-interface.php" {
		t.Errorf("pipeline path = %q", stub.gotPath)
	}
	if string(stub.gotBody) != `{"method":"getCmd"}` {
		t.Errorf("pipeline body = %q", stub.gotBody)
	}
}

func TestHandler_InterceptStatusPassedThrough(t *testing.T) {
	stub := &stubInterceptor{reply: &service.Exchange{Status: 502, Body: []byte(`{"error":"x"}`)}}
	h := newTestTransport(stub).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/public-interface.php", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want pipeline status", rec.Code)
	}
}

func TestHandler_CustomInterceptPath(t *testing.T) {
	stub := &stubInterceptor{reply: &service.Exchange{Status: 200}}
	h := newTestTransport(stub, WithInterceptPath("/gateway")).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/gateway", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("custom path status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/public-interface.php", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("default path status = %d, want 404 when overridden", rec.Code)
	}
}

func TestHandler_RootStatus(t *testing.T) {
	stub := &stubInterceptor{reply: &service.Exchange{Status: 200}}
	h := newTestTransport(stub).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "running" {
		t.Errorf("body = %v", body)
	}
}

func TestHandler_RequestIDEchoed(t *testing.T) {
	stub := &stubInterceptor{reply: &service.Exchange{Status: 200}}
	h := newTestTransport(stub).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("generated request id not echoed")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "fixed-id" {
		t.Errorf("echoed id = %q", got)
	}
}

func TestHandler_HealthAndMetrics(t *testing.T) {
	stub := &stubInterceptor{reply: &service.Exchange{Status: 200}}
	h := newTestTransport(stub, WithHealthChecker(NewHealthChecker(nil, "test"))).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
	var health HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "healthy" || health.Version != "test" {
		t.Errorf("health = %+v", health)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("metrics output missing runtime collectors")
	}
}

func TestHandler_AdminMount(t *testing.T) {
	admin := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	stub := &stubInterceptor{reply: &service.Exchange{Status: 200}}
	h := newTestTransport(stub, WithAdminHandler(admin)).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/api/rules", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("admin mount status = %d", rec.Code)
	}
}

func TestMetricsMiddleware_CountsRequests(t *testing.T) {
	stub := &stubInterceptor{reply: &service.Exchange{Status: 200}}
	tr := newTestTransport(stub)
	h := tr.Handler()

	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `lingate_http_requests_total{path="/",status="200"} 3`) {
		t.Error("request counter not recorded")
	}
}
