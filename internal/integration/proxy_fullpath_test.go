package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/lin-gate/lingate/internal/adapter/inbound/admin"
	httpx "github.com/lin-gate/lingate/internal/adapter/inbound/http"
	"github.com/lin-gate/lingate/internal/adapter/outbound/sqlite"
	"github.com/lin-gate/lingate/internal/adapter/outbound/upstream"
	"github.com/lin-gate/lingate/internal/cryptor"
	"github.com/lin-gate/lingate/internal/domain/auditlog"
	"github.com/lin-gate/lingate/internal/domain/auth"
	"github.com/lin-gate/lingate/internal/service"
)

const (
	testKey = "0123456789abcdef"
	testIV  = "fedcba9876543210"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCryptor(t *testing.T) *cryptor.Cryptor {
	t.Helper()
	c, err := cryptor.New([]byte(testKey), []byte(testIV))
	if err != nil {
		t.Fatalf("cryptor: %v", err)
	}
	return c
}

// env is the full stack wired the way cmd/lingate/cmd.run does it:
// SQLite stores, cryptor, upstream client, intercept service, admin API,
// and the HTTP transport in front of everything.
type env struct {
	handler http.Handler
	crypt   *cryptor.Cryptor
	logs    *sqlite.LogStore
}

func newEnv(t *testing.T, upstreamHandler http.HandlerFunc) *env {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "lingate.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := sqlite.Bootstrap(context.Background(), db); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	crypt := newTestCryptor(t)

	target := httptest.NewServer(upstreamHandler)
	t.Cleanup(target.Close)

	ruleStore := sqlite.NewRuleStore(db)
	logStore := sqlite.NewLogStore(db)
	settingStore := sqlite.NewSettingStore(db)
	commandStore := sqlite.NewCommandStore(db)

	svc := service.NewInterceptService(crypt, ruleStore, logStore,
		upstream.New(target.URL),
		service.WithCommandStore(commandStore),
		service.WithLogger(testLogger()),
	)

	issuer := auth.NewTokenIssuer("integration-secret", auth.DefaultTokenTTL)
	adminHandler := admin.NewHandler(settingStore, ruleStore, logStore, commandStore, issuer,
		admin.WithLogger(testLogger()),
	)

	transport := httpx.NewTransport(svc,
		httpx.WithAdminHandler(adminHandler.Routes()),
		httpx.WithHealthChecker(httpx.NewHealthChecker(db, "test")),
		httpx.WithLogger(testLogger()),
	)
	svc.SetMetrics(transport.Metrics())

	return &env{
		handler: transport.Handler(),
		crypt:   crypt,
		logs:    logStore,
	}
}

// encRequest builds the endpoint wire format: a JSON envelope whose params
// field is the encrypted JSON of the real parameters.
func (e *env) encRequest(t *testing.T, method string, params map[string]any) []byte {
	t.Helper()
	plain, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	body, err := json.Marshal(map[string]any{
		"method": method,
		"params": e.crypt.Encrypt(string(plain)),
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return body
}

func (e *env) post(t *testing.T, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/public-interface.php", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// adminDo sends an authenticated admin API request, logging in first.
func (e *env) adminDo(t *testing.T, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	login, _ := json.Marshal(map[string]string{"password": sqlite.DefaultAdminPassword})
	loginReq := httptest.NewRequest(http.MethodPost, "/admin/api/login", bytes.NewReader(login))
	loginRec := httptest.NewRecorder()
	e.handler.ServeHTTP(loginRec, loginReq)
	if loginRec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body: %s", loginRec.Code, loginRec.Body.String())
	}
	var tok struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(loginRec.Body.Bytes(), &tok); err != nil {
		t.Fatalf("decode login response: %v", err)
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// TestFullPath_PassthroughExchange walks an exchange end to end:
// transport -> intercept service -> upstream -> response re-encryption,
// with the audit trail landing in SQLite.
func TestFullPath_PassthroughExchange(t *testing.T) {
	crypt := newTestCryptor(t)
	var seenUpstream []byte
	e := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		seenUpstream, _ = io.ReadAll(r.Body)
		_, _ = fmt.Fprint(w, crypt.Encrypt(`{"code":0,"data":"ok"}`))
	})

	rec := e.post(t, e.encRequest(t, "getinfo", map[string]any{
		"email": "user@example.com",
		"sn":    "SN-1001",
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}

	// The upstream saw a well-formed envelope with an encrypted params string.
	var fwd struct {
		Method string `json:"method"`
		Params string `json:"params"`
	}
	if err := json.Unmarshal(seenUpstream, &fwd); err != nil {
		t.Fatalf("decode forwarded body: %v", err)
	}
	if fwd.Method != "getinfo" {
		t.Errorf("forwarded method = %q, want %q", fwd.Method, "getinfo")
	}
	if _, err := e.crypt.Decrypt(fwd.Params); err != nil {
		t.Errorf("forwarded params not decryptable: %v", err)
	}

	// The endpoint receives an encrypted body that decrypts to the upstream plain.
	plain, err := e.crypt.Decrypt(rec.Body.String())
	if err != nil {
		t.Fatalf("response not decryptable: %v", err)
	}
	if plain != `{"code":0,"data":"ok"}` {
		t.Errorf("response plain = %q", plain)
	}

	// The exchange is in the audit log.
	records, total, err := e.logs.List(context.Background(), auditlog.Filter{Limit: 10})
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if total != 1 || len(records) != 1 {
		t.Fatalf("log count = %d (total %d), want 1", len(records), total)
	}
	if records[0].Method != "getinfo" || records[0].Email != "user@example.com" {
		t.Errorf("log record = %+v", records[0])
	}
}

// TestFullPath_AdminRuleShortCircuits creates a replace rule through the
// admin API and verifies the next matching exchange is answered locally.
func TestFullPath_AdminRuleShortCircuits(t *testing.T) {
	upstreamHits := 0
	e := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		upstreamHits++
		w.WriteHeader(http.StatusOK)
	})

	rec := e.adminDo(t, http.MethodPost, "/admin/api/rules", map[string]any{
		"method_name":     "getpolicy",
		"action":          "replace",
		"custom_response": `{"code":0,"data":{}}`,
		"is_enabled":      true,
		"is_global":       true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create rule status = %d, body: %s", rec.Code, rec.Body.String())
	}

	resp := e.post(t, e.encRequest(t, "getpolicy", map[string]any{
		"email": "user@example.com",
	}))
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", resp.Code, resp.Body.String())
	}
	if upstreamHits != 0 {
		t.Errorf("upstream hits = %d, want 0", upstreamHits)
	}

	plain, err := e.crypt.Decrypt(resp.Body.String())
	if err != nil {
		t.Fatalf("response not decryptable: %v", err)
	}
	if plain != `{"code":0,"data":{}}` {
		t.Errorf("response plain = %q", plain)
	}

	// Non-matching methods still reach the upstream.
	e.post(t, e.encRequest(t, "getinfo", map[string]any{"email": "user@example.com"}))
	if upstreamHits != 1 {
		t.Errorf("upstream hits after non-matching call = %d, want 1", upstreamHits)
	}
}
