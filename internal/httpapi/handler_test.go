package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lockcase/backend/internal/domain/identity"
	"github.com/lockcase/backend/internal/domain/record"
	"github.com/lockcase/backend/internal/httputil"
	"github.com/lockcase/backend/internal/services/records"
	"github.com/lockcase/backend/internal/services/signup"
	"github.com/lockcase/backend/internal/storage/memory"
)

const testHookSecret = "hook-secret"

type testEnv struct {
	handler   http.Handler
	directory *memory.Directory
}

func newTestEnv() *testEnv {
	directory := memory.NewDirectory()
	locks := records.New(record.KindLock, memory.NewRecordStore(record.KindLock), nil)
	groups := records.New(record.KindGroup, memory.NewRecordStore(record.KindGroup), nil)
	gate := signup.New(directory, nil)

	handler := NewHandler(locks, groups, gate, Config{
		HookSecret:     testHookSecret,
		PoolID:         "pool-1",
		RequestTimeout: 5 * time.Second,
	}, nil)
	return &testEnv{handler: handler, directory: directory}
}

func (e *testEnv) do(t *testing.T, method, path, owner string, body interface{}) (*httptest.ResponseRecorder, httputil.Envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if owner != "" {
		req = req.WithContext(identity.WithCaller(req.Context(), owner))
	}

	resp := httptest.NewRecorder()
	e.handler.ServeHTTP(resp, req)

	var env httputil.Envelope
	if resp.Body.Len() > 0 {
		if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope from %s %s: %v", method, path, err)
		}
	}
	return resp, env
}

func TestCreateAndListLocks(t *testing.T) {
	env := newTestEnv()

	resp, created := env.do(t, http.MethodPost, "/locks", "u1", map[string]string{
		"group": "office",
		"date":  "2026-08-30",
		"name":  "front door",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if created.Message != "Success" || created.StatusCode != http.StatusOK {
		t.Fatalf("unexpected envelope: %+v", created)
	}

	data, _ := json.Marshal(created.Data)
	var rec record.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("decode created record: %v", err)
	}
	if rec.Owner != "u1" || rec.CreatedAt == "" || rec.Group != "office" {
		t.Fatalf("record not stamped correctly: %+v", rec)
	}

	resp, listed := env.do(t, http.MethodGet, "/locks", "u1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	data, _ = json.Marshal(listed.Data)
	var payload struct {
		Locks []record.Record `json:"locks"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode list payload: %v", err)
	}
	if len(payload.Locks) != 1 || payload.Locks[0].CreatedAt != rec.CreatedAt {
		t.Fatalf("created lock not listed: %+v", payload)
	}
}

func TestListsAreOwnerScoped(t *testing.T) {
	env := newTestEnv()

	env.do(t, http.MethodPost, "/groups", "u1", map[string]string{"name": "household"})
	env.do(t, http.MethodPost, "/groups", "u2", map[string]string{"name": "warehouse"})

	_, listed := env.do(t, http.MethodGet, "/groups", "u2", nil)
	data, _ := json.Marshal(listed.Data)
	var payload struct {
		Groups []record.Record `json:"groups"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode list payload: %v", err)
	}
	if len(payload.Groups) != 1 || payload.Groups[0].Owner != "u2" {
		t.Fatalf("expected only u2's group, got %+v", payload.Groups)
	}
}

func TestCombinedRecordsEndpoint(t *testing.T) {
	env := newTestEnv()

	env.do(t, http.MethodPost, "/locks", "u1", map[string]string{"name": "front door"})
	env.do(t, http.MethodPost, "/groups", "u1", map[string]string{"name": "household"})

	resp, combined := env.do(t, http.MethodGet, "/records", "u1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	data, _ := json.Marshal(combined.Data)
	var payload struct {
		Locks  []record.Record `json:"locks"`
		Groups []record.Record `json:"groups"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode combined payload: %v", err)
	}
	if len(payload.Locks) != 1 || len(payload.Groups) != 1 {
		t.Fatalf("expected one of each kind, got %d/%d", len(payload.Locks), len(payload.Groups))
	}
}

func TestOperationsRequireCallerIdentity(t *testing.T) {
	env := newTestEnv()

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/locks"},
		{http.MethodPost, "/locks"},
		{http.MethodGet, "/groups"},
		{http.MethodPost, "/groups"},
		{http.MethodGet, "/records"},
	} {
		resp, env2 := env.do(t, tc.method, tc.path, "", map[string]string{})
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", tc.method, tc.path, resp.Code)
		}
		if env2.Error == nil || env2.Error.Code != "UNAUTHENTICATED" {
			t.Fatalf("%s %s: unexpected envelope %+v", tc.method, tc.path, env2)
		}
	}
}

func TestNoUpdateOrDeleteRoutes(t *testing.T) {
	env := newTestEnv()

	for _, method := range []string{http.MethodPut, http.MethodPatch, http.MethodDelete} {
		for _, path := range []string{"/locks", "/groups"} {
			resp, _ := env.do(t, method, path, "u1", nil)
			if resp.Code != http.StatusMethodNotAllowed {
				t.Fatalf("%s %s: expected 405, got %d", method, path, resp.Code)
			}
		}
	}
}

func TestPreSignupHook(t *testing.T) {
	env := newTestEnv()
	env.directory.Add("pool-1", "taken@example.com")

	do := func(secret string, payload interface{}) (*httptest.ResponseRecorder, httputil.Envelope) {
		var buf bytes.Buffer
		json.NewEncoder(&buf).Encode(payload)
		req := httptest.NewRequest(http.MethodPost, "/hooks/pre-signup", &buf)
		if secret != "" {
			req.Header.Set("X-Hook-Secret", secret)
		}
		resp := httptest.NewRecorder()
		env.handler.ServeHTTP(resp, req)
		var envBody httputil.Envelope
		json.Unmarshal(resp.Body.Bytes(), &envBody)
		return resp, envBody
	}

	resp, _ := do("wrong-secret", map[string]string{"email": "new@example.com"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: expected 401, got %d", resp.Code)
	}

	resp, body := do(testHookSecret, map[string]string{"email": "new@example.com"})
	if resp.Code != http.StatusOK || body.Message != "Success" {
		t.Fatalf("novel email: expected success, got %d %+v", resp.Code, body)
	}

	resp, body = do(testHookSecret, map[string]string{"email": "taken@example.com"})
	if resp.Code != http.StatusConflict {
		t.Fatalf("duplicate email: expected 409, got %d", resp.Code)
	}
	if body.Error == nil || body.Error.Code != "DUPLICATE_IDENTITY" {
		t.Fatalf("duplicate email: unexpected envelope %+v", body)
	}

	resp, body = do(testHookSecret, map[string]string{})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("missing email: expected 400, got %d", resp.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	env.handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}
