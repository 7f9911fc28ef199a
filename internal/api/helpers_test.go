package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/posematch/posematch/internal/db"
	"github.com/posematch/posematch/internal/library"
	"github.com/posematch/posematch/internal/scoring"
)

const testToken = "test-token-0123456789"

type testEnv struct {
	cfg    ServerConfig
	router http.Handler
	svc    *library.Service
	repo   library.Repository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := library.NewRepository(database.Conn())
	if err := repo.SetConfig(context.Background(), AuthTokenKey, testToken); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}

	comparator, err := scoring.NewComparator(scoring.DefaultOptions())
	if err != nil {
		t.Fatalf("NewComparator() error = %v", err)
	}
	svc := library.NewService(repo, comparator, logger)

	cfg := ServerConfig{
		ExportDir:   t.TempDir(),
		Service:     svc,
		Repository:  repo,
		Runner:      library.NewRunner(svc, repo, nil, time.Hour, logger),
		Logger:      logger,
		StartTime:   time.Now(),
		DeviceID:    "test-device",
		Version:     "test",
		TimingBlend: scoring.DefaultTimingBlend,
	}
	return &testEnv{cfg: cfg, router: NewRouter(cfg), svc: svc, repo: repo}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json.Marshal error: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "127.0.0.1:40000"
	req.Header.Set("Authorization", "Bearer "+testToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode JSON body %q: %v", rr.Body.String(), err)
	}
	return body
}

func expectCode(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rr.Code, status, rr.Body.String())
	}
	if code == "" {
		return
	}
	if got := decodeJSONBody(t, rr)["code"]; got != code {
		t.Errorf("error code = %v, want %s", got, code)
	}
}

func newAuthedRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	return req
}

func serve(e *testEnv, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}
