package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/applyd/internal/config"
	"github.com/garnizeh/applyd/internal/db"
	"github.com/garnizeh/applyd/internal/store"
)

const testPassword = "open-sesame"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.API.JWTSecret = "test-secret"
	cfg.API.OperatorHash = string(hash)
	cfg.API.TokenDuration = time.Hour
	return cfg
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	conn, err := db.New(ctx, ":memory:", testLogger())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := db.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.New(conn, testLogger())
}

// testRouter wires a full router with an in-memory store and no pipeline.
func testRouter(t *testing.T) (*mux.Router, *store.Store) {
	t.Helper()
	st := testStore(t)
	router := SetupRoutes(testConfig(t), "test", "now", st, nil)
	return router, st
}

func do(t *testing.T, router *mux.Router, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func signin(t *testing.T, router *mux.Router) string {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/v1/auth/signin", "", map[string]string{"password": testPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("signin status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Token == "" {
		t.Fatal("empty token")
	}
	return resp.Token
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
