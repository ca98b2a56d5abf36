package internal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/query"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Store.Path = t.TempDir()
	cfg.App.HTTP.Enabled = false
	cfg.Watch.Debounce = 20 * time.Millisecond
	return cfg
}

func open(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	rt, err := Open(context.Background(), append(opts, WithLogOutput(io.Discard))...)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return rt
}

func TestOpen_PersistsAcrossRuntimes(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	rt := open(t, WithConfig(cfg))
	if _, err := rt.Service.Add(ctx, "first", []string{"a"}); err != nil {
		t.Fatal(err)
	}
	rt.Close()

	rt = open(t, WithConfig(cfg))
	defer rt.Close()
	all, err := rt.Service.Search(ctx, query.All())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Text != "first" {
		t.Fatalf("records after reopen = %+v", all)
	}
}

func TestOpen_RequiresConfig(t *testing.T) {
	if _, err := Open(context.Background()); err == nil {
		t.Fatal("open without config should fail")
	}
}

func TestOpen_EncryptionNeedsPassword(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Encryption = true
	_, err := Open(context.Background(), WithConfig(cfg), WithLogOutput(io.Discard))
	if !errors.Is(err, ErrPasswordRequired) {
		t.Fatalf("err = %v, want ErrPasswordRequired", err)
	}
}

func TestOpen_WrongPassword(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Encryption = true
	ctx := context.Background()

	rt := open(t, WithConfig(cfg), WithPassword("right"))
	if _, err := rt.Service.Add(ctx, "secret", nil); err != nil {
		t.Fatal(err)
	}
	rt.Close()

	_, err := Open(ctx, WithConfig(cfg), WithPassword("wrong"), WithLogOutput(io.Discard))
	if !errors.Is(err, apperr.ErrWrongPassword) {
		t.Fatalf("err = %v, want ErrWrongPassword", err)
	}
}

func TestRouter_Health(t *testing.T) {
	rt := open(t, WithConfig(testConfig(t)))
	defer rt.Close()
	router := rt.Router()

	for _, path := range []string{"/health/live", "/health/ready"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, w.Code)
		}
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if _, ok := body["pending"]; !ok {
		t.Errorf("ready body = %v, want pending count", body)
	}
}

func TestRouter_MountsAPI(t *testing.T) {
	rt := open(t, WithConfig(testConfig(t)))
	defer rt.Close()

	w := httptest.NewRecorder()
	rt.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/records", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, WithConfig(cfg), WithLogOutput(io.Discard))
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
