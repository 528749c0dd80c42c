package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/morezero/dbi/internal/config"
	"github.com/morezero/dbi/pkg/clients"
	"github.com/morezero/dbi/pkg/dbi"
	"github.com/morezero/dbi/pkg/events"
	"github.com/morezero/dbi/pkg/registry"
	"github.com/morezero/dbi/pkg/store"
)

const serverTestPrefix = "server:server_test"

// failingStore fails every call.
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("down")
}
func (failingStore) Set(context.Context, string, []byte) error { return errors.New("down") }
func (failingStore) Delete(context.Context, string) error      { return errors.New("down") }
func (failingStore) Has(context.Context, string) (bool, error) { return false, errors.New("down") }

// testServer returns a Server around a dbi instance with one session-less client.
func testServer(t *testing.T, st store.Store) *Server {
	t.Helper()
	bot, err := dbi.New(dbi.NewParams{
		Clients: []*clients.Client{{Name: "test"}},
		Store:   st,
	})
	if err != nil {
		t.Fatalf("%s - dbi.New error: %v", serverTestPrefix, err)
	}
	bot.Register(func(r *registry.Registrar) error {
		r.Locale("en", map[string]interface{}{"hello": "Hello"})
		if err := r.ChatInput(&registry.Definition{Name: "ping", Description: "Pong"}); err != nil {
			return err
		}
		return r.Event(&registry.EventDefinition{Name: "messageCreate", Ordered: true})
	})
	if err := bot.Load(); err != nil {
		t.Fatalf("%s - Load error: %v", serverTestPrefix, err)
	}
	cfg := &config.Config{HealthCheckTimeout: 5 * time.Second}
	return &Server{cfg: cfg, bot: bot}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("%s - ParseLogLevel(%q) = %v, want %v", serverTestPrefix, in, got, want)
		}
	}
}

func TestHandler_Health(t *testing.T) {
	s := testServer(t, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("%s - /health status = %d, want 200", serverTestPrefix, rec.Code)
	}
	var h HealthOutput
	if err := json.NewDecoder(rec.Body).Decode(&h); err != nil {
		t.Fatalf("%s - decode: %v", serverTestPrefix, err)
	}
	if h.Status != "healthy" || !h.Checks.Store || h.Checks.Clients != 1 {
		t.Errorf("%s - health = %+v", serverTestPrefix, h)
	}
}

func TestHandler_HealthStoreDown(t *testing.T) {
	s := testServer(t, failingStore{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("%s - /health status = %d, want 503", serverTestPrefix, rec.Code)
	}
}

func TestHandler_Ready(t *testing.T) {
	s := testServer(t, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ready") {
		t.Errorf("%s - /ready = %d %q", serverTestPrefix, rec.Code, rec.Body.String())
	}
}

func TestHandler_Home(t *testing.T) {
	s := testServer(t, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("%s - / status = %d, want 200", serverTestPrefix, rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"ping", "chatInput", "messageCreate", "en", "healthy"} {
		if !strings.Contains(body, want) {
			t.Errorf("%s - home page should contain %q", serverTestPrefix, want)
		}
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("%s - /nope status = %d, want 404", serverTestPrefix, rec.Code)
	}
}

func TestHandler_Metrics(t *testing.T) {
	s := testServer(t, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "dbi_references") {
		t.Errorf("%s - /metrics = %d, missing dbi collectors", serverTestPrefix, rec.Code)
	}
}

func TestOpenStore(t *testing.T) {
	s := &Server{cfg: &config.Config{StoreBackend: store.BackendMemory}}
	st, err := s.openStore(context.Background())
	if err != nil {
		t.Fatalf("%s - openStore(memory) error: %v", serverTestPrefix, err)
	}
	if _, ok := st.(*store.MemoryStore); !ok {
		t.Errorf("%s - openStore(memory) = %T", serverTestPrefix, st)
	}

	s = &Server{cfg: &config.Config{StoreBackend: "etcd"}}
	if _, err := s.openStore(context.Background()); !errors.Is(err, store.ErrUnsupportedBackend) {
		t.Errorf("%s - openStore(etcd) error = %v", serverTestPrefix, err)
	}
}

func TestOpenPublisher_Disabled(t *testing.T) {
	s := &Server{cfg: &config.Config{}}
	pub, err := s.openPublisher()
	if err != nil {
		t.Fatalf("%s - openPublisher error: %v", serverTestPrefix, err)
	}
	if _, ok := pub.(*events.NoOpPublisher); !ok {
		t.Errorf("%s - openPublisher() = %T, want NoOpPublisher", serverTestPrefix, pub)
	}
	if s.nc != nil {
		t.Errorf("%s - NATS connection opened without COMMS_URL", serverTestPrefix)
	}
}
