package rest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/granaapp/grana-go/internal/infra/cache"
	"github.com/granaapp/grana-go/internal/infra/resilience"
	"github.com/granaapp/grana-go/internal/infra/rest"

	"go.uber.org/zap"
)

type wireRow struct {
	Key string          `json:"key"`
	Doc json.RawMessage `json:"doc"`
}

// fakeBackend imitates the document API: one table per collection with
// key/doc rows, key=eq and key=neq filters, upsert on POST.
type fakeBackend struct {
	mu     sync.Mutex
	tables map[string]map[string]json.RawMessage
	hits   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{tables: make(map[string]map[string]json.RawMessage)}
}

func (f *fakeBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.hits++

		collection := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
		query, _ := url.ParseQuery(r.URL.RawQuery)
		table := f.tables[collection]

		switch r.Method {
		case http.MethodGet:
			rows := []wireRow{}
			if eq := query.Get("key"); strings.HasPrefix(eq, "eq.") {
				if doc, ok := table[strings.TrimPrefix(eq, "eq.")]; ok {
					rows = append(rows, wireRow{Key: strings.TrimPrefix(eq, "eq."), Doc: doc})
				}
			} else {
				for k, doc := range table {
					rows = append(rows, wireRow{Key: k, Doc: doc})
				}
			}
			json.NewEncoder(w).Encode(rows)

		case http.MethodPost:
			var incoming []wireRow
			body := json.RawMessage{}
			json.NewDecoder(r.Body).Decode(&body)
			if err := json.Unmarshal(body, &incoming); err != nil {
				var one wireRow
				if err := json.Unmarshal(body, &one); err != nil {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				incoming = []wireRow{one}
			}
			if f.tables[collection] == nil {
				f.tables[collection] = make(map[string]json.RawMessage)
			}
			for _, row := range incoming {
				f.tables[collection][row.Key] = row.Doc
			}
			w.WriteHeader(http.StatusCreated)

		case http.MethodDelete:
			filter := query.Get("key")
			switch {
			case strings.HasPrefix(filter, "eq."):
				delete(table, strings.TrimPrefix(filter, "eq."))
			case strings.HasPrefix(filter, "neq."):
				f.tables[collection] = make(map[string]json.RawMessage)
			default:
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

type fakeMeter struct {
	mu              sync.Mutex
	hits, misses    int
	backendFailures int
}

func (m *fakeMeter) IncrCacheHit(string)  { m.mu.Lock(); m.hits++; m.mu.Unlock() }
func (m *fakeMeter) IncrCacheMiss(string) { m.mu.Lock(); m.misses++; m.mu.Unlock() }
func (m *fakeMeter) IncrPersistenceError(string) {
	m.mu.Lock()
	m.backendFailures++
	m.mu.Unlock()
}

func newTestClient(t *testing.T) (*rest.Client, *fakeBackend, *fakeMeter) {
	t.Helper()
	backend := newFakeBackend()
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	meter := &fakeMeter{}
	client := rest.NewClient(
		srv.Client(),
		srv.URL,
		"test-key",
		resilience.NewCircuitBreaker("test"),
		resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxConcurrency: 4},
		cache.New[[][]byte](time.Minute),
		meter,
		zap.NewNop(),
	)
	return client, backend, meter
}

func TestPutGetRoundTrip(t *testing.T) {
	client, _, _ := newTestClient(t)
	ctx := context.Background()

	if err := client.Put(ctx, "accounts", "a1", []byte(`{"id":"a1","balance":100}`)); err != nil {
		t.Fatalf("put: %v", err)
	}

	item, err := client.Get(ctx, "accounts", "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(item, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc["id"] != "a1" {
		t.Fatalf("doc = %v", doc)
	}

	// Absent keys come back as (nil, nil).
	item, err = client.Get(ctx, "accounts", "missing")
	if err != nil || item != nil {
		t.Fatalf("absent get = (%v, %v)", item, err)
	}
}

func TestGetAll_CachesUntilWrite(t *testing.T) {
	client, backend, meter := newTestClient(t)
	ctx := context.Background()

	if err := client.Put(ctx, "accounts", "a1", []byte(`{"id":"a1"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}

	if _, err := client.GetAll(ctx, "accounts"); err != nil {
		t.Fatalf("first get all: %v", err)
	}
	before := backend.hits
	if _, err := client.GetAll(ctx, "accounts"); err != nil {
		t.Fatalf("second get all: %v", err)
	}
	if backend.hits != before {
		t.Fatal("second GetAll hit the backend instead of the cache")
	}
	if meter.hits == 0 {
		t.Fatal("cache hit not recorded")
	}

	// A write flushes the cache.
	if err := client.Put(ctx, "accounts", "a2", []byte(`{"id":"a2"}`)); err != nil {
		t.Fatalf("second put: %v", err)
	}
	items, err := client.GetAll(ctx, "accounts")
	if err != nil {
		t.Fatalf("get all after write: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items after write = %d, want 2", len(items))
	}
}

func TestReplaceAllAndClear(t *testing.T) {
	client, _, _ := newTestClient(t)
	ctx := context.Background()

	if err := client.Put(ctx, "goals", "old", []byte(`{"id":"old"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}

	items := [][]byte{[]byte(`{"id":"g1"}`), []byte(`{"id":"g2"}`)}
	if err := client.ReplaceAll(ctx, "goals", items, []string{"g1", "g2"}); err != nil {
		t.Fatalf("replace all: %v", err)
	}
	all, err := client.GetAll(ctx, "goals")
	if err != nil || len(all) != 2 {
		t.Fatalf("after replace = %d items, err %v", len(all), err)
	}

	if err := client.Clear(ctx, "goals"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	all, err = client.GetAll(ctx, "goals")
	if err != nil || len(all) != 0 {
		t.Fatalf("after clear = %d items, err %v", len(all), err)
	}
}

func TestBackendErrorSurfacesAndCounts(t *testing.T) {
	backend := newFakeBackend()
	srv := httptest.NewServer(backend.handler())
	srv.Close() // kill it so every call fails

	meter := &fakeMeter{}
	client := rest.NewClient(
		&http.Client{Timeout: time.Second},
		srv.URL,
		"test-key",
		resilience.NewCircuitBreaker("test-down"),
		resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxConcurrency: 2},
		cache.New[[][]byte](time.Minute),
		meter,
		zap.NewNop(),
	)

	if err := client.Put(context.Background(), "accounts", "a1", []byte(`{}`)); err == nil {
		t.Fatal("expected error from dead backend")
	}
	if meter.backendFailures == 0 {
		t.Fatal("persistence error not recorded")
	}
}
