package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/granaapp/grana-go/internal/domain"
	"github.com/granaapp/grana-go/internal/infra/observability"
	"github.com/granaapp/grana-go/internal/service"
	"github.com/granaapp/grana-go/internal/store"

	"go.uber.org/zap"
)

// --- Mocks ---

// memPersist is an in-memory persistence fake.
type memPersist struct {
	mu   sync.Mutex
	data map[string]map[string][]byte
}

func newMemPersist() *memPersist {
	return &memPersist{data: make(map[string]map[string][]byte)}
}

func (m *memPersist) GetAll(_ context.Context, collection string) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([][]byte, 0, len(m.data[collection]))
	for _, item := range m.data[collection] {
		items = append(items, item)
	}
	return items, nil
}

func (m *memPersist) Get(_ context.Context, collection, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.data[collection][key]
	if !ok {
		return nil, nil
	}
	return item, nil
}

func (m *memPersist) Put(_ context.Context, collection, key string, item []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[collection] == nil {
		m.data[collection] = make(map[string][]byte)
	}
	m.data[collection][key] = item
	return nil
}

func (m *memPersist) Delete(_ context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[collection], key)
	return nil
}

func (m *memPersist) Clear(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, collection)
	return nil
}

func (m *memPersist) ReplaceAll(_ context.Context, collection string, items [][]byte, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fresh := make(map[string][]byte, len(items))
	for i, item := range items {
		fresh[keys[i]] = item
	}
	m.data[collection] = fresh
	return nil
}

// --- Helpers ---

func newTestFinance(t *testing.T) *service.Finance {
	t.Helper()
	st := store.New(newMemPersist(), zap.NewNop())
	if err := st.Load(context.Background()); err != nil {
		t.Fatalf("load store: %v", err)
	}
	return service.NewFinance(st, observability.NewMetrics(), zap.NewNop(), "test-secret", time.Minute)
}

func testAccount(t *testing.T, svc *service.Finance, balance float64) domain.Account {
	t.Helper()
	account, err := svc.AddAccount(context.Background(), domain.AccountDraft{
		Name:    "Checking",
		Kind:    domain.AccountChecking,
		Balance: balance,
	}, time.Now())
	if err != nil {
		t.Fatalf("add account: %v", err)
	}
	return account
}

func testCategory(t *testing.T, svc *service.Finance, name string, typ domain.TransactionType) domain.Category {
	t.Helper()
	category, err := svc.AddCategory(context.Background(), domain.CategoryDraft{
		Name: name,
		Icon: "tag",
		Type: typ,
	})
	if err != nil {
		t.Fatalf("add category: %v", err)
	}
	return category
}

func accountBalance(t *testing.T, svc *service.Finance, id string) float64 {
	t.Helper()
	for _, account := range svc.ListAccounts(context.Background()) {
		if account.ID == id {
			return account.Balance
		}
	}
	t.Fatalf("account %s not found", id)
	return 0
}
