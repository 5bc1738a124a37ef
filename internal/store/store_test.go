package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/granaapp/grana-go/internal/domain"
	"github.com/granaapp/grana-go/internal/port"
	"github.com/granaapp/grana-go/internal/store"

	"go.uber.org/zap"
)

// memPersist is an in-memory persistence fake. failNext makes the next
// write fail, to exercise the persist-before-memory contract.
type memPersist struct {
	mu       sync.Mutex
	data     map[string]map[string][]byte
	failNext bool
}

var errBackend = errors.New("backend down")

func newMemPersist() *memPersist {
	return &memPersist{data: make(map[string]map[string][]byte)}
}

func (m *memPersist) takeFailure() bool {
	if m.failNext {
		m.failNext = false
		return true
	}
	return false
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
	if m.takeFailure() {
		return errBackend
	}
	if m.data[collection] == nil {
		m.data[collection] = make(map[string][]byte)
	}
	m.data[collection][key] = item
	return nil
}

func (m *memPersist) Delete(_ context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return errBackend
	}
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

func newTestStore(t *testing.T) (*store.Store, *memPersist) {
	t.Helper()
	mem := newMemPersist()
	st := store.New(mem, zap.NewNop())
	if err := st.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return st, mem
}

func TestPutAccount_WritesThrough(t *testing.T) {
	st, mem := newTestStore(t)
	ctx := context.Background()

	account := domain.Account{ID: "a1", Name: "Checking", Kind: domain.AccountChecking, Balance: 100}
	if err := st.PutAccount(ctx, account); err != nil {
		t.Fatalf("put: %v", err)
	}

	raw, err := mem.Get(ctx, port.ColAccounts, "a1")
	if err != nil || raw == nil {
		t.Fatalf("account not persisted: %v", err)
	}
	var persisted domain.Account
	if err := json.Unmarshal(raw, &persisted); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if persisted.Balance != 100 {
		t.Fatalf("persisted balance = %v, want 100", persisted.Balance)
	}
}

func TestPutAccount_BackendFailureLeavesMemoryUntouched(t *testing.T) {
	st, mem := newTestStore(t)
	ctx := context.Background()

	mem.failNext = true
	err := st.PutAccount(ctx, domain.Account{ID: "a1", Name: "Checking", Kind: domain.AccountChecking})

	var persistence *domain.ErrPersistence
	if !errors.As(err, &persistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if len(st.Accounts()) != 0 {
		t.Fatal("memory mutated despite failed durable write")
	}
}

func TestApplyTransactionAdd_CompoundWrite(t *testing.T) {
	st, mem := newTestStore(t)
	ctx := context.Background()

	account := domain.Account{ID: "a1", Name: "Checking", Kind: domain.AccountChecking, Balance: 100}
	if err := st.PutAccount(ctx, account); err != nil {
		t.Fatalf("put account: %v", err)
	}

	tx := domain.Transaction{ID: "t1", Description: "Dinner", Amount: 40, Date: time.Now(), AccountID: "a1", CategoryID: "c1", Type: domain.TypeExpense}
	account.Balance = 60
	if err := st.ApplyTransactionAdd(ctx, tx, account); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if got, _ := st.Account("a1"); got.Balance != 60 {
		t.Fatalf("balance = %v, want 60", got.Balance)
	}
	if len(st.Transactions()) != 1 {
		t.Fatal("transaction missing from memory")
	}
	if raw, _ := mem.Get(ctx, port.ColTransactions, "t1"); raw == nil {
		t.Fatal("transaction missing from backend")
	}
}

func TestUnlockAchievement_MonotonicAndPersisted(t *testing.T) {
	st, mem := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	ach, fresh, err := st.UnlockAchievement(ctx, "first_step", at)
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if !fresh || !ach.Unlocked() {
		t.Fatalf("expected fresh unlock, got fresh=%v unlocked=%v", fresh, ach.Unlocked())
	}

	// Second unlock is a no-op and keeps the original timestamp.
	ach2, fresh2, err := st.UnlockAchievement(ctx, "first_step", at.Add(time.Hour))
	if err != nil {
		t.Fatalf("re-unlock: %v", err)
	}
	if fresh2 {
		t.Fatal("re-unlock reported as fresh")
	}
	if !ach2.UnlockedAt.Equal(at) {
		t.Fatalf("unlock timestamp moved: %v", ach2.UnlockedAt)
	}

	// A reload from the same backend restores the unlock.
	st2 := store.New(mem, zap.NewNop())
	if err := st2.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	for _, a := range st2.Achievements() {
		if a.ID == "first_step" && !a.Unlocked() {
			t.Fatal("unlock lost on reload")
		}
	}
}

func TestUnlockAchievement_UnknownID(t *testing.T) {
	st, _ := newTestStore(t)

	_, _, err := st.UnlockAchievement(context.Background(), "nope", time.Now())
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLoad_RestoresCollections(t *testing.T) {
	st, mem := newTestStore(t)
	ctx := context.Background()

	if err := st.PutAccount(ctx, domain.Account{ID: "a1", Name: "Checking", Kind: domain.AccountChecking, Balance: 42}); err != nil {
		t.Fatalf("put account: %v", err)
	}
	if err := st.PutCategory(ctx, domain.Category{ID: "c1", Name: "Food", Type: domain.TypeExpense}); err != nil {
		t.Fatalf("put category: %v", err)
	}
	if err := st.PutBudget(ctx, domain.Budget{CategoryID: "c1", Limit: 300}); err != nil {
		t.Fatalf("put budget: %v", err)
	}

	st2 := store.New(mem, zap.NewNop())
	if err := st2.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(st2.Accounts()) != 1 || len(st2.Categories()) != 1 || len(st2.Budgets()) != 1 {
		t.Fatalf("reloaded counts: accounts=%d categories=%d budgets=%d",
			len(st2.Accounts()), len(st2.Categories()), len(st2.Budgets()))
	}
	if got, _ := st2.Account("a1"); got.Balance != 42 {
		t.Fatalf("reloaded balance = %v, want 42", got.Balance)
	}
}

func TestNotifications_CapAndRead(t *testing.T) {
	st, _ := newTestStore(t)
	now := time.Now()

	first := st.Notify("hello", domain.NotifyInfo, now)
	if err := st.MarkNotificationRead(first.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if got := st.Notifications(); !got[0].Read {
		t.Fatal("notification not marked read")
	}

	for i := 0; i < 60; i++ {
		st.Notify("spam", domain.NotifyInfo, now)
	}
	if n := len(st.Notifications()); n != 50 {
		t.Fatalf("feed length = %d, want capped at 50", n)
	}
}
