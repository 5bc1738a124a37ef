package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/granaapp/grana-go/internal/domain"
	"github.com/granaapp/grana-go/internal/handler"
	"github.com/granaapp/grana-go/internal/infra/jsonfile"
	"github.com/granaapp/grana-go/internal/infra/observability"
	"github.com/granaapp/grana-go/internal/service"
	"github.com/granaapp/grana-go/internal/store"

	"go.uber.org/zap"
)

func newEngine(t *testing.T, dataFile string) http.Handler {
	t.Helper()
	persist, err := jsonfile.Open(dataFile, zap.NewNop())
	if err != nil {
		t.Fatalf("open data file: %v", err)
	}
	st := store.New(persist, zap.NewNop())
	if err := st.Load(context.Background()); err != nil {
		t.Fatalf("load store: %v", err)
	}
	metrics := observability.NewMetrics()
	svc := service.NewFinance(st, metrics, zap.NewNop(), "integration-secret", time.Minute)
	return handler.NewRouter(svc, metrics, zap.NewNop(), []string{"*"})
}

func call(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// TestIntegration_FullFlow drives the whole engine over HTTP against the
// JSON file backend: onboarding, ledger, budget, goal, analytics, export,
// and finally a process "restart" that must restore everything from disk.
func TestIntegration_FullFlow(t *testing.T) {
	dataFile := filepath.Join(t.TempDir(), "grana-data.json")
	router := newEngine(t, dataFile)

	// --- Onboarding ---
	rec := call(t, router, http.MethodPost, "/v1/profile/onboarding", map[string]any{
		"name": "Alex", "openingBalance": 2000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("onboarding: %d %s", rec.Code, rec.Body.String())
	}

	rec = call(t, router, http.MethodGet, "/v1/accounts", nil)
	var accounts []domain.Account
	json.Unmarshal(rec.Body.Bytes(), &accounts)
	if len(accounts) != 1 {
		t.Fatalf("accounts after onboarding = %d", len(accounts))
	}
	accountID := accounts[0].ID

	rec = call(t, router, http.MethodGet, "/v1/categories", nil)
	var categories []domain.Category
	json.Unmarshal(rec.Body.Bytes(), &categories)
	var foodID string
	for _, c := range categories {
		if c.Type == domain.TypeExpense {
			foodID = c.ID
			break
		}
	}
	if foodID == "" {
		t.Fatal("no expense category seeded")
	}

	// --- Ledger ---
	rec = call(t, router, http.MethodPost, "/v1/transactions", map[string]any{
		"description": "Groceries", "amount": 150,
		"date":      time.Now().Format(time.RFC3339),
		"accountId": accountID, "categoryId": foodID, "type": "expense",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transaction: %d %s", rec.Code, rec.Body.String())
	}

	// --- Budget ---
	rec = call(t, router, http.MethodPut, "/v1/budgets/"+foodID, map[string]any{"limit": 400})
	if rec.Code != http.StatusOK {
		t.Fatalf("set budget: %d %s", rec.Code, rec.Body.String())
	}
	var status domain.BudgetStatus
	json.Unmarshal(rec.Body.Bytes(), &status)
	if status.Spent != 150 {
		t.Fatalf("budget spent = %v, want 150", status.Spent)
	}

	// --- Goal ---
	rec = call(t, router, http.MethodPost, "/v1/goals", map[string]any{
		"name": "Vacation", "targetAmount": 500,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create goal: %d %s", rec.Code, rec.Body.String())
	}
	var goal domain.Goal
	json.Unmarshal(rec.Body.Bytes(), &goal)

	rec = call(t, router, http.MethodPost, "/v1/goals/"+goal.ID+"/fund", map[string]any{"amount": 500})
	if rec.Code != http.StatusOK {
		t.Fatalf("fund goal: %d %s", rec.Code, rec.Body.String())
	}
	json.Unmarshal(rec.Body.Bytes(), &goal)
	if !goal.Completed {
		t.Fatal("goal not completed at target")
	}

	// --- Achievements ---
	rec = call(t, router, http.MethodGet, "/v1/achievements", nil)
	var achievements []domain.Achievement
	json.Unmarshal(rec.Body.Bytes(), &achievements)
	unlocked := map[string]bool{}
	for _, a := range achievements {
		if a.Unlocked() {
			unlocked[a.ID] = true
		}
	}
	for _, want := range []string{"first_step", "saver_bronze", "goal_hunter", "responsible"} {
		if !unlocked[want] {
			t.Fatalf("achievement %s not unlocked, have %v", want, unlocked)
		}
	}

	// --- Analytics ---
	rec = call(t, router, http.MethodGet, "/v1/analytics/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
	var health domain.FinancialHealth
	json.Unmarshal(rec.Body.Bytes(), &health)
	if health.XP <= health.Score {
		t.Fatalf("xp %v should include unlocked rewards above score %v", health.XP, health.Score)
	}

	// --- Restart: a new engine on the same file must restore everything ---
	restarted := newEngine(t, dataFile)

	rec = call(t, restarted, http.MethodGet, "/v1/accounts/"+accountID+"/balance", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("balance after restart: %d", rec.Code)
	}
	var balance map[string]any
	json.Unmarshal(rec.Body.Bytes(), &balance)
	if balance["balance"].(float64) != 1850 {
		t.Fatalf("balance after restart = %v, want 1850", balance["balance"])
	}

	rec = call(t, restarted, http.MethodGet, "/v1/achievements", nil)
	json.Unmarshal(rec.Body.Bytes(), &achievements)
	for _, a := range achievements {
		if unlocked[a.ID] && !a.Unlocked() {
			t.Fatalf("achievement %s lost on restart", a.ID)
		}
	}
}

// TestIntegration_ExportImportReset covers the backup surface end to end.
func TestIntegration_ExportImportReset(t *testing.T) {
	dataFile := filepath.Join(t.TempDir(), "grana-data.json")
	router := newEngine(t, dataFile)

	call(t, router, http.MethodPost, "/v1/profile/onboarding", map[string]any{
		"name": "Alex", "openingBalance": 1000,
	})

	rec := call(t, router, http.MethodGet, "/v1/data/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d", rec.Code)
	}
	snapshot := rec.Body.Bytes()

	rec = call(t, router, http.MethodPost, "/v1/data/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: %d", rec.Code)
	}
	rec = call(t, router, http.MethodGet, "/v1/accounts", nil)
	var accounts []domain.Account
	json.Unmarshal(rec.Body.Bytes(), &accounts)
	if len(accounts) != 0 {
		t.Fatalf("accounts after reset = %d", len(accounts))
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/data/import", bytes.NewReader(snapshot))
	imp := httptest.NewRecorder()
	router.ServeHTTP(imp, req)
	if imp.Code != http.StatusOK {
		t.Fatalf("import: %d %s", imp.Code, imp.Body.String())
	}

	rec = call(t, router, http.MethodGet, "/v1/accounts", nil)
	json.Unmarshal(rec.Body.Bytes(), &accounts)
	if len(accounts) != 1 || accounts[0].Balance != 1000 {
		t.Fatalf("accounts after import = %+v", accounts)
	}
}
