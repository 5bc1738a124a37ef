package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/granaapp/grana-go/internal/domain"
)

func TestSetBudget_StatusAndRemoval(t *testing.T) {
	svc := newTestFinance(t)
	ctx := context.Background()
	now := time.Now()

	account := testAccount(t, svc, 1000)
	food := testCategory(t, svc, "Food", domain.TypeExpense)

	if err := svc.SetBudget(ctx, food.ID, 300, now); err != nil {
		t.Fatalf("set budget: %v", err)
	}
	if _, err := svc.AddTransaction(ctx, draft("Groceries", 350, domain.TypeExpense, account.ID, food.ID, now), now); err != nil {
		t.Fatalf("add expense: %v", err)
	}

	status, err := svc.BudgetStatus(ctx, food.ID, now)
	if err != nil {
		t.Fatalf("budget status: %v", err)
	}
	if status.Spent != 350 {
		t.Fatalf("spent = %v, want 350", status.Spent)
	}
	// Over-budget percent is capped at 100.
	if status.Percent != 100 {
		t.Fatalf("percent = %v, want 100", status.Percent)
	}

	// Limit <= 0 removes the budget.
	if err := svc.SetBudget(ctx, food.ID, 0, now); err != nil {
		t.Fatalf("remove budget: %v", err)
	}
	if n := len(svc.ListBudgets(ctx)); n != 0 {
		t.Fatalf("budget count = %d, want 0", n)
	}
	status, err = svc.BudgetStatus(ctx, food.ID, now)
	if err != nil {
		t.Fatalf("status without budget: %v", err)
	}
	if status.Limit != 0 || status.Percent != 0 {
		t.Fatalf("unbudgeted status = %+v, want zero limit and percent", status)
	}
}

func TestSetBudget_UnknownCategory(t *testing.T) {
	svc := newTestFinance(t)

	err := svc.SetBudget(context.Background(), "nope", 100, time.Now())
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFundGoal_CompletionFiresOnce(t *testing.T) {
	svc := newTestFinance(t)
	ctx := context.Background()
	now := time.Now()

	goal, err := svc.AddGoal(ctx, domain.GoalDraft{Name: "Trip", TargetAmount: 100}, now)
	if err != nil {
		t.Fatalf("add goal: %v", err)
	}

	goal, err = svc.FundGoal(ctx, goal.ID, 60, now)
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	if goal.Completed {
		t.Fatal("goal completed too early")
	}

	goal, err = svc.FundGoal(ctx, goal.ID, 50, now)
	if err != nil {
		t.Fatalf("fund to completion: %v", err)
	}
	if !goal.Completed {
		t.Fatal("goal should be completed at 110/100")
	}

	// Funding past the target must not re-fire completion.
	if _, err := svc.FundGoal(ctx, goal.ID, 10, now); err != nil {
		t.Fatalf("fund past target: %v", err)
	}

	reached := 0
	for _, n := range svc.Notifications(ctx) {
		if strings.Contains(n.Message, "GOAL REACHED") {
			reached++
		}
	}
	if reached != 1 {
		t.Fatalf("completion notifications = %d, want 1", reached)
	}
}

func TestFundGoal_InvalidAmount(t *testing.T) {
	svc := newTestFinance(t)
	ctx := context.Background()
	now := time.Now()

	goal, err := svc.AddGoal(ctx, domain.GoalDraft{Name: "Trip", TargetAmount: 100}, now)
	if err != nil {
		t.Fatalf("add goal: %v", err)
	}

	var validation *domain.ErrValidation
	if _, err := svc.FundGoal(ctx, goal.ID, -5, now); !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSuggest_MostRecentMatchWins(t *testing.T) {
	svc := newTestFinance(t)
	ctx := context.Background()

	account := testAccount(t, svc, 1000)
	other := testAccount(t, svc, 1000)
	food := testCategory(t, svc, "Food", domain.TypeExpense)
	transport := testCategory(t, svc, "Transport", domain.TypeExpense)

	older := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	newer := time.Date(2025, time.March, 9, 12, 0, 0, 0, time.UTC)

	if _, err := svc.AddTransaction(ctx, draft("Uber eats", 40, domain.TypeExpense, account.ID, food.ID, older), older); err != nil {
		t.Fatalf("add older: %v", err)
	}
	if _, err := svc.AddTransaction(ctx, draft("Uber trip downtown", 25, domain.TypeExpense, other.ID, transport.ID, newer), newer); err != nil {
		t.Fatalf("add newer: %v", err)
	}

	got := svc.Suggest(ctx, "uber")
	if got.CategoryID != transport.ID || got.AccountID != other.ID {
		t.Fatalf("suggestion = %+v, want most recent match", got)
	}

	// Below three characters no suggestion is made.
	if got := svc.Suggest(ctx, "ub"); got != (domain.Suggestion{}) {
		t.Fatalf("short needle suggestion = %+v, want empty", got)
	}

	if got := svc.Suggest(ctx, "netflix"); got != (domain.Suggestion{}) {
		t.Fatalf("unmatched suggestion = %+v, want empty", got)
	}
}

func TestAchievements_UnlockAndStayUnlocked(t *testing.T) {
	svc := newTestFinance(t)
	ctx := context.Background()
	now := time.Now()

	account := testAccount(t, svc, 0)
	salary := testCategory(t, svc, "Salary", domain.TypeIncome)

	tx, err := svc.AddTransaction(ctx, draft("Paycheck", 1500, domain.TypeIncome, account.ID, salary.ID, now), now)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	unlocked := map[string]bool{}
	for _, a := range svc.ListAchievements(ctx) {
		if a.Unlocked() {
			unlocked[a.ID] = true
		}
	}
	if !unlocked["first_step"] || !unlocked["saver_bronze"] {
		t.Fatalf("expected first_step and saver_bronze unlocked, got %v", unlocked)
	}
	if unlocked["saver_gold"] {
		t.Fatal("saver_gold unlocked at 1500 balance")
	}

	// Deleting the transaction drops the balance but never relocks.
	if err := svc.DeleteTransaction(ctx, tx.ID, now); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, a := range svc.ListAchievements(ctx) {
		if unlocked[a.ID] && !a.Unlocked() {
			t.Fatalf("achievement %s was relocked", a.ID)
		}
	}
}

func TestAchievements_InvestorCondition(t *testing.T) {
	svc := newTestFinance(t)
	ctx := context.Background()

	if _, err := svc.AddAccount(ctx, domain.AccountDraft{
		Name: "Broker", Kind: domain.AccountInvestment,
	}, time.Now()); err != nil {
		t.Fatalf("add account: %v", err)
	}

	for _, a := range svc.ListAchievements(ctx) {
		if a.ID == "investor" && !a.Unlocked() {
			t.Fatal("investor achievement not unlocked")
		}
	}
}

func TestImport_RejectsMissingCollections(t *testing.T) {
	svc := newTestFinance(t)
	ctx := context.Background()
	now := time.Now()

	account := testAccount(t, svc, 500)

	payloads := []string{
		`{`,
		`{"accounts": [], "categories": []}`,
		`{"transactions": [], "categories": []}`,
		`{"transactions": [], "accounts": []}`,
	}
	for _, p := range payloads {
		var importFormat *domain.ErrImportFormat
		if err := svc.Import(ctx, []byte(p), now); !errors.As(err, &importFormat) {
			t.Fatalf("payload %q: expected import format error, got %v", p, err)
		}
	}

	// A rejected import leaves the state untouched.
	if got := accountBalance(t, svc, account.ID); got != 500 {
		t.Fatalf("balance after rejected imports = %v, want 500", got)
	}
}

func TestImportExport_RoundTrip(t *testing.T) {
	svc := newTestFinance(t)
	ctx := context.Background()
	now := time.Now()

	account := testAccount(t, svc, 1000)
	food := testCategory(t, svc, "Food", domain.TypeExpense)
	if _, err := svc.AddTransaction(ctx, draft("Dinner", 100, domain.TypeExpense, account.ID, food.ID, now), now); err != nil {
		t.Fatalf("add: %v", err)
	}

	snap := svc.Export(ctx, now)
	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	fresh := newTestFinance(t)
	if err := fresh.Import(ctx, raw, now); err != nil {
		t.Fatalf("import: %v", err)
	}

	if n := len(fresh.ListTransactions(ctx)); n != 1 {
		t.Fatalf("imported transactions = %d, want 1", n)
	}
	if got := accountBalance(t, fresh, account.ID); got != 900 {
		t.Fatalf("imported balance = %v, want 900", got)
	}
	if n := len(fresh.ListCategories(ctx)); n != 1 {
		t.Fatalf("imported categories = %d, want 1", n)
	}
}

func TestOnboarding_SeedsDefaults(t *testing.T) {
	svc := newTestFinance(t)
	ctx := context.Background()

	if err := svc.CompleteOnboarding(ctx, "Alex", 2500, time.Now()); err != nil {
		t.Fatalf("onboarding: %v", err)
	}

	profile := svc.Profile(ctx)
	if profile.Name != "Alex" || !profile.OnboardingCompleted {
		t.Fatalf("profile = %+v", profile)
	}

	accounts := svc.ListAccounts(ctx)
	if len(accounts) != 1 || accounts[0].Balance != 2500 {
		t.Fatalf("accounts = %+v, want one with opening balance", accounts)
	}

	categories := svc.ListCategories(ctx)
	if len(categories) == 0 {
		t.Fatal("default categories missing after onboarding")
	}
}

func TestPIN_Lifecycle(t *testing.T) {
	svc := newTestFinance(t)
	ctx := context.Background()
	now := time.Now()

	if svc.PINRequired() {
		t.Fatal("fresh profile should not require a PIN")
	}

	var validation *domain.ErrValidation
	if err := svc.SetPIN(ctx, "12a4"); !errors.As(err, &validation) {
		t.Fatalf("expected validation error for non-digit PIN, got %v", err)
	}
	if err := svc.SetPIN(ctx, "12345"); !errors.As(err, &validation) {
		t.Fatalf("expected validation error for long PIN, got %v", err)
	}

	if err := svc.SetPIN(ctx, "1234"); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	if !svc.PINRequired() {
		t.Fatal("PIN should be required after SetPIN")
	}

	var unauthorized *domain.ErrUnauthorized
	if _, err := svc.VerifyPIN(ctx, "9999", now); !errors.As(err, &unauthorized) {
		t.Fatalf("expected unauthorized for wrong PIN, got %v", err)
	}

	token, err := svc.VerifyPIN(ctx, "1234", now)
	if err != nil {
		t.Fatalf("verify pin: %v", err)
	}
	if err := svc.ValidateUnlockToken(token); err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if err := svc.ValidateUnlockToken(token + "x"); err == nil {
		t.Fatal("tampered token accepted")
	}

	// Empty PIN disables the lock.
	if err := svc.SetPIN(ctx, ""); err != nil {
		t.Fatalf("clear pin: %v", err)
	}
	if svc.PINRequired() {
		t.Fatal("PIN still required after clearing")
	}
}

func TestReset_ClearsEverything(t *testing.T) {
	svc := newTestFinance(t)
	ctx := context.Background()
	now := time.Now()

	account := testAccount(t, svc, 1000)
	food := testCategory(t, svc, "Food", domain.TypeExpense)
	if _, err := svc.AddTransaction(ctx, draft("Dinner", 50, domain.TypeExpense, account.ID, food.ID, now), now); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := svc.Reset(ctx, now); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if n := len(svc.ListAccounts(ctx)); n != 0 {
		t.Fatalf("accounts after reset = %d", n)
	}
	if n := len(svc.ListTransactions(ctx)); n != 0 {
		t.Fatalf("transactions after reset = %d", n)
	}
	if svc.Profile(ctx).OnboardingCompleted {
		t.Fatal("profile still onboarded after reset")
	}
}
