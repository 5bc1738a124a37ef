// Package domain defines the core business entities of the finance engine.
// These models are independent of transport and persistence and represent
// the canonical data structures used throughout the service.
package domain

import "time"

// TransactionType distinguishes money coming in from money going out.
// Amounts are always stored positive; direction is carried by the type.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

// AccountKind classifies an account.
type AccountKind string

const (
	AccountChecking   AccountKind = "checking"
	AccountWallet     AccountKind = "wallet"
	AccountInvestment AccountKind = "investment"
	AccountCreditCard AccountKind = "credit_card"
)

// Valid reports whether k is one of the known account kinds.
func (k AccountKind) Valid() bool {
	switch k {
	case AccountChecking, AccountWallet, AccountInvestment, AccountCreditCard:
		return true
	}
	return false
}

// ============================================================
// Core entities
// ============================================================

// Account holds a running balance. The balance is always the sum of the
// signed effects of every stored transaction referencing the account,
// plus any opening balance or explicit account update.
type Account struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Kind        AccountKind `json:"type"`
	Balance     float64     `json:"balance"`
	CreditLimit float64     `json:"creditLimit,omitempty"` // credit_card only
	Color       string      `json:"color,omitempty"`
	Icon        string      `json:"icon,omitempty"`
}

// Category labels transactions. Its type constrains, by convention, which
// transactions reference it.
type Category struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Icon  string          `json:"icon"`
	Color string          `json:"color"`
	Type  TransactionType `json:"type"`
}

// Installments carries optional installment progress for a transaction.
type Installments struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Transaction is the ledger's unit of truth. All balances derive from it.
type Transaction struct {
	ID           string          `json:"id"`
	Description  string          `json:"description"`
	Amount       float64         `json:"amount"` // always positive
	Date         time.Time       `json:"date"`
	CategoryID   string          `json:"categoryId"`
	AccountID    string          `json:"accountId"`
	Type         TransactionType `json:"type"`
	IsRecurring  bool            `json:"isRecurring"`
	Installments *Installments   `json:"installments,omitempty"`
}

// SignedAmount returns the balance effect of the transaction on its account.
func (t *Transaction) SignedAmount() float64 {
	if t.Type == TypeIncome {
		return t.Amount
	}
	return -t.Amount
}

// Budget is a monthly spending ceiling for a category. Status (spent,
// percent) is always derived, never stored.
type Budget struct {
	CategoryID string  `json:"categoryId"`
	Limit      float64 `json:"limit"`
}

// Goal is a savings target. Completed flips once CurrentAmount reaches
// TargetAmount and is reported as a one-time transition by FundGoal.
type Goal struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	TargetAmount  float64   `json:"targetAmount"`
	CurrentAmount float64   `json:"currentAmount"`
	Deadline      time.Time `json:"deadline"`
	Icon          string    `json:"icon,omitempty"`
	Color         string    `json:"color,omitempty"`
	Completed     bool      `json:"completed"`
}

// Achievement is a one-way unlockable milestone from the fixed catalog.
// The static fields come from the catalog; UnlockedAt is the only mutable
// part and, once set, is never cleared.
type Achievement struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Condition   string     `json:"condition"`
	XPReward    int        `json:"xpReward"`
	UnlockedAt  *time.Time `json:"unlockedAt,omitempty"`
}

// Unlocked reports whether the achievement has been unlocked.
func (a *Achievement) Unlocked() bool {
	return a.UnlockedAt != nil
}

// UserProfile gates access to the engine. The PIN is stored as a bcrypt
// hash, never in the clear.
type UserProfile struct {
	Name                string `json:"name"`
	Avatar              string `json:"avatar"`
	OnboardingCompleted bool   `json:"onboardingCompleted"`
	PINHash             string `json:"pinHash,omitempty"`
}

// HasPIN reports whether a security PIN is set.
func (u *UserProfile) HasPIN() bool {
	return u.PINHash != ""
}

// NotificationType categorizes feed entries.
type NotificationType string

const (
	NotifySuccess     NotificationType = "success"
	NotifyError       NotificationType = "error"
	NotifyInfo        NotificationType = "info"
	NotifyAchievement NotificationType = "achievement"
)

// Notification is an entry in the in-memory feed surfaced to the UI.
type Notification struct {
	ID        string           `json:"id"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	CreatedAt time.Time        `json:"createdAt"`
	Read      bool             `json:"read"`
}

// ============================================================
// Derived views
// ============================================================

// BudgetStatus is the derived spend-vs-limit view for one category.
type BudgetStatus struct {
	CategoryID string  `json:"categoryId"`
	Spent      float64 `json:"spent"`
	Limit      float64 `json:"limit"`
	Percent    float64 `json:"percent"`
}

// FinancialHealth is the 0-100 composite score plus the gamification view.
type FinancialHealth struct {
	Score       float64 `json:"score"`
	Level       string  `json:"level"`
	LevelNumber int     `json:"levelNumber"`
	XP          float64 `json:"xp"`
	NextLevelXP float64 `json:"nextLevelXp"`
}

// ForecastStatus classifies the month-end expense projection.
type ForecastStatus string

const (
	ForecastSafe    ForecastStatus = "safe"
	ForecastWarning ForecastStatus = "warning"
	ForecastDanger  ForecastStatus = "danger"
)

// Forecast is the linear extrapolation of month-end expense from the
// spending pace so far this month.
type Forecast struct {
	ProjectedExpense float64        `json:"projectedExpense"`
	Status           ForecastStatus `json:"status"`
	Diff             float64        `json:"diff"`
}

// MonthlyTotals partitions one calendar month into income and expense sums.
type MonthlyTotals struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
}

// CategoryTotal is one slice of the monthly expense breakdown.
type CategoryTotal struct {
	CategoryID string  `json:"categoryId"`
	Name       string  `json:"name"`
	Icon       string  `json:"icon,omitempty"`
	Color      string  `json:"color,omitempty"`
	Total      float64 `json:"total"`
}

// DailyFlow is the income/expense sum for one calendar day.
type DailyFlow struct {
	Date    string  `json:"date"` // YYYY-MM-DD
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
}

// Suggestion is the best-match category/account for a description prefix.
// Both fields are empty when no past transaction matches.
type Suggestion struct {
	CategoryID string `json:"categoryId,omitempty"`
	AccountID  string `json:"accountId,omitempty"`
}

// ============================================================
// Boundary shapes
// ============================================================

// TransactionDraft is the caller-supplied part of a transaction. The engine
// assigns the id.
type TransactionDraft struct {
	Description  string          `json:"description"`
	Amount       float64         `json:"amount"`
	Date         time.Time       `json:"date"`
	CategoryID   string          `json:"categoryId"`
	AccountID    string          `json:"accountId"`
	Type         TransactionType `json:"type"`
	IsRecurring  bool            `json:"isRecurring"`
	Installments *Installments   `json:"installments,omitempty"`
}

// GoalDraft is the caller-supplied part of a goal.
type GoalDraft struct {
	Name          string    `json:"name"`
	TargetAmount  float64   `json:"targetAmount"`
	CurrentAmount float64   `json:"currentAmount"`
	Deadline      time.Time `json:"deadline"`
	Icon          string    `json:"icon,omitempty"`
	Color         string    `json:"color,omitempty"`
}

// AccountDraft is the caller-supplied part of an account.
type AccountDraft struct {
	Name        string      `json:"name"`
	Kind        AccountKind `json:"type"`
	Balance     float64     `json:"balance"`
	CreditLimit float64     `json:"creditLimit,omitempty"`
	Color       string      `json:"color,omitempty"`
	Icon        string      `json:"icon,omitempty"`
}

// CategoryDraft is the caller-supplied part of a category.
type CategoryDraft struct {
	Name  string          `json:"name"`
	Icon  string          `json:"icon"`
	Color string          `json:"color"`
	Type  TransactionType `json:"type"`
}

// Snapshot is the backup/restore payload. Goals and budgets are optional on
// import and default to empty.
type Snapshot struct {
	Transactions []Transaction `json:"transactions"`
	Accounts     []Account     `json:"accounts"`
	Categories   []Category    `json:"categories"`
	Goals        []Goal        `json:"goals,omitempty"`
	Budgets      []Budget      `json:"budgets,omitempty"`
	ExportedAt   time.Time     `json:"exportedAt"`
}

// EngineStats is the metrics snapshot for GET /v1/stats/engine.
type EngineStats struct {
	MutationsTotal       int64   `json:"mutationsTotal"`
	MutationErrors       int64   `json:"mutationErrors"`
	ErrorRate            float64 `json:"errorRate"`
	AchievementsUnlocked int64   `json:"achievementsUnlocked"`
	GoalsCompleted       int64   `json:"goalsCompleted"`
	CacheHitRate         float64 `json:"cacheHitRate"`
	Period               string  `json:"period"`
}
