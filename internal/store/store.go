// Package store implements the entity store: the single authoritative
// in-memory model of accounts, categories, transactions, goals, budgets,
// achievements and the user profile.
//
// The store exclusively owns every collection. Mutations write through the
// persistence port first and only touch memory after the durable write
// succeeds, so a reload always reconstructs the last observable state.
// Compound mutations (a transaction plus the balances it moves) are applied
// under one lock, so readers never observe half of a change.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/granaapp/grana-go/internal/domain"
	"github.com/granaapp/grana-go/internal/port"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	profileKey           = "user"
	achievementKeyPrefix = "achievement_"
	maxNotifications     = 50
)

// Store holds the canonical collections.
type Store struct {
	mu      sync.RWMutex
	persist port.Persistence
	logger  *zap.Logger

	profile       domain.UserProfile
	accounts      []domain.Account
	categories    []domain.Category
	transactions  []domain.Transaction
	goals         []domain.Goal
	budgets       []domain.Budget
	achievements  []domain.Achievement
	notifications []domain.Notification
}

// New creates a store backed by the given persistence collaborator.
// Call Load before serving requests.
func New(persist port.Persistence, logger *zap.Logger) *Store {
	return &Store{
		persist: persist,
		logger:  logger,
		profile: domain.UserProfile{Name: "User", Avatar: "👤"},
	}
}

// unlockRecord is the persisted shape of one achievement unlock.
type unlockRecord struct {
	ID         string    `json:"id"`
	UnlockedAt time.Time `json:"unlockedAt"`
}

// Load reads every collection from the persistence backend in parallel and
// merges achievement unlocks into the static catalog.
func (s *Store) Load(ctx context.Context) error {
	var (
		accounts     []domain.Account
		categories   []domain.Category
		transactions []domain.Transaction
		goals        []domain.Goal
		budgets      []domain.Budget
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loadCollection(gctx, s.persist, port.ColAccounts, &accounts) })
	g.Go(func() error { return loadCollection(gctx, s.persist, port.ColCategories, &categories) })
	g.Go(func() error { return loadCollection(gctx, s.persist, port.ColTransactions, &transactions) })
	g.Go(func() error { return loadCollection(gctx, s.persist, port.ColGoals, &goals) })
	g.Go(func() error { return loadCollection(gctx, s.persist, port.ColBudgets, &budgets) })

	var profile *domain.UserProfile
	g.Go(func() error {
		raw, err := s.persist.Get(gctx, port.ColSystem, profileKey)
		if err != nil {
			return &domain.ErrPersistence{Collection: port.ColSystem, Err: err}
		}
		if raw == nil {
			return nil
		}
		var p domain.UserProfile
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("decode profile: %w", err)
		}
		profile = &p
		return nil
	})

	achievements := domain.AchievementCatalog()
	g.Go(func() error {
		items, err := s.persist.GetAll(gctx, port.ColSystem)
		if err != nil {
			return &domain.ErrPersistence{Collection: port.ColSystem, Err: err}
		}
		for _, raw := range items {
			var rec unlockRecord
			if err := json.Unmarshal(raw, &rec); err != nil || rec.ID == "" || rec.UnlockedAt.IsZero() {
				continue // profile entry or unknown system record
			}
			for i := range achievements {
				if achievements[i].ID == rec.ID {
					at := rec.UnlockedAt
					achievements[i].UnlockedAt = &at
				}
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if profile != nil {
		s.profile = *profile
	}
	s.accounts = accounts
	s.categories = categories
	s.transactions = transactions
	s.goals = goals
	s.budgets = budgets
	s.achievements = achievements

	s.logger.Info("entity store loaded",
		zap.Int("accounts", len(accounts)),
		zap.Int("categories", len(categories)),
		zap.Int("transactions", len(transactions)),
		zap.Int("goals", len(goals)),
		zap.Int("budgets", len(budgets)),
	)
	return nil
}

func loadCollection[T any](ctx context.Context, p port.Persistence, collection string, out *[]T) error {
	items, err := p.GetAll(ctx, collection)
	if err != nil {
		return &domain.ErrPersistence{Collection: collection, Err: err}
	}
	result := make([]T, 0, len(items))
	for _, raw := range items {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("decode %s item: %w", collection, err)
		}
		result = append(result, v)
	}
	*out = result
	return nil
}

// ============================================================
// Read access (copies, never internal slices)
// ============================================================

// Profile returns the user profile.
func (s *Store) Profile() domain.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// Accounts returns a copy of the account collection.
func (s *Store) Accounts() []domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Account(nil), s.accounts...)
}

// Categories returns a copy of the category collection.
func (s *Store) Categories() []domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Category(nil), s.categories...)
}

// Transactions returns a copy of the transaction collection.
func (s *Store) Transactions() []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Transaction(nil), s.transactions...)
}

// Goals returns a copy of the goal collection.
func (s *Store) Goals() []domain.Goal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Goal(nil), s.goals...)
}

// Budgets returns a copy of the budget collection.
func (s *Store) Budgets() []domain.Budget {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Budget(nil), s.budgets...)
}

// Achievements returns a copy of the achievement collection.
func (s *Store) Achievements() []domain.Achievement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Achievement(nil), s.achievements...)
}

// Account finds an account by id.
func (s *Store) Account(id string) (domain.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Account{}, false
}

// Category finds a category by id.
func (s *Store) Category(id string) (domain.Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Category{}, false
}

// Transaction finds a transaction by id.
func (s *Store) Transaction(id string) (domain.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.transactions {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Transaction{}, false
}

// Goal finds a goal by id.
func (s *Store) Goal(id string) (domain.Goal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.goals {
		if g.ID == id {
			return g, true
		}
	}
	return domain.Goal{}, false
}

// Budget finds a budget by category id.
func (s *Store) Budget(categoryID string) (domain.Budget, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.budgets {
		if b.CategoryID == categoryID {
			return b, true
		}
	}
	return domain.Budget{}, false
}

// TotalBalance sums every account balance.
func (s *Store) TotalBalance() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total float64
	for _, a := range s.accounts {
		total += a.Balance
	}
	return total
}

// AccountHasTransactions reports whether any transaction references the account.
func (s *Store) AccountHasTransactions(accountID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.transactions {
		if t.AccountID == accountID {
			return true
		}
	}
	return false
}

// CategoryHasTransactions reports whether any transaction references the category.
func (s *Store) CategoryHasTransactions(categoryID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.transactions {
		if t.CategoryID == categoryID {
			return true
		}
	}
	return false
}

// CountCategoriesOfType counts categories of the given type.
func (s *Store) CountCategoriesOfType(typ domain.TransactionType) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.categories {
		if c.Type == typ {
			n++
		}
	}
	return n
}

// ============================================================
// Persistence helpers
// ============================================================

func (s *Store) putDoc(ctx context.Context, collection, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s item: %w", collection, err)
	}
	if err := s.persist.Put(ctx, collection, key, raw); err != nil {
		return &domain.ErrPersistence{Collection: collection, Err: err}
	}
	return nil
}

func (s *Store) deleteDoc(ctx context.Context, collection, key string) error {
	if err := s.persist.Delete(ctx, collection, key); err != nil {
		return &domain.ErrPersistence{Collection: collection, Err: err}
	}
	return nil
}

func replaceAll[T any](ctx context.Context, p port.Persistence, collection string, items []T, keyOf func(T) string) error {
	raws := make([][]byte, 0, len(items))
	keys := make([]string, 0, len(items))
	for _, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encode %s item: %w", collection, err)
		}
		raws = append(raws, raw)
		keys = append(keys, keyOf(item))
	}
	if err := p.ReplaceAll(ctx, collection, raws, keys); err != nil {
		return &domain.ErrPersistence{Collection: collection, Err: err}
	}
	return nil
}

// ============================================================
// Ledger mutations (compound: transaction + balances, atomic in memory)
// ============================================================

// ApplyTransactionAdd persists the new transaction and the adjusted account,
// then applies both to memory under one lock.
func (s *Store) ApplyTransactionAdd(ctx context.Context, tx domain.Transaction, account domain.Account) error {
	if err := s.putDoc(ctx, port.ColTransactions, tx.ID, tx); err != nil {
		return err
	}
	if err := s.putDoc(ctx, port.ColAccounts, account.ID, account); err != nil {
		// Compensate so durable state does not drift from memory.
		if derr := s.deleteDoc(ctx, port.ColTransactions, tx.ID); derr != nil {
			s.logger.Error("failed to compensate transaction write", zap.String("id", tx.ID), zap.Error(derr))
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, tx)
	s.replaceAccountLocked(account)
	return nil
}

// ApplyTransactionReplace persists the replacement transaction and every
// adjusted account, then applies all of it to memory under one lock.
func (s *Store) ApplyTransactionReplace(ctx context.Context, tx domain.Transaction, accounts []domain.Account) error {
	old, ok := s.Transaction(tx.ID)
	if !ok {
		return &domain.ErrNotFound{Resource: "transaction", ID: tx.ID}
	}

	if err := s.putDoc(ctx, port.ColTransactions, tx.ID, tx); err != nil {
		return err
	}
	for i, a := range accounts {
		if err := s.putDoc(ctx, port.ColAccounts, a.ID, a); err != nil {
			// Restore the prior transaction and any accounts already written.
			if perr := s.putDoc(ctx, port.ColTransactions, old.ID, old); perr != nil {
				s.logger.Error("failed to compensate transaction replace", zap.String("id", tx.ID), zap.Error(perr))
			}
			for j := 0; j < i; j++ {
				if prior, found := s.Account(accounts[j].ID); found {
					if perr := s.putDoc(ctx, port.ColAccounts, prior.ID, prior); perr != nil {
						s.logger.Error("failed to compensate account write", zap.String("id", prior.ID), zap.Error(perr))
					}
				}
			}
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transactions {
		if s.transactions[i].ID == tx.ID {
			s.transactions[i] = tx
			break
		}
	}
	for _, a := range accounts {
		s.replaceAccountLocked(a)
	}
	return nil
}

// ApplyTransactionDelete persists the removal and the adjusted account,
// then applies both to memory under one lock.
func (s *Store) ApplyTransactionDelete(ctx context.Context, txID string, account domain.Account) error {
	old, ok := s.Transaction(txID)
	if !ok {
		return &domain.ErrNotFound{Resource: "transaction", ID: txID}
	}

	if err := s.deleteDoc(ctx, port.ColTransactions, txID); err != nil {
		return err
	}
	if err := s.putDoc(ctx, port.ColAccounts, account.ID, account); err != nil {
		if perr := s.putDoc(ctx, port.ColTransactions, old.ID, old); perr != nil {
			s.logger.Error("failed to compensate transaction delete", zap.String("id", txID), zap.Error(perr))
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transactions {
		if s.transactions[i].ID == txID {
			s.transactions = append(s.transactions[:i], s.transactions[i+1:]...)
			break
		}
	}
	s.replaceAccountLocked(account)
	return nil
}

func (s *Store) replaceAccountLocked(account domain.Account) {
	for i := range s.accounts {
		if s.accounts[i].ID == account.ID {
			s.accounts[i] = account
			return
		}
	}
	s.accounts = append(s.accounts, account)
}

// ============================================================
// Entity mutations
// ============================================================

// PutAccount inserts or replaces an account.
func (s *Store) PutAccount(ctx context.Context, account domain.Account) error {
	if err := s.putDoc(ctx, port.ColAccounts, account.ID, account); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceAccountLocked(account)
	return nil
}

// DeleteAccount removes an account. Reference checks belong to the caller.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	if err := s.deleteDoc(ctx, port.ColAccounts, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
			break
		}
	}
	return nil
}

// PutCategory inserts or replaces a category.
func (s *Store) PutCategory(ctx context.Context, category domain.Category) error {
	if err := s.putDoc(ctx, port.ColCategories, category.ID, category); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.categories {
		if s.categories[i].ID == category.ID {
			s.categories[i] = category
			return nil
		}
	}
	s.categories = append(s.categories, category)
	return nil
}

// DeleteCategory removes a category and any budget keyed to it.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	if err := s.deleteDoc(ctx, port.ColCategories, id); err != nil {
		return err
	}
	if err := s.deleteDoc(ctx, port.ColBudgets, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.categories {
		if s.categories[i].ID == id {
			s.categories = append(s.categories[:i], s.categories[i+1:]...)
			break
		}
	}
	for i := range s.budgets {
		if s.budgets[i].CategoryID == id {
			s.budgets = append(s.budgets[:i], s.budgets[i+1:]...)
			break
		}
	}
	return nil
}

// PutBudget inserts or replaces the budget for its category.
func (s *Store) PutBudget(ctx context.Context, budget domain.Budget) error {
	if err := s.putDoc(ctx, port.ColBudgets, budget.CategoryID, budget); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.budgets {
		if s.budgets[i].CategoryID == budget.CategoryID {
			s.budgets[i] = budget
			return nil
		}
	}
	s.budgets = append(s.budgets, budget)
	return nil
}

// DeleteBudget removes the budget for a category, if any.
func (s *Store) DeleteBudget(ctx context.Context, categoryID string) error {
	if err := s.deleteDoc(ctx, port.ColBudgets, categoryID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.budgets {
		if s.budgets[i].CategoryID == categoryID {
			s.budgets = append(s.budgets[:i], s.budgets[i+1:]...)
			break
		}
	}
	return nil
}

// PutGoal inserts or replaces a goal.
func (s *Store) PutGoal(ctx context.Context, goal domain.Goal) error {
	if err := s.putDoc(ctx, port.ColGoals, goal.ID, goal); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.goals {
		if s.goals[i].ID == goal.ID {
			s.goals[i] = goal
			return nil
		}
	}
	s.goals = append(s.goals, goal)
	return nil
}

// DeleteGoal removes a goal.
func (s *Store) DeleteGoal(ctx context.Context, id string) error {
	if err := s.deleteDoc(ctx, port.ColGoals, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.goals {
		if s.goals[i].ID == id {
			s.goals = append(s.goals[:i], s.goals[i+1:]...)
			break
		}
	}
	return nil
}

// PutProfile replaces the user profile.
func (s *Store) PutProfile(ctx context.Context, profile domain.UserProfile) error {
	if err := s.putDoc(ctx, port.ColSystem, profileKey, profile); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = profile
	return nil
}

// UnlockAchievement sets the unlock timestamp for an achievement. The
// transition is monotonic: an already-unlocked achievement is left alone.
func (s *Store) UnlockAchievement(ctx context.Context, id string, at time.Time) (domain.Achievement, bool, error) {
	s.mu.RLock()
	var target *domain.Achievement
	for i := range s.achievements {
		if s.achievements[i].ID == id {
			target = &s.achievements[i]
			break
		}
	}
	alreadyUnlocked := target == nil || target.Unlocked()
	s.mu.RUnlock()

	if target == nil {
		return domain.Achievement{}, false, &domain.ErrNotFound{Resource: "achievement", ID: id}
	}
	if alreadyUnlocked {
		return *target, false, nil
	}

	rec := unlockRecord{ID: id, UnlockedAt: at}
	if err := s.putDoc(ctx, port.ColSystem, achievementKeyPrefix+id, rec); err != nil {
		return domain.Achievement{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.achievements {
		if s.achievements[i].ID == id {
			if s.achievements[i].Unlocked() {
				return s.achievements[i], false, nil
			}
			ts := at
			s.achievements[i].UnlockedAt = &ts
			return s.achievements[i], true, nil
		}
	}
	return domain.Achievement{}, false, &domain.ErrNotFound{Resource: "achievement", ID: id}
}

// ============================================================
// Bulk mutations
// ============================================================

// ImportSnapshot replaces every financial collection with the snapshot's
// contents. All collections are written before memory changes.
func (s *Store) ImportSnapshot(ctx context.Context, snap domain.Snapshot) error {
	if err := replaceAll(ctx, s.persist, port.ColTransactions, snap.Transactions, func(t domain.Transaction) string { return t.ID }); err != nil {
		return err
	}
	if err := replaceAll(ctx, s.persist, port.ColAccounts, snap.Accounts, func(a domain.Account) string { return a.ID }); err != nil {
		return err
	}
	if err := replaceAll(ctx, s.persist, port.ColCategories, snap.Categories, func(c domain.Category) string { return c.ID }); err != nil {
		return err
	}
	if err := replaceAll(ctx, s.persist, port.ColGoals, snap.Goals, func(g domain.Goal) string { return g.ID }); err != nil {
		return err
	}
	if err := replaceAll(ctx, s.persist, port.ColBudgets, snap.Budgets, func(b domain.Budget) string { return b.CategoryID }); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append([]domain.Transaction(nil), snap.Transactions...)
	s.accounts = append([]domain.Account(nil), snap.Accounts...)
	s.categories = append([]domain.Category(nil), snap.Categories...)
	s.goals = append([]domain.Goal(nil), snap.Goals...)
	s.budgets = append([]domain.Budget(nil), snap.Budgets...)
	return nil
}

// ExportSnapshot builds the backup payload from the current state.
func (s *Store) ExportSnapshot(now time.Time) domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Snapshot{
		Transactions: append([]domain.Transaction(nil), s.transactions...),
		Accounts:     append([]domain.Account(nil), s.accounts...),
		Categories:   append([]domain.Category(nil), s.categories...),
		Goals:        append([]domain.Goal(nil), s.goals...),
		Budgets:      append([]domain.Budget(nil), s.budgets...),
		ExportedAt:   now,
	}
}

// SeedOnboarding sets the profile, a single opening account and the default
// categories, clearing everything else.
func (s *Store) SeedOnboarding(ctx context.Context, profile domain.UserProfile, account domain.Account, categories []domain.Category) error {
	if err := s.putDoc(ctx, port.ColSystem, profileKey, profile); err != nil {
		return err
	}
	if err := replaceAll(ctx, s.persist, port.ColAccounts, []domain.Account{account}, func(a domain.Account) string { return a.ID }); err != nil {
		return err
	}
	if err := replaceAll(ctx, s.persist, port.ColCategories, categories, func(c domain.Category) string { return c.ID }); err != nil {
		return err
	}
	for _, col := range []string{port.ColTransactions, port.ColGoals, port.ColBudgets} {
		if err := s.persist.Clear(ctx, col); err != nil {
			return &domain.ErrPersistence{Collection: col, Err: err}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = profile
	s.accounts = []domain.Account{account}
	s.categories = append([]domain.Category(nil), categories...)
	s.transactions = nil
	s.goals = nil
	s.budgets = nil
	return nil
}

// Reset restores factory state: empty collections, default profile, locked
// achievements stay unlocked (unlock history is part of the system record).
func (s *Store) Reset(ctx context.Context, profile domain.UserProfile) error {
	for _, col := range []string{port.ColAccounts, port.ColCategories, port.ColTransactions, port.ColGoals, port.ColBudgets} {
		if err := s.persist.Clear(ctx, col); err != nil {
			return &domain.ErrPersistence{Collection: col, Err: err}
		}
	}
	if err := s.putDoc(ctx, port.ColSystem, profileKey, profile); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = profile
	s.accounts = nil
	s.categories = nil
	s.transactions = nil
	s.goals = nil
	s.budgets = nil
	s.notifications = nil
	return nil
}

// ============================================================
// Notification feed (in-memory only)
// ============================================================

// Notify appends a notification to the feed, newest first.
func (s *Store) Notify(message string, typ domain.NotificationType, now time.Time) domain.Notification {
	n := domain.Notification{
		ID:        uuid.New().String(),
		Message:   message,
		Type:      typ,
		CreatedAt: now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append([]domain.Notification{n}, s.notifications...)
	if len(s.notifications) > maxNotifications {
		s.notifications = s.notifications[:maxNotifications]
	}
	return n
}

// Notifications returns a copy of the feed, newest first.
func (s *Store) Notifications() []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Notification(nil), s.notifications...)
}

// MarkNotificationRead marks one feed entry as read.
func (s *Store) MarkNotificationRead(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].Read = true
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "notification", ID: id}
}
