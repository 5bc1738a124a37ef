package service

import (
	"context"
	"fmt"
	"time"

	"github.com/granaapp/grana-go/internal/analytics"
	"github.com/granaapp/grana-go/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// validateTransactionDraft rejects malformed drafts before any state is read.
func validateTransactionDraft(draft domain.TransactionDraft) error {
	if draft.Description == "" {
		return &domain.ErrValidation{Field: "description", Message: "required"}
	}
	if draft.Amount <= 0 {
		return &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	if !draft.Type.Valid() {
		return &domain.ErrValidation{Field: "type", Message: "must be income or expense"}
	}
	if draft.AccountID == "" {
		return &domain.ErrValidation{Field: "accountId", Message: "required"}
	}
	if draft.CategoryID == "" {
		return &domain.ErrValidation{Field: "categoryId", Message: "required"}
	}
	if draft.Date.IsZero() {
		return &domain.ErrValidation{Field: "date", Message: "required"}
	}
	return nil
}

func draftToTransaction(id string, draft domain.TransactionDraft) domain.Transaction {
	return domain.Transaction{
		ID:           id,
		Description:  draft.Description,
		Amount:       draft.Amount,
		Date:         draft.Date,
		CategoryID:   draft.CategoryID,
		AccountID:    draft.AccountID,
		Type:         draft.Type,
		IsRecurring:  draft.IsRecurring,
		Installments: draft.Installments,
	}
}

// ListTransactions returns the current transaction collection.
func (s *Finance) ListTransactions(ctx context.Context) []domain.Transaction {
	_, span := tracer.Start(ctx, "Finance.ListTransactions")
	defer span.End()

	return s.store.Transactions()
}

// AddTransaction inserts a transaction and applies its signed effect to
// the referenced account's balance. The account is checked before anything
// is written.
func (s *Finance) AddTransaction(ctx context.Context, draft domain.TransactionDraft, now time.Time) (tx domain.Transaction, err error) {
	ctx, span := tracer.Start(ctx, "Finance.AddTransaction")
	defer span.End()
	start := time.Now()
	defer func() { s.observe("transaction.add", start, err) }()

	if err = validateTransactionDraft(draft); err != nil {
		return domain.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.store.Account(draft.AccountID)
	if !ok {
		err = &domain.ErrNotFound{Resource: "account", ID: draft.AccountID}
		return domain.Transaction{}, err
	}
	category, ok := s.store.Category(draft.CategoryID)
	if !ok {
		err = &domain.ErrNotFound{Resource: "category", ID: draft.CategoryID}
		return domain.Transaction{}, err
	}

	tx = draftToTransaction(uuid.New().String(), draft)
	span.SetAttributes(attribute.String("transaction.id", tx.ID))

	account.Balance += tx.SignedAmount()
	if err = s.store.ApplyTransactionAdd(ctx, tx, account); err != nil {
		return domain.Transaction{}, err
	}

	s.logger.Info("transaction added",
		zap.String("id", tx.ID),
		zap.String("type", string(tx.Type)),
		zap.Float64("amount", tx.Amount),
		zap.String("category", category.Name),
	)
	s.store.Notify("Transaction recorded.", domain.NotifySuccess, now)
	s.checkAchievementsLocked(ctx, now)
	return tx, nil
}

// EditTransaction replaces the stored transaction under the same id. The
// original account effect is reverted and the new effect applied, possibly
// on a different account; both balances land in memory atomically, so no
// reader ever observes only one side of the change.
//
// Both the original and the new account reference must still exist;
// otherwise the edit is rejected before any balance is touched.
func (s *Finance) EditTransaction(ctx context.Context, id string, draft domain.TransactionDraft, now time.Time) (tx domain.Transaction, err error) {
	ctx, span := tracer.Start(ctx, "Finance.EditTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))
	start := time.Now()
	defer func() { s.observe("transaction.edit", start, err) }()

	if err = validateTransactionDraft(draft); err != nil {
		return domain.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.store.Transaction(id)
	if !ok {
		err = &domain.ErrNotFound{Resource: "transaction", ID: id}
		return domain.Transaction{}, err
	}
	oldAccount, ok := s.store.Account(old.AccountID)
	if !ok {
		err = &domain.ErrNotFound{Resource: "account", ID: old.AccountID}
		return domain.Transaction{}, err
	}
	if _, ok = s.store.Category(draft.CategoryID); !ok {
		err = &domain.ErrNotFound{Resource: "category", ID: draft.CategoryID}
		return domain.Transaction{}, err
	}

	tx = draftToTransaction(id, draft)

	var accounts []domain.Account
	if old.AccountID == tx.AccountID {
		oldAccount.Balance += -old.SignedAmount() + tx.SignedAmount()
		accounts = []domain.Account{oldAccount}
	} else {
		newAccount, found := s.store.Account(tx.AccountID)
		if !found {
			err = &domain.ErrNotFound{Resource: "account", ID: tx.AccountID}
			return domain.Transaction{}, err
		}
		oldAccount.Balance -= old.SignedAmount()
		newAccount.Balance += tx.SignedAmount()
		accounts = []domain.Account{oldAccount, newAccount}
	}

	if err = s.store.ApplyTransactionReplace(ctx, tx, accounts); err != nil {
		return domain.Transaction{}, err
	}

	s.logger.Info("transaction updated", zap.String("id", id))
	s.store.Notify("Transaction updated.", domain.NotifyInfo, now)
	s.checkAchievementsLocked(ctx, now)
	return tx, nil
}

// DeleteTransaction removes a transaction and reverses its account effect.
func (s *Finance) DeleteTransaction(ctx context.Context, id string, now time.Time) (err error) {
	ctx, span := tracer.Start(ctx, "Finance.DeleteTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))
	start := time.Now()
	defer func() { s.observe("transaction.delete", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.store.Transaction(id)
	if !ok {
		err = &domain.ErrNotFound{Resource: "transaction", ID: id}
		return err
	}
	account, ok := s.store.Account(tx.AccountID)
	if !ok {
		err = &domain.ErrNotFound{Resource: "account", ID: tx.AccountID}
		return err
	}

	account.Balance -= tx.SignedAmount()
	if err = s.store.ApplyTransactionDelete(ctx, id, account); err != nil {
		return err
	}

	s.logger.Info("transaction removed", zap.String("id", id))
	s.store.Notify("Transaction removed.", domain.NotifyInfo, now)
	s.checkAchievementsLocked(ctx, now)
	return nil
}

// RecurringDue counts recurring transactions still lacking a confirming
// copy in now's month. Advisory: the engine never creates the copy itself.
func (s *Finance) RecurringDue(ctx context.Context, now time.Time) int {
	_, span := tracer.Start(ctx, "Finance.RecurringDue")
	defer span.End()

	return analytics.CountRecurringDue(s.store.Transactions(), now)
}

// NotifyRecurringDue posts a feed notification when recurring transactions
// are waiting for confirmation. Called once at startup.
func (s *Finance) NotifyRecurringDue(ctx context.Context, now time.Time) {
	if count := s.RecurringDue(ctx, now); count > 0 {
		s.store.Notify(recurringMessage(count), domain.NotifyInfo, now)
		s.logger.Info("recurring transactions due", zap.Int("count", count))
	}
}

func recurringMessage(count int) string {
	if count == 1 {
		return "You have 1 recurring transaction to confirm this month."
	}
	return fmt.Sprintf("You have %d recurring transactions to confirm this month.", count)
}
