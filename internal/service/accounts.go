package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/granaapp/grana-go/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func validateAccountDraft(draft domain.AccountDraft) error {
	if strings.TrimSpace(draft.Name) == "" {
		return &domain.ErrValidation{Field: "name", Message: "must not be empty"}
	}
	if !draft.Kind.Valid() {
		return &domain.ErrValidation{Field: "type", Message: "must be one of checking, wallet, investment, credit_card"}
	}
	return nil
}

// ListAccounts returns all accounts with their current balances.
func (s *Finance) ListAccounts(ctx context.Context) []domain.Account {
	_, span := tracer.Start(ctx, "Finance.ListAccounts")
	defer span.End()
	return s.store.Accounts()
}

// AddAccount creates a new account. The supplied balance is the opening
// balance; it is not backed by a transaction.
func (s *Finance) AddAccount(ctx context.Context, draft domain.AccountDraft, now time.Time) (account domain.Account, err error) {
	ctx, span := tracer.Start(ctx, "Finance.AddAccount")
	defer span.End()
	start := time.Now()
	defer func() { s.observe("account.add", start, err) }()

	if err = validateAccountDraft(draft); err != nil {
		return domain.Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account = domain.Account{
		ID:          uuid.NewString(),
		Name:        draft.Name,
		Kind:        draft.Kind,
		Balance:     draft.Balance,
		CreditLimit: draft.CreditLimit,
		Color:       draft.Color,
		Icon:        draft.Icon,
	}
	if err = s.store.PutAccount(ctx, account); err != nil {
		return domain.Account{}, err
	}

	s.logger.Info("account created",
		zap.String("account_id", account.ID),
		zap.String("kind", string(account.Kind)))
	s.checkAchievementsLocked(ctx, now)
	return account, nil
}

// UpdateAccount replaces the mutable fields of an account. Setting the
// balance here is an explicit adjustment, not a ledger event.
func (s *Finance) UpdateAccount(ctx context.Context, id string, draft domain.AccountDraft, now time.Time) (account domain.Account, err error) {
	ctx, span := tracer.Start(ctx, "Finance.UpdateAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", id))
	start := time.Now()
	defer func() { s.observe("account.update", start, err) }()

	if err = validateAccountDraft(draft); err != nil {
		return domain.Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.store.Account(id); !ok {
		err = &domain.ErrNotFound{Resource: "account", ID: id}
		return domain.Account{}, err
	}

	account = domain.Account{
		ID:          id,
		Name:        draft.Name,
		Kind:        draft.Kind,
		Balance:     draft.Balance,
		CreditLimit: draft.CreditLimit,
		Color:       draft.Color,
		Icon:        draft.Icon,
	}
	if err = s.store.PutAccount(ctx, account); err != nil {
		return domain.Account{}, err
	}
	s.checkAchievementsLocked(ctx, now)
	return account, nil
}

// RemoveAccount deletes an account. Accounts still referenced by any
// transaction cannot be removed; delete the transactions first.
func (s *Finance) RemoveAccount(ctx context.Context, id string) (err error) {
	ctx, span := tracer.Start(ctx, "Finance.RemoveAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", id))
	start := time.Now()
	defer func() { s.observe("account.remove", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.store.Account(id); !ok {
		err = &domain.ErrNotFound{Resource: "account", ID: id}
		return err
	}
	if s.store.AccountHasTransactions(id) {
		err = &domain.ErrConstraint{Message: "account has transactions; remove them first"}
		return err
	}
	return s.store.DeleteAccount(ctx, id)
}
