package service

import (
	"context"
	"time"

	"github.com/granaapp/grana-go/internal/analytics"
	"github.com/granaapp/grana-go/internal/domain"
	"go.opentelemetry.io/otel/attribute"
)

// ListBudgets returns the stored budgets (limits only; see BudgetStatuses
// for the derived spend view).
func (s *Finance) ListBudgets(ctx context.Context) []domain.Budget {
	_, span := tracer.Start(ctx, "Finance.ListBudgets")
	defer span.End()
	return s.store.Budgets()
}

// SetBudget creates or replaces the budget for a category. A limit of zero
// or less removes the budget; removing a budget that does not exist is a
// no-op.
func (s *Finance) SetBudget(ctx context.Context, categoryID string, limit float64, now time.Time) (err error) {
	ctx, span := tracer.Start(ctx, "Finance.SetBudget")
	defer span.End()
	span.SetAttributes(attribute.String("category.id", categoryID))
	start := time.Now()
	defer func() { s.observe("budget.set", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.store.Category(categoryID); !ok {
		err = &domain.ErrNotFound{Resource: "category", ID: categoryID}
		return err
	}
	if limit <= 0 {
		if err = s.store.DeleteBudget(ctx, categoryID); err != nil {
			return err
		}
		return nil
	}
	if err = s.store.PutBudget(ctx, domain.Budget{CategoryID: categoryID, Limit: limit}); err != nil {
		return err
	}
	s.checkAchievementsLocked(ctx, now)
	return nil
}

// BudgetStatus derives the spend-vs-limit view for one category in the
// month containing now. Percent is capped at 100 and is zero when no
// budget exists for the category.
func (s *Finance) BudgetStatus(ctx context.Context, categoryID string, now time.Time) (domain.BudgetStatus, error) {
	_, span := tracer.Start(ctx, "Finance.BudgetStatus")
	defer span.End()
	span.SetAttributes(attribute.String("category.id", categoryID))

	if _, ok := s.store.Category(categoryID); !ok {
		return domain.BudgetStatus{}, &domain.ErrNotFound{Resource: "category", ID: categoryID}
	}

	spent := analytics.CategorySpentInMonth(s.store.Transactions(), categoryID, now)
	status := domain.BudgetStatus{CategoryID: categoryID, Spent: spent}
	budget, ok := s.store.Budget(categoryID)
	if !ok {
		return status, nil
	}
	status.Limit = budget.Limit
	if budget.Limit > 0 {
		status.Percent = spent / budget.Limit * 100
		if status.Percent > 100 {
			status.Percent = 100
		}
	}
	return status, nil
}

// BudgetStatuses derives the spend view for every stored budget.
func (s *Finance) BudgetStatuses(ctx context.Context, now time.Time) []domain.BudgetStatus {
	ctx, span := tracer.Start(ctx, "Finance.BudgetStatuses")
	defer span.End()

	budgets := s.store.Budgets()
	statuses := make([]domain.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		status, err := s.BudgetStatus(ctx, b.CategoryID, now)
		if err != nil {
			continue
		}
		statuses = append(statuses, status)
	}
	return statuses
}
