package service

import (
	"context"
	"time"

	"github.com/granaapp/grana-go/internal/analytics"
	"github.com/granaapp/grana-go/internal/domain"
)

// Health computes the composite financial health score for the month
// containing now.
func (s *Finance) Health(ctx context.Context, now time.Time) domain.FinancialHealth {
	_, span := tracer.Start(ctx, "Finance.Health")
	defer span.End()
	return analytics.FinancialHealth(s.store.Transactions(), s.store.Budgets(), s.store.Achievements(), now)
}

// ExpenseForecast projects month-end spending from the pace so far.
func (s *Finance) ExpenseForecast(ctx context.Context, now time.Time) domain.Forecast {
	_, span := tracer.Start(ctx, "Finance.ExpenseForecast")
	defer span.End()
	return analytics.Forecast(s.store.Transactions(), now)
}

// Breakdown sums the month's expenses per expense category, largest first.
func (s *Finance) Breakdown(ctx context.Context, now time.Time) []domain.CategoryTotal {
	_, span := tracer.Start(ctx, "Finance.Breakdown")
	defer span.End()
	return analytics.CategoryBreakdown(s.store.Transactions(), s.store.Categories(), now)
}

// DailyFlow returns per-day income/expense sums for the trailing window
// ending at now, oldest day first.
func (s *Finance) DailyFlow(ctx context.Context, days int, now time.Time) []domain.DailyFlow {
	_, span := tracer.Start(ctx, "Finance.DailyFlow")
	defer span.End()
	return analytics.DailyFlow(s.store.Transactions(), days, now)
}

// Totals sums income and expense for the month containing now.
func (s *Finance) Totals(ctx context.Context, now time.Time) domain.MonthlyTotals {
	_, span := tracer.Start(ctx, "Finance.Totals")
	defer span.End()
	return analytics.MonthlyTotals(s.store.Transactions(), now)
}
