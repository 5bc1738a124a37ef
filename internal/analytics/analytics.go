// Package analytics computes the derived financial views: health score,
// XP/level, month-end forecast, category breakdown and daily flow.
//
// Every function is pure over the snapshot it is given and takes the
// reference time as an explicit argument, so results are deterministic
// and testable without touching the system clock.
package analytics

import (
	"math"
	"time"

	"github.com/granaapp/grana-go/internal/domain"
)

// Health score component weights. Cash flow and savings rate are measured
// against the current month; budget discipline against all active budgets.
const (
	cashFlowWeight   = 40.0
	savingsWeight    = 30.0
	budgetWeight     = 30.0
	targetSavingRate = 0.20 // a 20% savings rate earns full marks
)

// sameMonth reports whether t falls in the same calendar month as ref.
func sameMonth(t, ref time.Time) bool {
	return t.Year() == ref.Year() && t.Month() == ref.Month()
}

// MonthlyTotals partitions the transactions of now's calendar month into
// income and expense sums.
func MonthlyTotals(transactions []domain.Transaction, now time.Time) domain.MonthlyTotals {
	var totals domain.MonthlyTotals
	for _, t := range transactions {
		if !sameMonth(t.Date, now) {
			continue
		}
		switch t.Type {
		case domain.TypeIncome:
			totals.Income += t.Amount
		case domain.TypeExpense:
			totals.Expense += t.Amount
		}
	}
	return totals
}

// FinancialHealth computes the 0-100 composite score and the gamification
// view derived from it plus unlocked achievement rewards.
//
// Components: cash flow (40), savings rate (30), budget discipline (30).
// Level number is floor(sqrt(xp/100)) + 1; the title follows the band.
func FinancialHealth(transactions []domain.Transaction, budgets []domain.Budget, achievements []domain.Achievement, now time.Time) domain.FinancialHealth {
	totals := MonthlyTotals(transactions, now)
	income, expense := totals.Income, totals.Expense

	var score float64

	// A. Cash flow
	if income > expense {
		score += cashFlowWeight
	} else if income > 0 && expense > income {
		score += math.Max(0, cashFlowWeight-((expense-income)/income)*100)
	}

	// B. Savings rate
	savingsRate := 0.0
	if income > 0 {
		savingsRate = (income - expense) / income
	}
	score += math.Min(savingsWeight, (savingsRate/targetSavingRate)*savingsWeight)

	// C. Budget discipline
	if len(budgets) > 0 {
		ok := 0
		for _, b := range budgets {
			spent := CategorySpentInMonth(transactions, b.CategoryID, now)
			if spent <= b.Limit {
				ok++
			}
		}
		score += float64(ok) / float64(len(budgets)) * budgetWeight
	} else {
		score += budgetWeight / 2
	}

	score = math.Max(0, math.Min(100, score))

	xp := score
	for _, a := range achievements {
		if a.Unlocked() {
			xp += float64(a.XPReward)
		}
	}

	levelNum := int(math.Floor(math.Sqrt(xp/100))) + 1
	return domain.FinancialHealth{
		Score:       score,
		Level:       levelTitle(levelNum),
		LevelNumber: levelNum,
		XP:          xp,
		NextLevelXP: float64(levelNum*levelNum) * 100,
	}
}

// levelTitle maps a level number to its band title.
func levelTitle(level int) string {
	switch {
	case level > 12:
		return "Tycoon"
	case level > 8:
		return "Investor"
	case level > 5:
		return "Strategist"
	case level > 2:
		return "Apprentice"
	default:
		return "Novice"
	}
}

// CategorySpentInMonth sums expense amounts for one category in now's month.
func CategorySpentInMonth(transactions []domain.Transaction, categoryID string, now time.Time) float64 {
	var spent float64
	for _, t := range transactions {
		if t.CategoryID == categoryID && t.Type == domain.TypeExpense && sameMonth(t.Date, now) {
			spent += t.Amount
		}
	}
	return spent
}

// Forecast extrapolates month-end expense linearly from the spending pace
// so far this month. On the first day of the month, or before any expense,
// the projection is zero and safe.
func Forecast(transactions []domain.Transaction, now time.Time) domain.Forecast {
	totals := MonthlyTotals(transactions, now)

	currentDay := now.Day()
	if currentDay == 1 || totals.Expense == 0 {
		return domain.Forecast{Status: domain.ForecastSafe}
	}

	daysInMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
	avgPerDay := totals.Expense / float64(currentDay)
	projected := avgPerDay * float64(daysInMonth)

	status := domain.ForecastSafe
	if projected > totals.Income && totals.Income > 0 {
		status = domain.ForecastDanger
	} else if projected > totals.Income*0.9 {
		status = domain.ForecastWarning
	}

	return domain.Forecast{
		ProjectedExpense: projected,
		Status:           status,
		Diff:             projected - totals.Expense,
	}
}

// CategoryBreakdown sums this month's expenses per expense category.
// Categories with a zero total are excluded.
func CategoryBreakdown(transactions []domain.Transaction, categories []domain.Category, now time.Time) []domain.CategoryTotal {
	breakdown := make([]domain.CategoryTotal, 0, len(categories))
	for _, c := range categories {
		if c.Type != domain.TypeExpense {
			continue
		}
		total := CategorySpentInMonth(transactions, c.ID, now)
		if total <= 0 {
			continue
		}
		breakdown = append(breakdown, domain.CategoryTotal{
			CategoryID: c.ID,
			Name:       c.Name,
			Icon:       c.Icon,
			Color:      c.Color,
			Total:      total,
		})
	}
	return breakdown
}

// DailyFlow sums income and expense per calendar day over the trailing
// days window ending at now, oldest first. Time of day is stripped.
func DailyFlow(transactions []domain.Transaction, days int, now time.Time) []domain.DailyFlow {
	if days <= 0 {
		days = 7
	}

	flows := make([]domain.DailyFlow, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -i)
		flow := domain.DailyFlow{Date: day.Format("2006-01-02")}

		for _, t := range transactions {
			td := t.Date
			if td.Year() != day.Year() || td.Month() != day.Month() || td.Day() != day.Day() {
				continue
			}
			switch t.Type {
			case domain.TypeIncome:
				flow.Income += t.Amount
			case domain.TypeExpense:
				flow.Expense += t.Amount
			}
		}
		flows = append(flows, flow)
	}
	return flows
}

// CountRecurringDue counts recurring transactions from earlier months that
// have no confirming copy (same description and amount) in now's month.
// Advisory only: nothing is generated automatically.
func CountRecurringDue(transactions []domain.Transaction, now time.Time) int {
	count := 0
	for _, rec := range transactions {
		if !rec.IsRecurring || sameMonth(rec.Date, now) {
			continue
		}
		hasCopy := false
		for _, t := range transactions {
			if t.Description == rec.Description && t.Amount == rec.Amount && sameMonth(t.Date, now) {
				hasCopy = true
				break
			}
		}
		if !hasCopy {
			count++
		}
	}
	return count
}
