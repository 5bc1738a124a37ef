package domain

// Achievement condition codes. Conditions are evaluated against the current
// aggregate state after every financial mutation; unlocking is monotonic.
const (
	CondHasTransaction = "has_transaction"
	CondBalance1K      = "balance_1k"
	CondBalance10K     = "balance_10k"
	CondGoalCompleted  = "goal_completed"
	CondHasBudget      = "has_budget"
	CondHasInvestment  = "has_investment"
)

// AchievementCatalog is the fixed set of unlockable achievements. The
// static fields never change at runtime; only UnlockedAt moves.
func AchievementCatalog() []Achievement {
	return []Achievement{
		{
			ID:          "first_step",
			Title:       "First Steps",
			Description: "Record your first transaction.",
			Icon:        "👶",
			Condition:   CondHasTransaction,
			XPReward:    100,
		},
		{
			ID:          "saver_bronze",
			Title:       "Full Piggy Bank",
			Description: "Reach a total balance of 1,000.",
			Icon:        "🐷",
			Condition:   CondBalance1K,
			XPReward:    250,
		},
		{
			ID:          "saver_gold",
			Title:       "Tycoon in Training",
			Description: "Reach a total balance of 10,000.",
			Icon:        "🤵",
			Condition:   CondBalance10K,
			XPReward:    1000,
		},
		{
			ID:          "goal_hunter",
			Title:       "Goal Hunter",
			Description: "Complete a savings goal.",
			Icon:        "🎯",
			Condition:   CondGoalCompleted,
			XPReward:    500,
		},
		{
			ID:          "responsible",
			Title:       "Responsible Adult",
			Description: "Create a budget for a category.",
			Icon:        "👔",
			Condition:   CondHasBudget,
			XPReward:    150,
		},
		{
			ID:          "investor",
			Title:       "Shark Mindset",
			Description: "Open an investment account.",
			Icon:        "🦈",
			Condition:   CondHasInvestment,
			XPReward:    300,
		},
	}
}

// DefaultCategories is the starter category set seeded during onboarding.
// The invariant "at least one category of each type" holds from day one.
func DefaultCategories() []Category {
	return []Category{
		{ID: "cat-salary", Name: "Salary", Icon: "💎", Color: "emerald", Type: TypeIncome},
		{ID: "cat-freelance", Name: "Freelance", Icon: "⚡", Color: "yellow", Type: TypeIncome},
		{ID: "cat-food", Name: "Food", Icon: "🍔", Color: "rose", Type: TypeExpense},
		{ID: "cat-transport", Name: "Transport", Icon: "🚀", Color: "orange", Type: TypeExpense},
		{ID: "cat-games", Name: "Games", Icon: "🎮", Color: "purple", Type: TypeExpense},
		{ID: "cat-setup", Name: "Setup", Icon: "🖥️", Color: "cyan", Type: TypeExpense},
	}
}
