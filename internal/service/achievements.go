package service

import (
	"context"
	"fmt"
	"time"

	"github.com/granaapp/grana-go/internal/domain"
	"go.uber.org/zap"
)

// ListAchievements returns the full catalog with current unlock state.
func (s *Finance) ListAchievements(ctx context.Context) []domain.Achievement {
	_, span := tracer.Start(ctx, "Finance.ListAchievements")
	defer span.End()
	return s.store.Achievements()
}

// checkAchievementsLocked re-evaluates every locked achievement against the
// current state and unlocks the ones whose condition now holds. Unlocks are
// monotonic: an achievement that stops satisfying its condition later stays
// unlocked. Callers must hold s.mu.
func (s *Finance) checkAchievementsLocked(ctx context.Context, now time.Time) {
	for _, ach := range s.store.Achievements() {
		if ach.Unlocked() {
			continue
		}
		if !s.conditionMet(ach.Condition) {
			continue
		}
		unlocked, fresh, err := s.store.UnlockAchievement(ctx, ach.ID, now)
		if err != nil {
			// Persistence hiccups must not fail the mutation that
			// triggered the check; the next mutation retries.
			s.logger.Warn("achievement unlock not persisted",
				zap.String("achievement_id", ach.ID),
				zap.Error(err))
			continue
		}
		if !fresh {
			continue
		}
		s.metrics.IncrAchievementUnlocked()
		s.logger.Info("achievement unlocked",
			zap.String("achievement_id", unlocked.ID),
			zap.Int("xp_reward", unlocked.XPReward))
		s.store.Notify(fmt.Sprintf("🏆 Achievement unlocked: %s!", unlocked.Title), domain.NotifyAchievement, now)
	}
}

func (s *Finance) conditionMet(condition string) bool {
	switch condition {
	case domain.CondHasTransaction:
		return len(s.store.Transactions()) > 0
	case domain.CondBalance1K:
		return s.store.TotalBalance() >= 1000
	case domain.CondBalance10K:
		return s.store.TotalBalance() >= 10000
	case domain.CondGoalCompleted:
		for _, g := range s.store.Goals() {
			if g.CurrentAmount >= g.TargetAmount {
				return true
			}
		}
		return false
	case domain.CondHasBudget:
		return len(s.store.Budgets()) > 0
	case domain.CondHasInvestment:
		for _, a := range s.store.Accounts() {
			if a.Kind == domain.AccountInvestment {
				return true
			}
		}
		return false
	default:
		return false
	}
}
