package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/granaapp/grana-go/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func validateGoalDraft(draft domain.GoalDraft) error {
	if strings.TrimSpace(draft.Name) == "" {
		return &domain.ErrValidation{Field: "name", Message: "must not be empty"}
	}
	if draft.TargetAmount <= 0 {
		return &domain.ErrValidation{Field: "targetAmount", Message: "must be positive"}
	}
	if draft.CurrentAmount < 0 {
		return &domain.ErrValidation{Field: "currentAmount", Message: "must not be negative"}
	}
	return nil
}

// ListGoals returns all savings goals.
func (s *Finance) ListGoals(ctx context.Context) []domain.Goal {
	_, span := tracer.Start(ctx, "Finance.ListGoals")
	defer span.End()
	return s.store.Goals()
}

// AddGoal creates a new savings goal. A goal created already at or above
// its target starts out completed.
func (s *Finance) AddGoal(ctx context.Context, draft domain.GoalDraft, now time.Time) (goal domain.Goal, err error) {
	ctx, span := tracer.Start(ctx, "Finance.AddGoal")
	defer span.End()
	start := time.Now()
	defer func() { s.observe("goal.add", start, err) }()

	if err = validateGoalDraft(draft); err != nil {
		return domain.Goal{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	goal = domain.Goal{
		ID:            uuid.NewString(),
		Name:          draft.Name,
		TargetAmount:  draft.TargetAmount,
		CurrentAmount: draft.CurrentAmount,
		Deadline:      draft.Deadline,
		Icon:          draft.Icon,
		Color:         draft.Color,
		Completed:     draft.CurrentAmount >= draft.TargetAmount,
	}
	if err = s.store.PutGoal(ctx, goal); err != nil {
		return domain.Goal{}, err
	}
	s.logger.Info("goal created",
		zap.String("goal_id", goal.ID),
		zap.Float64("target", goal.TargetAmount))
	s.checkAchievementsLocked(ctx, now)
	return goal, nil
}

// FundGoal adds amount to a goal's saved total. Crossing the target flips
// Completed exactly once; funding past the target never re-fires the
// completion side effects.
func (s *Finance) FundGoal(ctx context.Context, id string, amount float64, now time.Time) (goal domain.Goal, err error) {
	ctx, span := tracer.Start(ctx, "Finance.FundGoal")
	defer span.End()
	span.SetAttributes(attribute.String("goal.id", id))
	start := time.Now()
	defer func() { s.observe("goal.fund", start, err) }()

	if amount <= 0 {
		err = &domain.ErrValidation{Field: "amount", Message: "must be positive"}
		return domain.Goal{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	goal, ok := s.store.Goal(id)
	if !ok {
		err = &domain.ErrNotFound{Resource: "goal", ID: id}
		return domain.Goal{}, err
	}

	wasCompleted := goal.Completed
	goal.CurrentAmount += amount
	if goal.CurrentAmount >= goal.TargetAmount {
		goal.Completed = true
	}
	if err = s.store.PutGoal(ctx, goal); err != nil {
		return domain.Goal{}, err
	}

	if goal.Completed && !wasCompleted {
		s.metrics.IncrGoalCompleted()
		s.logger.Info("goal completed", zap.String("goal_id", goal.ID))
		s.store.Notify(fmt.Sprintf("🎉 GOAL REACHED: %s!", goal.Name), domain.NotifySuccess, now)
	}
	s.checkAchievementsLocked(ctx, now)
	return goal, nil
}

// RemoveGoal deletes a goal.
func (s *Finance) RemoveGoal(ctx context.Context, id string) (err error) {
	ctx, span := tracer.Start(ctx, "Finance.RemoveGoal")
	defer span.End()
	span.SetAttributes(attribute.String("goal.id", id))
	start := time.Now()
	defer func() { s.observe("goal.remove", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.store.Goal(id); !ok {
		err = &domain.ErrNotFound{Resource: "goal", ID: id}
		return err
	}
	return s.store.DeleteGoal(ctx, id)
}
