package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/granaapp/grana-go/internal/domain"
	"go.uber.org/zap"
)

// Export returns a snapshot of every collection, stamped with now.
func (s *Finance) Export(ctx context.Context, now time.Time) domain.Snapshot {
	_, span := tracer.Start(ctx, "Finance.Export")
	defer span.End()
	return s.store.ExportSnapshot(now)
}

// Import replaces every collection with the snapshot, all or nothing.
// The payload must carry transactions, accounts and categories arrays;
// goals and budgets default to empty. Nothing is touched on a malformed
// payload.
func (s *Finance) Import(ctx context.Context, raw []byte, now time.Time) (err error) {
	ctx, span := tracer.Start(ctx, "Finance.Import")
	defer span.End()
	start := time.Now()
	defer func() { s.observe("data.import", start, err) }()

	var probe struct {
		Transactions *json.RawMessage `json:"transactions"`
		Accounts     *json.RawMessage `json:"accounts"`
		Categories   *json.RawMessage `json:"categories"`
	}
	if err = json.Unmarshal(raw, &probe); err != nil {
		err = &domain.ErrImportFormat{Reason: "payload is not valid JSON"}
		return err
	}
	switch {
	case probe.Transactions == nil:
		err = &domain.ErrImportFormat{Reason: "missing transactions array"}
		return err
	case probe.Accounts == nil:
		err = &domain.ErrImportFormat{Reason: "missing accounts array"}
		return err
	case probe.Categories == nil:
		err = &domain.ErrImportFormat{Reason: "missing categories array"}
		return err
	}

	var snap domain.Snapshot
	if err = json.Unmarshal(raw, &snap); err != nil {
		err = &domain.ErrImportFormat{Reason: "malformed snapshot: " + err.Error()}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.store.ImportSnapshot(ctx, snap); err != nil {
		return err
	}
	s.logger.Info("snapshot imported",
		zap.Int("transactions", len(snap.Transactions)),
		zap.Int("accounts", len(snap.Accounts)),
		zap.Int("categories", len(snap.Categories)))
	s.store.Notify("Backup restored.", domain.NotifySuccess, now)
	s.checkAchievementsLocked(ctx, now)
	return nil
}

// Reset restores factory state: all collections cleared and the profile
// kept but unlocked and marked as not onboarded.
func (s *Finance) Reset(ctx context.Context, now time.Time) (err error) {
	ctx, span := tracer.Start(ctx, "Finance.Reset")
	defer span.End()
	start := time.Now()
	defer func() { s.observe("data.reset", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	profile := s.store.Profile()
	profile.OnboardingCompleted = false
	profile.PINHash = ""
	if err = s.store.Reset(ctx, profile); err != nil {
		return err
	}
	s.logger.Warn("all data reset")
	return nil
}

// Notifications returns the in-memory feed, newest first.
func (s *Finance) Notifications(ctx context.Context) []domain.Notification {
	_, span := tracer.Start(ctx, "Finance.Notifications")
	defer span.End()
	return s.store.Notifications()
}

// MarkNotificationRead marks one feed entry as read.
func (s *Finance) MarkNotificationRead(ctx context.Context, id string) error {
	_, span := tracer.Start(ctx, "Finance.MarkNotificationRead")
	defer span.End()
	return s.store.MarkNotificationRead(id)
}

// EngineStats returns the metrics snapshot surfaced on /v1/stats/engine.
func (s *Finance) EngineStats(ctx context.Context) *domain.EngineStats {
	_, span := tracer.Start(ctx, "Finance.EngineStats")
	defer span.End()
	return s.metrics.EngineSnapshot()
}
