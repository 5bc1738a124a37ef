package service

import (
	"context"
	"strings"

	"github.com/granaapp/grana-go/internal/domain"
)

// minSuggestionLen is the shortest description prefix worth matching;
// anything shorter produces too much noise to be useful.
const minSuggestionLen = 3

// Suggest proposes the category and account of the most recent past
// transaction whose description contains the given text,
// case-insensitively. An empty suggestion means no match.
func (s *Finance) Suggest(ctx context.Context, description string) domain.Suggestion {
	_, span := tracer.Start(ctx, "Finance.Suggest")
	defer span.End()

	needle := strings.ToLower(strings.TrimSpace(description))
	if len(needle) < minSuggestionLen {
		return domain.Suggestion{}
	}

	var best *domain.Transaction
	for _, tx := range s.store.Transactions() {
		if !strings.Contains(strings.ToLower(tx.Description), needle) {
			continue
		}
		if best == nil || tx.Date.After(best.Date) {
			t := tx
			best = &t
		}
	}
	if best == nil {
		return domain.Suggestion{}
	}
	return domain.Suggestion{CategoryID: best.CategoryID, AccountID: best.AccountID}
}
