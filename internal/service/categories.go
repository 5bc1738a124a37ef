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

func validateCategoryDraft(draft domain.CategoryDraft) error {
	if strings.TrimSpace(draft.Name) == "" {
		return &domain.ErrValidation{Field: "name", Message: "must not be empty"}
	}
	if !draft.Type.Valid() {
		return &domain.ErrValidation{Field: "type", Message: "must be income or expense"}
	}
	return nil
}

// ListCategories returns all categories.
func (s *Finance) ListCategories(ctx context.Context) []domain.Category {
	_, span := tracer.Start(ctx, "Finance.ListCategories")
	defer span.End()
	return s.store.Categories()
}

// AddCategory creates a new category.
func (s *Finance) AddCategory(ctx context.Context, draft domain.CategoryDraft) (category domain.Category, err error) {
	ctx, span := tracer.Start(ctx, "Finance.AddCategory")
	defer span.End()
	start := time.Now()
	defer func() { s.observe("category.add", start, err) }()

	if err = validateCategoryDraft(draft); err != nil {
		return domain.Category{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	category = domain.Category{
		ID:    uuid.NewString(),
		Name:  draft.Name,
		Icon:  draft.Icon,
		Color: draft.Color,
		Type:  draft.Type,
	}
	if err = s.store.PutCategory(ctx, category); err != nil {
		return domain.Category{}, err
	}
	s.logger.Info("category created",
		zap.String("category_id", category.ID),
		zap.String("type", string(category.Type)))
	return category, nil
}

// UpdateCategory replaces the mutable fields of a category. Changing the
// type of the last category of its kind is rejected for the same reason
// removal is.
func (s *Finance) UpdateCategory(ctx context.Context, id string, draft domain.CategoryDraft) (category domain.Category, err error) {
	ctx, span := tracer.Start(ctx, "Finance.UpdateCategory")
	defer span.End()
	span.SetAttributes(attribute.String("category.id", id))
	start := time.Now()
	defer func() { s.observe("category.update", start, err) }()

	if err = validateCategoryDraft(draft); err != nil {
		return domain.Category{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.store.Category(id)
	if !ok {
		err = &domain.ErrNotFound{Resource: "category", ID: id}
		return domain.Category{}, err
	}
	if existing.Type != draft.Type && s.store.CountCategoriesOfType(existing.Type) <= 1 {
		err = &domain.ErrConstraint{Message: "cannot change the type of the last " + string(existing.Type) + " category"}
		return domain.Category{}, err
	}

	category = domain.Category{
		ID:    id,
		Name:  draft.Name,
		Icon:  draft.Icon,
		Color: draft.Color,
		Type:  draft.Type,
	}
	if err = s.store.PutCategory(ctx, category); err != nil {
		return domain.Category{}, err
	}
	return category, nil
}

// RemoveCategory deletes a category and its budget, if any. Categories
// referenced by transactions, and the last category of either type, cannot
// be removed.
func (s *Finance) RemoveCategory(ctx context.Context, id string) (err error) {
	ctx, span := tracer.Start(ctx, "Finance.RemoveCategory")
	defer span.End()
	span.SetAttributes(attribute.String("category.id", id))
	start := time.Now()
	defer func() { s.observe("category.remove", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	category, ok := s.store.Category(id)
	if !ok {
		err = &domain.ErrNotFound{Resource: "category", ID: id}
		return err
	}
	if s.store.CategoryHasTransactions(id) {
		err = &domain.ErrConstraint{Message: "category has transactions; remove them first"}
		return err
	}
	if s.store.CountCategoriesOfType(category.Type) <= 1 {
		err = &domain.ErrConstraint{Message: "cannot remove the last " + string(category.Type) + " category"}
		return err
	}
	return s.store.DeleteCategory(ctx, id)
}
