package service

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/admissions-api/internal/models"
)

type categoryNameFinder interface {
	FindCategoryName(ctx context.Context, id int64) (string, error)
}

// CategoryResolver turns a stored program_category, which may be a free-text
// name or a numeric program_categories id, into a canonical upper-case name.
type CategoryResolver struct {
	finder categoryNameFinder
	logger *zap.Logger
}

// NewCategoryResolver constructs the resolver.
func NewCategoryResolver(finder categoryNameFinder, logger *zap.Logger) *CategoryResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryResolver{finder: finder, logger: logger}
}

// Resolve never fails: when a numeric id cannot be resolved the raw value is used.
func (r *CategoryResolver) Resolve(ctx context.Context, raw string) string {
	trimmed := strings.TrimSpace(raw)
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || r == nil || r.finder == nil {
		return models.NormalizeCategory(trimmed)
	}
	name, err := r.finder.FindCategoryName(ctx, id)
	if err != nil || strings.TrimSpace(name) == "" {
		r.logger.Warn("program category id not resolved, using raw value", zap.String("category", trimmed), zap.Error(err))
		return models.NormalizeCategory(trimmed)
	}
	return models.NormalizeCategory(name)
}

func categoryIn(category string, list []string) bool {
	for _, candidate := range list {
		if models.NormalizeCategory(candidate) == category {
			return true
		}
	}
	return false
}
