package store

import (
	"context"
	"log/slog"
)

// TagCategory is the object representing one tag's category assignment,
// used to group the tag picker.
type TagCategory struct {
	ID           int32
	CategoryName string
	TagName      string
	SortOrder    int32
}

// ListTagCategories returns the category name -> tag names mapping,
// cached as one entry. Ordering within a category follows the driver's
// sort order.
func (s *Store) ListTagCategories(ctx context.Context) (map[string][]string, error) {
	if v, ok := s.tagCategoryCache.Get(ctx, tagCategoriesCacheKey); ok {
		return v.(map[string][]string), nil
	}

	rows, err := s.driver.ListTagCategories(ctx)
	if err != nil {
		return nil, err
	}

	categories := map[string][]string{}
	for _, row := range rows {
		categories[row.CategoryName] = append(categories[row.CategoryName], row.TagName)
	}
	s.tagCategoryCache.Set(ctx, tagCategoriesCacheKey, categories)
	slog.Debug("cached tag categories", "count", len(categories))
	return categories, nil
}
