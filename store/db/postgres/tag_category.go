package postgres

import (
	"context"
	"fmt"

	"github.com/streamscout/streamscout/store"
)

func (d *DB) ListTagCategories(ctx context.Context) ([]*store.TagCategory, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, category_name, tag_name, sort_order
		FROM tag_category
		ORDER BY category_name, sort_order, tag_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tag categories: %w", err)
	}
	defer rows.Close()

	list := []*store.TagCategory{}
	for rows.Next() {
		tagCategory := &store.TagCategory{}
		if err := rows.Scan(
			&tagCategory.ID,
			&tagCategory.CategoryName,
			&tagCategory.TagName,
			&tagCategory.SortOrder,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tag category: %w", err)
		}
		list = append(list, tagCategory)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tag categories: %w", err)
	}
	return list, nil
}
