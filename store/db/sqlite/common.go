package sqlite

import (
	"encoding/json"
	"strings"
)

// joinWhere joins where conditions with AND.
func joinWhere(where []string) string {
	return strings.Join(where, " AND ")
}

// placeholder returns a positional placeholder. SQLite uses ? regardless
// of position; the argument keeps the call sites symmetric with the
// PostgreSQL driver.
func placeholder(int) string {
	return "?"
}

// placeholders returns count placeholders for building multi-row VALUES
// clauses. The offset is unused for SQLite.
func placeholders(_, count int) string {
	list := make([]string, 0, count)
	for i := 0; i < count; i++ {
		list = append(list, "?")
	}
	return strings.Join(list, ", ")
}

// unmarshalTags decodes the JSON text tags column. SQLite has no array
// type, so tags are stored as a JSON string.
func unmarshalTags(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	tags := []string{}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, err
	}
	return tags, nil
}
