package postgres

import (
	"fmt"
	"strings"
)

// joinWhere joins where conditions with AND.
func joinWhere(where []string) string {
	return strings.Join(where, " AND ")
}

// placeholder returns the n-th positional placeholder ($n).
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// placeholders returns count placeholders starting at offset+1, for
// building multi-row VALUES clauses.
func placeholders(offset, count int) string {
	list := make([]string, 0, count)
	for i := 0; i < count; i++ {
		list = append(list, placeholder(offset+i+1))
	}
	return strings.Join(list, ", ")
}
