package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/streamscout/streamscout/store"
)

func (d *DB) CreateContactMessagesBatch(ctx context.Context, creates []*store.ContactMessage) error {
	if len(creates) == 0 {
		return nil
	}

	const fieldCount = 5
	values := make([]string, 0, len(creates))
	args := make([]any, 0, len(creates)*fieldCount)
	for i, create := range creates {
		createdTs := create.CreatedTs
		if createdTs == 0 {
			createdTs = time.Now().Unix()
		}
		status := create.Status
		if status == "" {
			status = "pending"
		}
		values = append(values, "("+placeholders(i*fieldCount, fieldCount)+")")
		args = append(args, create.UserID, create.Subject, create.Message, status, createdTs)
	}

	stmt := `INSERT INTO contact_message (user_id, subject, message, status, created_ts)
		VALUES ` + strings.Join(values, ", ")

	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to create %d contact messages: %w", len(creates), err)
	}
	return nil
}
