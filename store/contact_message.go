package store

import "context"

// ContactMessage is the object representing a contact-form submission.
type ContactMessage struct {
	ID        int32
	UserID    int32
	Subject   *string
	Message   string
	Status    string
	CreatedTs int64
}

// CreateContactMessagesBatch persists a batch of contact messages as one
// multi-row insert.
func (s *Store) CreateContactMessagesBatch(ctx context.Context, creates []*ContactMessage) error {
	return s.driver.CreateContactMessagesBatch(ctx, creates)
}
