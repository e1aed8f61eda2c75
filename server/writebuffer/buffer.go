package writebuffer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/streamscout/streamscout/store"
)

// DefaultFlushInterval is the auto-flush period. Comments and contact
// messages are latency-insensitive, so 30 seconds of buffering is cheap
// and collapses many single-row writes into one round trip.
const DefaultFlushInterval = 30 * time.Second

// Buffer batches comment and contact-message writes in memory and
// persists each kind as one multi-row insert per flush. Writes are
// fire-and-forget for the caller; durability is bounded by the flush
// interval. A failed flush re-buffers its batch for the next tick, so
// the guarantee is at-least-once with loss only on process crash.
type Buffer struct {
	store    *store.Store
	interval time.Duration
	now      func() time.Time

	// mu guards both pending slices. Flush swaps them for empty ones
	// under it, so pushes arriving during the store round-trip land in
	// the fresh buffers.
	mu              sync.Mutex
	comments        []*store.Comment
	contactMessages []*store.ContactMessage

	// flushMu serializes flushes; a timer tick and a manual flush must
	// not interleave their swap-persist sequences.
	flushMu sync.Mutex

	runMu sync.Mutex
	stop  chan struct{}
}

// Stats is a read-only snapshot of the buffer state.
type Stats struct {
	CommentBufferSize        int           `json:"commentBufferSize"`
	ContactMessageBufferSize int           `json:"contactMessageBufferSize"`
	AutoFlushEnabled         bool          `json:"autoFlushEnabled"`
	FlushInterval            time.Duration `json:"flushInterval"`
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithInterval overrides the auto-flush period.
func WithInterval(interval time.Duration) Option {
	return func(b *Buffer) {
		b.interval = interval
	}
}

// WithClock overrides the timestamp source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(b *Buffer) {
		b.now = now
	}
}

func New(st *store.Store, options ...Option) *Buffer {
	b := &Buffer{
		store:    st,
		interval: DefaultFlushInterval,
		now:      time.Now,
	}
	for _, option := range options {
		option(b)
	}
	return b
}

// AddComment buffers a comment and returns the pending row. The row
// already carries its final UID and timestamp; only the database id is
// missing until the flush lands.
func (b *Buffer) AddComment(streamerID, userID int32, content string, commentType store.CommentType) *store.Comment {
	if commentType == "" {
		commentType = store.CommentTypeNormal
	}
	comment := &store.Comment{
		UID:        shortuuid.New(),
		StreamerID: streamerID,
		UserID:     userID,
		Content:    content,
		Type:       commentType,
		CreatedTs:  b.now().Unix(),
	}

	b.mu.Lock()
	b.comments = append(b.comments, comment)
	b.mu.Unlock()
	return comment
}

// AddContactMessage buffers a contact-form submission and returns the
// pending row.
func (b *Buffer) AddContactMessage(userID int32, subject *string, message string) *store.ContactMessage {
	contactMessage := &store.ContactMessage{
		UserID:    userID,
		Subject:   subject,
		Message:   message,
		Status:    "pending",
		CreatedTs: b.now().Unix(),
	}

	b.mu.Lock()
	b.contactMessages = append(b.contactMessages, contactMessage)
	b.mu.Unlock()
	return contactMessage
}

// Flush persists everything buffered so far. Each kind goes out as one
// bulk insert; a batch that fails to persist is prepended back onto its
// live buffer, ahead of anything that arrived during the attempt, and
// the error is returned for the caller (or the timer loop) to log.
func (b *Buffer) Flush(ctx context.Context) error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	comments := b.comments
	contactMessages := b.contactMessages
	b.comments = nil
	b.contactMessages = nil
	b.mu.Unlock()

	if len(comments) == 0 && len(contactMessages) == 0 {
		return nil
	}

	var flushErr error
	if len(comments) > 0 {
		if err := b.store.CreateCommentsBatch(ctx, comments); err != nil {
			b.requeueComments(comments)
			flushErr = errors.Wrapf(err, "failed to flush %d comments", len(comments))
		} else {
			b.invalidateCommentCaches(ctx, comments)
			slog.Debug("flushed comments", "count", len(comments))
		}
	}
	if len(contactMessages) > 0 {
		if err := b.store.CreateContactMessagesBatch(ctx, contactMessages); err != nil {
			b.requeueContactMessages(contactMessages)
			if flushErr == nil {
				flushErr = errors.Wrapf(err, "failed to flush %d contact messages", len(contactMessages))
			} else {
				slog.Error("failed to flush contact messages", "count", len(contactMessages), "error", err)
			}
		} else {
			slog.Debug("flushed contact messages", "count", len(contactMessages))
		}
	}
	return flushErr
}

// Stats returns the current buffer sizes and flush configuration.
func (b *Buffer) Stats() *Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.runMu.Lock()
	running := b.stop != nil
	b.runMu.Unlock()

	return &Stats{
		CommentBufferSize:        len(b.comments),
		ContactMessageBufferSize: len(b.contactMessages),
		AutoFlushEnabled:         running,
		FlushInterval:            b.interval,
	}
}

// Start begins the auto-flush loop. Calling it on a running buffer is a
// no-op.
func (b *Buffer) Start() {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	if b.stop != nil {
		return
	}
	b.stop = make(chan struct{})
	go b.run(b.stop)
	slog.Info("write buffer started", "interval", b.interval)
}

// Stop cancels the auto-flush loop without flushing. Buffered writes
// stay in memory until the next Start or manual Flush. Idempotent.
func (b *Buffer) Stop() {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	if b.stop == nil {
		return
	}
	close(b.stop)
	b.stop = nil
	slog.Info("write buffer stopped")
}

func (b *Buffer) run(stop <-chan struct{}) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.Flush(context.Background()); err != nil {
				slog.Error("write buffer flush failed", "error", err)
			}
		case <-stop:
			return
		}
	}
}

func (b *Buffer) requeueComments(failed []*store.Comment) {
	b.mu.Lock()
	b.comments = append(failed, b.comments...)
	b.mu.Unlock()
}

func (b *Buffer) requeueContactMessages(failed []*store.ContactMessage) {
	b.mu.Lock()
	b.contactMessages = append(failed, b.contactMessages...)
	b.mu.Unlock()
}

// invalidateCommentCaches drops the cached comment list of every
// streamer in the flushed batch, once per streamer.
func (b *Buffer) invalidateCommentCaches(ctx context.Context, comments []*store.Comment) {
	seen := map[int32]struct{}{}
	for _, comment := range comments {
		if _, ok := seen[comment.StreamerID]; ok {
			continue
		}
		seen[comment.StreamerID] = struct{}{}
		b.store.InvalidateComments(ctx, comment.StreamerID)
	}
}
