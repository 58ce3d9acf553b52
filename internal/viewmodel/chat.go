package viewmodel

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/medscan-console/internal/domain"
	"github.com/sirupsen/logrus"
)

// EntryState tracks an optimistic chat entry until the backend settles it
type EntryState int

const (
	EntryPending EntryState = iota
	EntryConfirmed
	EntryFailed
)

func (s EntryState) String() string {
	switch s {
	case EntryPending:
		return "pending"
	case EntryConfirmed:
		return "confirmed"
	case EntryFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ChatEntry is a locally composed message shown after the server log of
// the item it was sent to
type ChatEntry[M any] struct {
	ID      string
	ItemID  string
	State   EntryState
	Message M
}

// composer holds the input box and the provisional tail of a chat screen.
// It is guarded by the owning ListDetail's mutex.
type composer[M any] struct {
	input   string
	pending []ChatEntry[M]
}

func (c *composer[M]) settle(id string, state EntryState) {
	for i := range c.pending {
		if c.pending[i].ID == id {
			c.pending[i].State = state
		}
	}
	if state == EntryFailed {
		c.drop(id)
	}
}

func (c *composer[M]) drop(id string) {
	kept := c.pending[:0]
	for _, e := range c.pending {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	c.pending = kept
}

// dropConfirmed removes entries now present in a freshly fetched server log
func (c *composer[M]) dropConfirmed() {
	kept := c.pending[:0]
	for _, e := range c.pending {
		if e.State != EntryConfirmed {
			kept = append(kept, e)
		}
	}
	c.pending = kept
}

func (c *composer[M]) snapshot() (string, []ChatEntry[M]) {
	return c.input, append([]ChatEntry[M](nil), c.pending...)
}

// tail returns the messages of entries sent to itemID, in submission order
func tail[M any](entries []ChatEntry[M], itemID string) []M {
	var out []M
	for _, e := range entries {
		if e.ItemID == itemID {
			out = append(out, e.Message)
		}
	}
	return out
}

// chatSend describes one optimistic submission
type chatSend[M any] struct {
	// compose builds the provisional entry from the trimmed input
	compose func(text string) M
	// call performs the backend mutation for the selected item
	call     func(ctx context.Context, id, text string) error
	empty    string
	fallback string
}

// submit appends a pending entry, clears the input and calls the backend.
// On success the selected item is replaced by its re-fetched detail, which
// carries the server's turns. On failure the entry is removed, the input
// is restored and LastError is set, so the visible log is unchanged. The
// input is only restored while the target item is still selected.
func submit[T Identifiable, M any](ctx context.Context, l *ListDetail[T], c *composer[M], op chatSend[M]) error {
	if err := l.deps.requireAuth(); err != nil {
		return err
	}

	l.mu.Lock()
	if l.state.Selected == nil {
		l.mu.Unlock()
		return domain.ErrNoSelection
	}
	if l.state.IsProcessing {
		l.mu.Unlock()
		return domain.ErrOperationInFlight
	}
	original := c.input
	text := strings.TrimSpace(original)
	if text == "" {
		verr := domain.NewValidationError("message", op.empty)
		l.state.LastError = verr.Message
		l.mu.Unlock()
		return verr
	}

	item := *l.state.Selected
	entry := ChatEntry[M]{
		ID:      uuid.NewString(),
		ItemID:  item.GetID(),
		State:   EntryPending,
		Message: op.compose(text),
	}
	c.pending = append(c.pending, entry)
	c.input = ""
	l.state.IsProcessing = true
	l.state.LastError = ""
	l.mu.Unlock()

	logger := l.logger().WithFields(logrus.Fields{"id": item.GetID(), "entry_id": entry.ID})

	if err := op.call(ctx, item.GetID(), text); err != nil {
		l.mu.Lock()
		c.settle(entry.ID, EntryFailed)
		if l.state.Selected != nil && (*l.state.Selected).GetID() == item.GetID() {
			c.input = original
		}
		l.state.IsProcessing = false
		l.state.LastError = DisplayMessage(err, op.fallback)
		l.mu.Unlock()
		logger.WithError(err).Warn("Message rejected, rolled back")
		return err
	}

	l.mu.Lock()
	c.settle(entry.ID, EntryConfirmed)
	l.mu.Unlock()
	logger.Debug("Message confirmed")

	var detail *T
	var err error
	if l.fetchDetail != nil {
		detail, err = l.fetchDetail(ctx, item)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.IsProcessing = false
	if err != nil {
		// The confirmed entry stays visible until the next successful fetch
		l.state.LastError = DisplayMessage(err, l.fallbacks.detail)
		return err
	}
	if detail != nil {
		l.replaceSelectedLocked(*detail)
	}
	c.dropConfirmed()
	return nil
}
