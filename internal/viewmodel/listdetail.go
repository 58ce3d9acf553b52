package viewmodel

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/medscan-console/internal/domain"
	"github.com/sirupsen/logrus"
)

// Identifiable is an item of a list/detail screen
type Identifiable interface {
	GetID() string
}

// State is a snapshot of a list/detail screen. Selected is either nil or
// an entry whose id is present in Items.
type State[T Identifiable] struct {
	Items        []T
	Selected     *T
	IsLoading    bool
	IsProcessing bool
	LastError    string
}

// Fallback texts shown when the backend gives no usable message
type fallbacks struct {
	load   string
	detail string
	create string
}

// ListDetail implements load/select/create over a backend collection
type ListDetail[T Identifiable] struct {
	mu    sync.Mutex
	state State[T]

	deps        Deps
	name        string
	fallbacks   fallbacks
	fetchList   func(ctx context.Context) ([]T, error)
	fetchDetail func(ctx context.Context, item T) (*T, error)

	// onFresh runs under the lock whenever Selected changes or is re-fetched
	onFresh func()
}

func newListDetail[T Identifiable](deps Deps, name string, fb fallbacks,
	fetchList func(ctx context.Context) ([]T, error),
	fetchDetail func(ctx context.Context, item T) (*T, error),
) *ListDetail[T] {
	return &ListDetail[T]{
		deps:        deps.withDefaults(),
		name:        name,
		fallbacks:   fb,
		fetchList:   fetchList,
		fetchDetail: fetchDetail,
	}
}

// Snapshot returns a copy of the current state
func (l *ListDetail[T]) Snapshot() State[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *ListDetail[T]) snapshotLocked() State[T] {
	s := l.state
	s.Items = slices.Clone(l.state.Items)
	if l.state.Selected != nil {
		sel := *l.state.Selected
		s.Selected = &sel
	}
	return s
}

// Load fetches the collection and replaces Items in server order. The
// selection survives only if its id is still present.
func (l *ListDetail[T]) Load(ctx context.Context) error {
	if err := l.deps.requireAuth(); err != nil {
		return err
	}

	l.mu.Lock()
	l.state.IsLoading = true
	l.mu.Unlock()

	items, err := l.fetchList(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.IsLoading = false
	if err != nil {
		l.state.LastError = DisplayMessage(err, l.fallbacks.load)
		l.logger().WithError(err).Warn("Failed to load collection")
		return err
	}

	if items == nil {
		items = []T{}
	}
	l.state.Items = items
	if l.state.Selected != nil && indexOf(items, (*l.state.Selected).GetID()) < 0 {
		l.state.Selected = nil
	}

	l.logger().WithField("count", len(items)).Debug("Collection loaded")
	return nil
}

// Select marks a loaded item as selected and fetches its full record when
// the screen needs more than the list entry carries.
func (l *ListDetail[T]) Select(ctx context.Context, id string) error {
	l.mu.Lock()
	i := indexOf(l.state.Items, id)
	if i < 0 {
		l.mu.Unlock()
		return fmt.Errorf("%s %s is not loaded: %w", l.name, id, domain.ErrNoSelection)
	}
	item := l.state.Items[i]
	l.state.Selected = &item
	l.state.LastError = ""
	if l.onFresh != nil {
		l.onFresh()
	}
	l.mu.Unlock()

	return l.refreshSelected(ctx, item)
}

// ClearSelection deselects the current item
func (l *ListDetail[T]) ClearSelection() {
	l.mu.Lock()
	l.state.Selected = nil
	l.mu.Unlock()
}

// Refresh re-fetches the selected item
func (l *ListDetail[T]) Refresh(ctx context.Context) error {
	item, err := l.selected()
	if err != nil {
		return err
	}
	return l.refreshSelected(ctx, item)
}

func (l *ListDetail[T]) refreshSelected(ctx context.Context, item T) error {
	if l.fetchDetail == nil {
		return nil
	}
	if err := l.deps.requireAuth(); err != nil {
		return err
	}

	detail, err := l.fetchDetail(ctx, item)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.state.LastError = DisplayMessage(err, l.fallbacks.detail)
		l.logger().WithError(err).WithField("id", item.GetID()).Warn("Failed to load detail")
		return err
	}
	l.replaceSelectedLocked(*detail)
	return nil
}

// replaceSelectedLocked swaps in a fresher record for the selected item,
// unless the user moved on to something else in the meantime.
func (l *ListDetail[T]) replaceSelectedLocked(detail T) {
	if l.state.Selected == nil || (*l.state.Selected).GetID() != detail.GetID() {
		return
	}
	l.state.Selected = &detail
	if l.onFresh != nil {
		l.onFresh()
	}
}

// create runs a backend create call, reloads the collection and selects
// the new item. On failure Items and Selected are left as they were.
func (l *ListDetail[T]) create(ctx context.Context, call func(ctx context.Context) (string, error)) (string, error) {
	if err := l.deps.requireAuth(); err != nil {
		return "", err
	}
	if err := l.begin(); err != nil {
		return "", err
	}

	id, err := call(ctx)
	if err != nil {
		l.finish(err, l.fallbacks.create)
		return "", err
	}
	l.finish(nil, "")

	if err := l.Load(ctx); err != nil {
		return id, err
	}
	// Creation responses carry only an id; Select fetches the full record
	return id, l.Select(ctx, id)
}

// begin marks the screen as processing, rejecting a concurrent submission
func (l *ListDetail[T]) begin() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsProcessing {
		return domain.ErrOperationInFlight
	}
	l.state.IsProcessing = true
	l.state.LastError = ""
	return nil
}

// finish clears the processing flag and records err, if any
func (l *ListDetail[T]) finish(err error, fallback string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.IsProcessing = false
	if err != nil {
		l.state.LastError = DisplayMessage(err, fallback)
		l.logger().WithError(err).Warn("Operation failed")
	}
}

// fail records a local failure without touching the processing flag
func (l *ListDetail[T]) fail(err error, fallback string) error {
	l.mu.Lock()
	l.state.LastError = DisplayMessage(err, fallback)
	l.mu.Unlock()
	return err
}

func (l *ListDetail[T]) selected() (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.Selected == nil {
		var zero T
		return zero, domain.ErrNoSelection
	}
	return *l.state.Selected, nil
}

func (l *ListDetail[T]) logger() *logrus.Entry {
	return l.deps.Logger.WithField("screen", l.name)
}

func indexOf[T Identifiable](items []T, id string) int {
	for i, it := range items {
		if it.GetID() == id {
			return i
		}
	}
	return -1
}
