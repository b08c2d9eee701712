// Package checklist owns the check list: one ordered, in-memory sequence of
// items that is persisted in full and announced to subscribers after every
// mutation.
package checklist

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idilsaglam/checklist/internal/metrics"
	"github.com/idilsaglam/checklist/internal/model"
	"github.com/idilsaglam/checklist/internal/notify"
)

// DefaultPersistTimeout bounds a single snapshot write.
const DefaultPersistTimeout = 5 * time.Second

// Backend is durable snapshot storage. Load is called once at startup;
// Save overwrites the snapshot with the full list.
type Backend interface {
	Load(ctx context.Context) ([]model.Item, error)
	Save(ctx context.Context, items []model.Item) error
}

// Store is the sole mutator of the list. Every method is safe for
// concurrent use; mutations are serialized by one mutex that also covers
// the snapshot write and the event publish, so subscribers observe events
// in mutation order.
type Store struct {
	mu      sync.Mutex
	items   []model.Item
	backend Backend
	hub     *notify.Hub
	logger  *zap.Logger
	metrics *metrics.Recorder
	timeout time.Duration
	newID   func() string
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Store) { s.metrics = r }
}

// WithHub lets the composition root share a hub with other publishers.
func WithHub(h *notify.Hub) Option {
	return func(s *Store) {
		if h != nil {
			s.hub = h
		}
	}
}

func WithPersistTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithIDFunc replaces the id generator; tests use it for stable ids.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New returns an empty store. Call Load to populate it from the backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		hub:     notify.NewHub(),
		logger:  zap.NewNop(),
		timeout: DefaultPersistTimeout,
		newID:   newHexID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open builds a store and loads the initial snapshot.
func Open(ctx context.Context, backend Backend, opts ...Option) (*Store, error) {
	s := New(backend, opts...)
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Load replaces the in-memory list with the backend snapshot.
func (s *Store) Load(ctx context.Context) error {
	items, err := s.backend.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = model.CloneItems(items)
	s.metrics.Loaded(len(s.items))
	s.logger.Debug("check list loaded", zap.Int("items", len(s.items)))
	return nil
}

// Add appends a new incomplete item and returns it.
func (s *Store) Add(ctx context.Context, name string, itemType *string) model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := model.Item{
		ID:       s.newID(),
		Name:     name,
		Complete: false,
		Index:    len(s.items),
	}
	if itemType != nil {
		t := *itemType
		it.ItemType = &t
	}
	s.items = append(s.items, it)

	out := it.Clone()
	s.commitLocked(ctx, model.Event{Action: model.ActionAdd, Item: &out})
	return it.Clone()
}

// Update applies a partial update to the item with the given id. The item
// is looked up before fields are validated.
func (s *Store) Update(ctx context.Context, id string, fields model.Fields) (model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.indexOfLocked(id)
	if pos < 0 {
		s.metrics.OperationError("update", "not_found")
		return model.Item{}, notFound(id)
	}
	patch, err := decode(fields)
	if err != nil {
		s.metrics.OperationError("update", "validation")
		return model.Item{}, err
	}
	s.items[pos] = patch.Apply(s.items[pos])

	out := s.items[pos].Clone()
	s.commitLocked(ctx, model.Event{Action: model.ActionUpdate, Item: &out})
	return s.items[pos].Clone(), nil
}

// ClearCompleted drops every completed item, keeping the others in order.
func (s *Store) ClearCompleted(ctx context.Context) []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]model.Item, 0, len(s.items))
	for _, it := range s.items {
		if !it.Complete {
			kept = append(kept, it)
		}
	}
	s.items = kept

	s.commitLocked(ctx, model.Event{Action: model.ActionClearCompleted, Items: model.CloneItems(s.items)})
	return model.CloneItems(s.items)
}

// ListItems returns the list and, like every mutation, persists it and
// emits a list_items event. Readers that only need the data should call
// Items instead.
func (s *Store) ListItems(ctx context.Context) []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commitLocked(ctx, model.Event{Action: model.ActionListItems, Items: model.CloneItems(s.items)})
	return model.CloneItems(s.items)
}

// UpdateAll applies the same partial update to every item.
func (s *Store) UpdateAll(ctx context.Context, fields model.Fields) ([]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	patch, err := decode(fields)
	if err != nil {
		s.metrics.OperationError("update_list", "validation")
		return nil, err
	}
	for i := range s.items {
		s.items[i] = patch.Apply(s.items[i])
	}

	s.commitLocked(ctx, model.Event{Action: model.ActionUpdateList, Items: model.CloneItems(s.items)})
	return model.CloneItems(s.items), nil
}

// Reorder moves the named items to the front in the given order. Every
// incomplete item must be named; completed items that are left out follow
// in their previous relative order. On error the list is unchanged.
func (s *Store) Reorder(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := make(map[string]model.Item, len(s.items))
	for _, it := range s.items {
		remaining[it.ID] = it
	}

	ordered := make([]model.Item, 0, len(s.items))
	for _, id := range ids {
		it, ok := remaining[id]
		if !ok {
			s.metrics.OperationError("reorder", "not_found")
			return notFound(id)
		}
		ordered = append(ordered, it)
		delete(remaining, id)
	}

	for _, it := range s.items {
		left, ok := remaining[it.ID]
		if !ok {
			continue
		}
		if !left.Complete {
			s.metrics.OperationError("reorder", "validation")
			return &ValidationError{Reason: "The item ids array doesn't contain all the unchecked check list items."}
		}
		ordered = append(ordered, left)
	}
	s.items = ordered

	s.commitLocked(ctx, model.Event{Action: model.ActionReorder, Items: model.CloneItems(s.items)})
	return nil
}

// Items returns a copy of the list without persisting or notifying.
func (s *Store) Items() []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CloneItems(s.items)
}

// Get returns the item with the given id.
func (s *Store) Get(id string) (model.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pos := s.indexOfLocked(id); pos >= 0 {
		return s.items[pos].Clone(), true
	}
	return model.Item{}, false
}

// FindByName returns the first item whose name matches exactly.
func (s *Store) FindByName(name string) (model.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.Name == name {
			return it.Clone(), true
		}
	}
	return model.Item{}, false
}

// Subscribe registers for store events. Call cancel when done.
func (s *Store) Subscribe(buffer int) (<-chan model.Event, func()) {
	return s.hub.Subscribe(buffer)
}

// Subscribers reports how many listeners are attached.
func (s *Store) Subscribers() int {
	return s.hub.Subscribers()
}

// Close ends all subscriptions.
func (s *Store) Close() {
	s.hub.Close()
}

func (s *Store) indexOfLocked(id string) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// commitLocked persists the current list and publishes ev. A failed write is
// logged and counted; the in-memory change stands and the event still fires.
func (s *Store) commitLocked(ctx context.Context, ev model.Event) {
	started := time.Now()
	// the write must finish even if the caller goes away
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	err := s.backend.Save(wctx, model.CloneItems(s.items))
	cancel()
	s.metrics.Persisted(started, err)
	if err != nil {
		s.logger.Warn("check list snapshot not saved",
			zap.String("action", string(ev.Action)),
			zap.Int("items", len(s.items)),
			zap.Error(err))
	}

	s.metrics.Mutation(string(ev.Action), len(s.items))
	dropped := s.hub.Dropped()
	n := s.hub.Publish(ev)
	s.metrics.EventsDropped(s.hub.Dropped() - dropped)
	s.logger.Debug("check list updated",
		zap.String("action", string(ev.Action)),
		zap.Int("items", len(s.items)),
		zap.Int("subscribers", n))
}

func decode(fields model.Fields) (model.Patch, error) {
	p, err := fields.Decode()
	if err != nil {
		var fe *model.FieldError
		if errors.As(err, &fe) {
			return model.Patch{}, &ValidationError{Field: fe.Field, Reason: fe.Reason}
		}
		return model.Patch{}, &ValidationError{Reason: err.Error()}
	}
	return p, nil
}

func newHexID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
