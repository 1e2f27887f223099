package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"yessir/internal/domain"
	"yessir/internal/ports"
)

var ErrUnknownKind = errors.New("unknown item kind")

// CacheSnapshot is the published view of the local cache.
type CacheSnapshot struct {
	Todos    []domain.Item            `json:"todos"`
	Notes    []domain.Item            `json:"notes"`
	Loaded   map[domain.ItemKind]bool `json:"loaded"`
	Loading  map[domain.ItemKind]bool `json:"loading"`
	Keywords map[string]string        `json:"keywords"`
	Err      *domain.ListError        `json:"error,omitempty"`
}

// CacheOption customizes a LocalCache.
type CacheOption func(*LocalCache)

// WithClock overrides the clock used for placeholder timestamps.
func WithClock(now func() time.Time) CacheOption {
	return func(c *LocalCache) { c.now = now }
}

// WithIDGenerator overrides placeholder id generation.
func WithIDGenerator(newID func() string) CacheOption {
	return func(c *LocalCache) { c.newID = newID }
}

// LocalCache holds todo/note lists and keyword aliases in memory, reconciled
// with the backend on load. Inserts after interpretation are applied without
// confirmation; deletes and keyword edits are applied after backend success.
type LocalCache struct {
	items    ports.ItemStore
	keywords ports.KeywordStore
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string

	loads singleflight.Group

	// publishMu orders snapshots with their publication.
	publishMu sync.Mutex

	mu      sync.RWMutex
	lists   map[domain.ItemKind][]domain.Item
	loaded  map[domain.ItemKind]bool
	loading map[domain.ItemKind]bool
	aliases map[string]string
	err     *domain.ListError

	changes *Feed[CacheSnapshot]
}

func NewLocalCache(items ports.ItemStore, keywords ports.KeywordStore, logger *zap.Logger, opts ...CacheOption) *LocalCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &LocalCache{
		items:    items,
		keywords: keywords,
		logger:   logger.Named("cache"),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		lists:    make(map[domain.ItemKind][]domain.Item),
		loaded:   make(map[domain.ItemKind]bool),
		loading:  make(map[domain.ItemKind]bool),
		aliases:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.changes = NewFeed(c.Snapshot())
	return c
}

// Changes publishes a snapshot after every mutation.
func (c *LocalCache) Changes() *Feed[CacheSnapshot] {
	return c.changes
}

// LoadIfNeeded fetches the list for kind unless it has already been loaded.
// Concurrent calls for the same kind share one backend request.
func (c *LocalCache) LoadIfNeeded(ctx context.Context, kind domain.ItemKind) ([]domain.Item, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	if c.Loaded(kind) {
		return c.Items(kind), nil
	}
	return c.load(ctx, kind, false)
}

// Reload refetches the list for kind regardless of the loaded flag.
func (c *LocalCache) Reload(ctx context.Context, kind domain.ItemKind) ([]domain.Item, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	return c.load(ctx, kind, true)
}

// load shares one fetch per kind between callers. The fetch outlives any
// single caller; a caller whose ctx ends stops waiting without failing the
// others.
func (c *LocalCache) load(ctx context.Context, kind domain.ItemKind, force bool) ([]domain.Item, error) {
	results := c.loads.DoChan(string(kind), func() (any, error) {
		if !force && c.Loaded(kind) {
			return nil, nil
		}
		return nil, c.fetch(context.WithoutCancel(ctx), kind)
	})

	select {
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return c.Items(kind), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *LocalCache) fetch(ctx context.Context, kind domain.ItemKind) error {
	c.mu.Lock()
	c.loading[kind] = true
	c.err = nil
	c.mu.Unlock()
	c.publish()

	defer func() {
		c.mu.Lock()
		c.loading[kind] = false
		c.mu.Unlock()
		c.publish()
	}()

	items, err := c.items.ListItems(ctx, kind)
	if errors.Is(err, context.Canceled) {
		c.logger.Debug("item load cancelled", zap.String("kind", string(kind)))
		return fmt.Errorf("load %s: %w", kind.Plural(), err)
	}
	if err != nil {
		c.logger.Error("failed to load items", zap.String("kind", string(kind)), zap.Error(err))
		c.retain(domain.ListError{
			Category: domain.ErrorCategoryCacheLoad,
			Kind:     kind,
			Message:  fmt.Sprintf("Failed to load %s: %v", kind.Plural(), err),
		})
		return fmt.Errorf("load %s: %w", kind.Plural(), err)
	}

	list := make([]domain.Item, 0, len(items))
	for _, item := range items {
		item.Kind = kind
		list = append(list, item)
	}

	c.mu.Lock()
	c.lists[kind] = list
	c.loaded[kind] = true
	c.mu.Unlock()

	c.logger.Debug("items loaded", zap.String("kind", string(kind)), zap.Int("count", len(list)))
	return nil
}

// InsertFromResult prepends the item created by a todo or note interpretation.
// It reports false for other intent types.
func (c *LocalCache) InsertFromResult(result domain.CommandResult) (domain.Item, bool) {
	var kind domain.ItemKind
	switch result.Type {
	case domain.IntentTodo:
		kind = domain.KindTodo
	case domain.IntentNote:
		kind = domain.KindNote
	default:
		return domain.Item{}, false
	}

	item := domain.Item{
		ID:       result.DataID("id"),
		Title:    result.DataString("title"),
		Text:     result.DataString("text"),
		Kind:     kind,
		Priority: result.DataString("priority"),
		Status:   result.DataString("status"),
	}
	if createdAt, ok := domain.ParseTimestamp(result.DataString("created_at")); ok {
		item.CreatedAt = createdAt
	}

	inserted, err := c.InsertOptimistic(item)
	if err != nil {
		return domain.Item{}, false
	}
	return inserted, true
}

// InsertOptimistic prepends item to its kind's list. A missing or clashing id
// is replaced with a generated one and a missing timestamp with the local
// time; both are display placeholders only.
func (c *LocalCache) InsertOptimistic(item domain.Item) (domain.Item, error) {
	if err := checkKind(item.Kind); err != nil {
		return domain.Item{}, err
	}

	c.mu.Lock()
	existing := c.lists[item.Kind]
	if strings.TrimSpace(item.ID) == "" || containsID(existing, item.ID) {
		item.ID = c.newID()
		for containsID(existing, item.ID) {
			item.ID = c.newID()
		}
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = c.now()
	}

	list := make([]domain.Item, 0, len(existing)+1)
	list = append(list, item)
	list = append(list, existing...)
	c.lists[item.Kind] = list
	c.mu.Unlock()

	c.publish()
	return item, nil
}

// DeleteItem removes id from kind's list once the backend confirms the
// delete. On failure the item stays listed and a dismissible error is kept.
func (c *LocalCache) DeleteItem(ctx context.Context, id string, kind domain.ItemKind) error {
	if err := checkKind(kind); err != nil {
		return err
	}

	result, err := c.items.DeleteItem(ctx, id, kind)
	if err == nil && !result.Success {
		err = rejection(result.Message, "delete was not confirmed")
	}
	if err != nil {
		c.logger.Error("failed to delete item",
			zap.String("kind", string(kind)),
			zap.String("id", id),
			zap.Error(err))
		c.retain(domain.ListError{
			Category: domain.ErrorCategoryMutation,
			Kind:     kind,
			Message:  fmt.Sprintf("Failed to delete %s: %v", kind, err),
		})
		c.publish()
		return fmt.Errorf("delete %s %q: %w", kind, id, err)
	}

	c.mu.Lock()
	existing := c.lists[kind]
	kept := make([]domain.Item, 0, len(existing))
	for _, item := range existing {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	c.lists[kind] = kept
	c.mu.Unlock()

	c.publish()
	return nil
}

// Items returns a copy of kind's list.
func (c *LocalCache) Items(kind domain.ItemKind) []domain.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Item(nil), c.lists[kind]...)
}

// Loaded reports whether kind has been loaded from the backend at least once.
func (c *LocalCache) Loaded(kind domain.ItemKind) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded[kind]
}

// Loading reports whether a load for kind is in flight.
func (c *LocalCache) Loading(kind domain.ItemKind) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading[kind]
}

// Err returns the retained list error, if any.
func (c *LocalCache) Err() *domain.ListError {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.err == nil {
		return nil
	}
	copied := *c.err
	return &copied
}

// DismissError clears the retained list error.
func (c *LocalCache) DismissError() {
	c.mu.Lock()
	c.err = nil
	c.mu.Unlock()
	c.publish()
}

// Snapshot returns a copy of the whole cache.
func (c *LocalCache) Snapshot() CacheSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := CacheSnapshot{
		Todos:    append([]domain.Item(nil), c.lists[domain.KindTodo]...),
		Notes:    append([]domain.Item(nil), c.lists[domain.KindNote]...),
		Loaded:   make(map[domain.ItemKind]bool, len(domain.ItemKinds)),
		Loading:  make(map[domain.ItemKind]bool, len(domain.ItemKinds)),
		Keywords: make(map[string]string, len(c.aliases)),
	}
	for _, kind := range domain.ItemKinds {
		snapshot.Loaded[kind] = c.loaded[kind]
		snapshot.Loading[kind] = c.loading[kind]
	}
	for key, value := range c.aliases {
		snapshot.Keywords[key] = value
	}
	if c.err != nil {
		copied := *c.err
		snapshot.Err = &copied
	}
	return snapshot
}

func (c *LocalCache) retain(listErr domain.ListError) {
	c.mu.Lock()
	c.err = &listErr
	c.mu.Unlock()
}

// publish must not be called from a Changes subscriber.
func (c *LocalCache) publish() {
	if c.changes == nil {
		return
	}
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	c.changes.Publish(c.Snapshot())
}

func checkKind(kind domain.ItemKind) error {
	switch kind {
	case domain.KindTodo, domain.KindNote:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func containsID(items []domain.Item, id string) bool {
	for _, item := range items {
		if item.ID == id {
			return true
		}
	}
	return false
}

func rejection(message string, fallback string) error {
	if strings.TrimSpace(message) == "" {
		return errors.New(fallback)
	}
	return errors.New(message)
}
