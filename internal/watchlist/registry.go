package watchlist

import (
	"container/list"
	"context"
	"sync"

	"go.uber.org/zap"

	"animehub/pkg/models"
)

// Backend persists watchlists for many owners.
type Backend interface {
	Load(ctx context.Context, owner string) ([]models.WatchlistEntry, error)
	Save(ctx context.Context, owner string, entries []models.WatchlistEntry) error
}

// Bind adapts one owner's slot in a Backend to a LoadFunc and SaveFunc pair.
func Bind(b Backend, owner string) (LoadFunc, SaveFunc) {
	load := func(ctx context.Context) ([]models.WatchlistEntry, error) {
		return b.Load(ctx, owner)
	}
	save := func(ctx context.Context, entries []models.WatchlistEntry) error {
		return b.Save(ctx, owner, entries)
	}
	return load, save
}

// DefaultMaxOpen bounds how many idle stores a Registry keeps.
const DefaultMaxOpen = 1024

type slot struct {
	owner string
	store *Store
	refs  int
	elem  *list.Element
}

// Registry opens one Store per owner on first use, so all requests for an
// owner share that store's lock. Stores nobody holds are evicted least
// recently used first once more than maxOpen are cached; a held store is
// never evicted, so an owner never has two live stores.
type Registry struct {
	mu      sync.Mutex
	backend Backend
	maxOpen int
	slots   map[string]*slot
	lru     *list.List // front is most recently used
	logger  *zap.Logger
}

// NewRegistry returns a registry over b. maxOpen <= 0 uses DefaultMaxOpen.
func NewRegistry(b Backend, maxOpen int, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxOpen <= 0 {
		maxOpen = DefaultMaxOpen
	}
	return &Registry{
		backend: b,
		maxOpen: maxOpen,
		slots:   make(map[string]*slot),
		lru:     list.New(),
		logger:  logger,
	}
}

// Acquire returns owner's store, opening it if needed. The store stays
// cached until release is called; release is idempotent.
func (r *Registry) Acquire(ctx context.Context, owner string) (*Store, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sl, ok := r.slots[owner]
	if !ok {
		load, save := Bind(r.backend, owner)
		s, err := Open(ctx, load, save)
		if err != nil {
			return nil, nil, err
		}
		sl = &slot{owner: owner, store: s}
		sl.elem = r.lru.PushFront(sl)
		r.slots[owner] = sl
		r.logger.Debug("watchlist opened", zap.String("owner", owner), zap.Int("entries", s.Len()))
	} else {
		r.lru.MoveToFront(sl.elem)
	}
	sl.refs++
	r.evict()

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			sl.refs--
			r.evict()
			r.mu.Unlock()
		})
	}
	return sl.store, release, nil
}

// Len reports how many stores are cached.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// Forget drops the cached store for owner once nobody holds it; the next
// Acquire reloads it.
func (r *Registry) Forget(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sl, ok := r.slots[owner]; ok && sl.refs == 0 {
		r.drop(sl)
	}
}

// evict must be called with r.mu held.
func (r *Registry) evict() {
	for e := r.lru.Back(); e != nil && len(r.slots) > r.maxOpen; {
		prev := e.Prev()
		if sl := e.Value.(*slot); sl.refs == 0 {
			r.drop(sl)
			r.logger.Debug("watchlist evicted", zap.String("owner", sl.owner))
		}
		e = prev
	}
}

func (r *Registry) drop(sl *slot) {
	r.lru.Remove(sl.elem)
	delete(r.slots, sl.owner)
}
