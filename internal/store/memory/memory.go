package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/gabrielekerete60/bms/internal/store"
)

// Store is an in-process document store with optimistic transactions.
// Every committed write bumps a global sequence; a transaction commits only if
// none of the documents or collections it read moved past the sequence it saw.
type Store struct {
	mu          sync.RWMutex
	docs        map[docKey]version
	collections map[string]uint64
	seq         uint64
	maxAttempts int
}

type docKey struct {
	collection string
	id         string
}

type version struct {
	seq  uint64
	data []byte
}

type Option func(*Store)

// WithMaxAttempts bounds conflict re-execution of a transaction body.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		docs:        make(map[docKey]version),
		collections: make(map[string]uint64),
		maxAttempts: store.DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.Store = (*Store)(nil)

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return store.Retry(ctx, "memory", s.maxAttempts, func(ctx context.Context) error {
		mt := &memTx{
			s:       s,
			reads:   make(map[docKey]uint64),
			scans:   make(map[string]uint64),
			writes:  make(map[docKey][]byte),
			deletes: make(map[docKey]struct{}),
		}
		if err := fn(ctx, store.NewTx(mt)); err != nil {
			return err
		}
		return s.commit(mt)
	})
}

func (s *Store) commit(mt *memTx) error {
	if len(mt.writes) == 0 && len(mt.deletes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, seen := range mt.reads {
		if s.docs[key].seq != seen {
			return store.ErrConflict
		}
	}
	for collection, seen := range mt.scans {
		if s.collections[collection] != seen {
			return store.ErrConflict
		}
	}

	s.seq++
	for key, data := range mt.writes {
		s.docs[key] = version{seq: s.seq, data: data}
		s.collections[key.collection] = s.seq
	}
	for key := range mt.deletes {
		delete(s.docs, key)
		s.collections[key.collection] = s.seq
	}
	return nil
}

// memTx buffers writes until commit and records what it read.
type memTx struct {
	s       *Store
	reads   map[docKey]uint64
	scans   map[string]uint64
	writes  map[docKey][]byte
	deletes map[docKey]struct{}
}

func (t *memTx) Get(ctx context.Context, collection string, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := docKey{collection: collection, id: id}
	if data, ok := t.writes[key]; ok {
		return slices.Clone(data), nil
	}
	if _, ok := t.deletes[key]; ok {
		return nil, store.ErrNotFound
	}

	t.s.mu.RLock()
	v, ok := t.s.docs[key]
	t.s.mu.RUnlock()

	if _, seen := t.reads[key]; !seen {
		t.reads[key] = v.seq
	}
	if !ok {
		return nil, store.ErrNotFound
	}
	return slices.Clone(v.data), nil
}

func (t *memTx) Put(ctx context.Context, collection string, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := docKey{collection: collection, id: id}
	delete(t.deletes, key)
	t.writes[key] = slices.Clone(data)
	return nil
}

func (t *memTx) Delete(ctx context.Context, collection string, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := docKey{collection: collection, id: id}
	delete(t.writes, key)
	t.deletes[key] = struct{}{}
	return nil
}

func (t *memTx) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := make(map[string][]byte)
	t.s.mu.RLock()
	for key, v := range t.s.docs {
		if key.collection == collection {
			merged[key.id] = v.data
		}
	}
	if _, seen := t.scans[collection]; !seen {
		t.scans[collection] = t.s.collections[collection]
	}
	t.s.mu.RUnlock()

	for key, data := range t.writes {
		if key.collection == collection {
			merged[key.id] = data
		}
	}
	for key := range t.deletes {
		if key.collection == collection {
			delete(merged, key.id)
		}
	}

	out := make([]store.Document, 0, len(merged))
	for id, data := range merged {
		ok, err := store.MatchFilters(data, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, store.Document{ID: id, Data: slices.Clone(data)})
		}
	}
	slices.SortFunc(out, func(a, b store.Document) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}
