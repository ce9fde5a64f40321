// Package store holds the authoritative category and expense collections.
// Every mutation replaces the whole snapshot, is saved through a
// storage.Persister and is then announced to subscribed observers.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"spendbook/internal/core"
	"spendbook/internal/log"
	"spendbook/internal/storage"
)

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpReset  Op = "reset"
)

type Entity string

const (
	EntityCategory Entity = "category"
	EntityExpense  Entity = "expense"
	EntityStore    Entity = "store"
)

// Change describes one committed mutation.
type Change struct {
	Op      Op
	Entity  Entity
	ID      string
	Version uint64
}

// Observer is called after a change has been persisted. The snapshot is
// shared between observers of the same change and must not be modified.
// Observers run outside the write lock, so concurrent mutations may be
// delivered out of order; Change.Version is the order they were committed in.
type Observer func(Change, core.Snapshot)

type Store struct {
	mu        sync.RWMutex
	snap      core.Snapshot
	version   uint64
	persister storage.Persister
	newID     func() string
	logger    *log.Logger

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObs   int
}

type Option func(*Store)

// WithIDGenerator replaces uuid.NewString as the id source.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentStore)
		}
	}
}

// Open loads the persisted snapshot. Missing or unreadable data falls back to
// the default seed; it is not an error. Category references that point
// nowhere are dropped with a warning.
func Open(ctx context.Context, p storage.Persister, opts ...Option) (*Store, error) {
	if p == nil {
		return nil, errors.New("store: nil persister")
	}
	s := &Store{
		persister: p,
		newID:     uuid.NewString,
		logger:    log.Discard(),
		observers: make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(s)
	}

	snap, err := p.Load(ctx)
	switch {
	case err == nil:
		if n := snap.PruneDanglingRefs(); n > 0 {
			s.logger.WarnContext(ctx, "Dropped category references to missing categories",
				log.FieldOperation, log.OpLoad,
				"dropped", n)
		}
	case errors.Is(err, storage.ErrNotFound):
		s.logger.InfoContext(ctx, "No persisted state, starting from defaults",
			log.FieldOperation, log.OpLoad)
		snap = core.DefaultSnapshot()
	default:
		s.logger.WarnContext(ctx, "Persisted state unreadable, starting from defaults",
			log.FieldOperation, log.OpLoad,
			log.FieldError, err.Error())
		snap = core.DefaultSnapshot()
	}

	s.snap = snap
	s.logger.InfoContext(ctx, "Store opened",
		"expenses", len(snap.Expenses),
		"categories", len(snap.Categories))
	return s, nil
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() core.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

func (s *Store) Categories() []core.Category {
	return s.Snapshot().Categories
}

func (s *Store) Expenses() []core.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.CloneExpenses(s.snap.Expenses)
}

func (s *Store) Category(id string) (core.Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOfCategory(s.snap.Categories, id); i >= 0 {
		return s.snap.Categories[i], true
	}
	return core.Category{}, false
}

func (s *Store) Expense(id string) (core.Expense, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOfExpense(s.snap.Expenses, id); i >= 0 {
		return s.snap.Expenses[i].Clone(), true
	}
	return core.Expense{}, false
}

// Version counts committed mutations since Open.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe registers obs and returns a function that removes it.
func (s *Store) Subscribe(obs Observer) func() {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = obs
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.observers, id)
			s.obsMu.Unlock()
		})
	}
}

func (s *Store) AddCategory(ctx context.Context, in core.CategoryInput) (core.Category, error) {
	var created core.Category
	err := s.withWrite(ctx, func(next *core.Snapshot) (Change, error) {
		created = in.Category(s.uniqueID(categoryIDSet(next.Categories)))
		next.Categories = append(next.Categories, created)
		return Change{Op: OpCreate, Entity: EntityCategory, ID: created.ID}, nil
	})
	if err != nil {
		return core.Category{}, err
	}
	return created, nil
}

// UpdateCategory merges patch into the category with the given id. An empty
// patch returns the category unchanged without saving.
func (s *Store) UpdateCategory(ctx context.Context, id string, patch core.CategoryPatch) (core.Category, error) {
	var updated core.Category
	err := s.withWrite(ctx, func(next *core.Snapshot) (Change, error) {
		i := indexOfCategory(next.Categories, id)
		if i < 0 {
			return Change{}, fmt.Errorf("category %q: %w", id, core.ErrNotFound)
		}
		updated = patch.Apply(next.Categories[i])
		if patch.IsEmpty() {
			return Change{}, errUnchanged
		}
		next.Categories[i] = updated
		return Change{Op: OpUpdate, Entity: EntityCategory, ID: id}, nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return core.Category{}, err
	}
	return updated, nil
}

// DeleteCategory removes the category and strips its id from every expense
// in the same replacement. Expenses left with no category are kept.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	return s.withWrite(ctx, func(next *core.Snapshot) (Change, error) {
		i := indexOfCategory(next.Categories, id)
		if i < 0 {
			return Change{}, fmt.Errorf("category %q: %w", id, core.ErrNotFound)
		}
		next.Categories = append(next.Categories[:i], next.Categories[i+1:]...)
		for j, e := range next.Expenses {
			if !e.HasCategory(id) {
				continue
			}
			kept := make([]string, 0, len(e.CategoryIDs)-1)
			for _, cid := range e.CategoryIDs {
				if cid != id {
					kept = append(kept, cid)
				}
			}
			e.CategoryIDs = kept
			next.Expenses[j] = e
		}
		return Change{Op: OpDelete, Entity: EntityCategory, ID: id}, nil
	})
}

// AddExpense appends a new expense. Negative amounts and unknown category
// ids are refused here; the stricter input rules live in
// core.ExpenseInput.Validate.
func (s *Store) AddExpense(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	if err := in.Amount.Validate(); err != nil {
		return core.Expense{}, core.Invalid("amount", err)
	}
	var created core.Expense
	err := s.withWrite(ctx, func(next *core.Snapshot) (Change, error) {
		if err := checkCategoryRefs(next.Categories, in.CategoryIDs); err != nil {
			return Change{}, err
		}
		created = in.Expense(s.uniqueID(expenseIDSet(next.Expenses)))
		next.Expenses = append(next.Expenses, created)
		return Change{Op: OpCreate, Entity: EntityExpense, ID: created.ID}, nil
	})
	if err != nil {
		return core.Expense{}, err
	}
	s.logger.DebugContext(ctx, "Expense added",
		log.NewFields().WithExpense(created.Title, created.Amount.Cents, len(created.CategoryIDs)).ToSlice()...)
	return created.Clone(), nil
}

func (s *Store) UpdateExpense(ctx context.Context, id string, patch core.ExpensePatch) (core.Expense, error) {
	if patch.Amount != nil {
		if err := patch.Amount.Validate(); err != nil {
			return core.Expense{}, core.Invalid("amount", err)
		}
	}
	var updated core.Expense
	err := s.withWrite(ctx, func(next *core.Snapshot) (Change, error) {
		i := indexOfExpense(next.Expenses, id)
		if i < 0 {
			return Change{}, fmt.Errorf("expense %q: %w", id, core.ErrNotFound)
		}
		if patch.IsEmpty() {
			updated = next.Expenses[i]
			return Change{}, errUnchanged
		}
		if patch.CategoryIDs != nil {
			if err := checkCategoryRefs(next.Categories, *patch.CategoryIDs); err != nil {
				return Change{}, err
			}
		}
		updated = patch.Apply(next.Expenses[i])
		next.Expenses[i] = updated
		return Change{Op: OpUpdate, Entity: EntityExpense, ID: id}, nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return core.Expense{}, err
	}
	return updated.Clone(), nil
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	return s.withWrite(ctx, func(next *core.Snapshot) (Change, error) {
		i := indexOfExpense(next.Expenses, id)
		if i < 0 {
			return Change{}, fmt.Errorf("expense %q: %w", id, core.ErrNotFound)
		}
		next.Expenses = append(next.Expenses[:i], next.Expenses[i+1:]...)
		return Change{Op: OpDelete, Entity: EntityExpense, ID: id}, nil
	})
}

// Reset replaces everything with the default seed.
func (s *Store) Reset(ctx context.Context) error {
	return s.withWrite(ctx, func(next *core.Snapshot) (Change, error) {
		*next = core.DefaultSnapshot()
		return Change{Op: OpReset, Entity: EntityStore}, nil
	})
}

// errUnchanged aborts a write that would not change anything.
var errUnchanged = errors.New("unchanged")

// withWrite runs fn on a copy of the current snapshot, saves the copy and
// publishes it. If fn or the save fails, the current snapshot is untouched.
func (s *Store) withWrite(ctx context.Context, fn func(next *core.Snapshot) (Change, error)) error {
	change, published, err := s.commit(ctx, fn)
	if err != nil {
		return err
	}
	log.NewStructuredLogger(s.logger).
		LogMutation(ctx, string(change.Op), string(change.Entity), change.ID, change.Version)
	s.notify(change, published)
	return nil
}

func (s *Store) commit(ctx context.Context, fn func(next *core.Snapshot) (Change, error)) (Change, core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Change{}, core.Snapshot{}, err
	}

	next := shallowCopy(s.snap)
	change, err := fn(&next)
	if err != nil {
		return Change{}, core.Snapshot{}, err
	}

	if err := s.persister.Save(ctx, next); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist snapshot",
			log.NewFields().
				WithOperation(log.OpSave).
				WithEntity(string(change.Entity), change.ID).
				WithErrorType(log.ErrorTypeStorage).
				WithError(err).
				ToSlice()...)
		return Change{}, core.Snapshot{}, fmt.Errorf("persist snapshot: %w", err)
	}

	s.snap = next
	s.version++
	change.Version = s.version
	return change, next.Clone(), nil
}

// notify runs outside every lock so observers may read from or write to the
// store.
func (s *Store) notify(change Change, snap core.Snapshot) {
	s.obsMu.Lock()
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	obs := make([]Observer, 0, len(ids))
	for _, id := range ids {
		obs = append(obs, s.observers[id])
	}
	s.obsMu.Unlock()

	for _, o := range obs {
		o(change, snap)
	}
}

func (s *Store) uniqueID(taken map[string]struct{}) string {
	for {
		id := s.newID()
		if _, ok := taken[id]; !ok && id != "" {
			return id
		}
	}
}
