package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendbook/internal/core"
	"spendbook/internal/log"
	"spendbook/internal/storage"
)

func openMemory(t *testing.T, opts ...Option) (*Store, *storage.MemoryStore) {
	t.Helper()
	mem := storage.NewMemoryStore()
	s, err := Open(context.Background(), mem, opts...)
	require.NoError(t, err)
	return s, mem
}

func coffee() core.ExpenseInput {
	return core.ExpenseInput{
		Title:       "Coffee",
		Amount:      core.Money{Cents: 450},
		Date:        core.NewDate(2025, time.January, 10),
		CategoryIDs: []string{"1"},
		Description: "flat white",
		Images:      [][]byte{[]byte("receipt")},
	}
}

func bus() core.ExpenseInput {
	return core.ExpenseInput{
		Title:       "Bus",
		Amount:      core.Money{Cents: 200},
		Date:        core.NewDate(2025, time.January, 15),
		CategoryIDs: []string{"2"},
	}
}

func TestOpenSeedsDefaults(t *testing.T) {
	s, mem := openMemory(t)

	snap := s.Snapshot()
	assert.Equal(t, core.DefaultCategories(), snap.Categories)
	assert.Empty(t, snap.Expenses)
	assert.NotNil(t, snap.Expenses)
	assert.Equal(t, uint64(0), s.Version())
	assert.Equal(t, 0, mem.Saves(), "opening must not write")
}

func TestOpenCorruptFallsBackToSeed(t *testing.T) {
	for _, raw := range []string{"not json", `{"expenses":[]}`, `{"expenses":[],"categories":[{"id":"1"},{"id":"1"}]}`} {
		s, err := Open(context.Background(), storage.NewMemoryStoreFrom([]byte(raw)))
		require.NoError(t, err)
		assert.Equal(t, core.DefaultSnapshot(), s.Snapshot(), raw)
	}
}

func TestOpenPrunesDanglingRefs(t *testing.T) {
	raw := `{"categories":[{"id":"1","name":"Food"}],` +
		`"expenses":[{"id":"e","title":"x","amount":1,"date":"2025-01-01","categoryIds":["1","gone"]}]}`
	s, err := Open(context.Background(), storage.NewMemoryStoreFrom([]byte(raw)))
	require.NoError(t, err)

	e, ok := s.Expense("e")
	require.True(t, ok)
	assert.Equal(t, []string{"1"}, e.CategoryIDs)
}

func TestOpenNilPersister(t *testing.T) {
	_, err := Open(context.Background(), nil)
	assert.Error(t, err)
}

func TestEndToEndMutations(t *testing.T) {
	ctx := context.Background()
	s, _ := openMemory(t)

	c, err := s.AddExpense(ctx, coffee())
	require.NoError(t, err)
	b, err := s.AddExpense(ctx, bus())
	require.NoError(t, err)
	assert.NotEqual(t, c.ID, b.ID)
	assert.Len(t, s.Expenses(), 2)

	require.NoError(t, s.DeleteCategory(ctx, "1"))

	got, ok := s.Expense(c.ID)
	require.True(t, ok)
	assert.Empty(t, got.CategoryIDs)
	assert.NotNil(t, got.CategoryIDs)

	c.CategoryIDs = []string{}
	assert.Equal(t, c, got, "only categoryIds may change")

	other, ok := s.Expense(b.ID)
	require.True(t, ok)
	assert.Equal(t, b, other)

	_, ok = s.Category("1")
	assert.False(t, ok)
	assert.Len(t, s.Categories(), 4)
}

func TestDeleteCategoryKeepsOtherTags(t *testing.T) {
	ctx := context.Background()
	s, _ := openMemory(t)

	in := coffee()
	in.CategoryIDs = []string{"3", "1", "4"}
	e, err := s.AddExpense(ctx, in)
	require.NoError(t, err)

	require.NoError(t, s.DeleteCategory(ctx, "1"))
	got, _ := s.Expense(e.ID)
	assert.Equal(t, []string{"3", "4"}, got.CategoryIDs)
}

func TestUniqueIDs(t *testing.T) {
	ctx := context.Background()
	ids := []string{"1", "dup", "dup", "x1", "x2", "x3"}
	next := 0
	gen := func() string {
		id := ids[next%len(ids)]
		next++
		return id
	}
	s, _ := openMemory(t, WithIDGenerator(gen))

	// "1" clashes with a seed category and is redrawn.
	a, err := s.AddCategory(ctx, core.CategoryInput{Name: "Rent"})
	require.NoError(t, err)
	assert.Equal(t, "dup", a.ID)

	// "dup" is already a category, so the next draw wins.
	b, err := s.AddCategory(ctx, core.CategoryInput{Name: "Gifts"})
	require.NoError(t, err)
	assert.Equal(t, "x1", b.ID)

	seen := map[string]bool{}
	for _, c := range s.Categories() {
		assert.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true
	}
}

func TestRandomSequenceKeepsIDsUnique(t *testing.T) {
	ctx := context.Background()
	s, _ := openMemory(t)

	var live []string
	for i := 0; i < 30; i++ {
		e, err := s.AddExpense(ctx, core.ExpenseInput{
			Title:       fmt.Sprintf("e%d", i),
			Amount:      core.Money{Cents: int64(i)},
			CategoryIDs: []string{"1"},
		})
		require.NoError(t, err)
		live = append(live, e.ID)
		if i%3 == 0 {
			require.NoError(t, s.DeleteExpense(ctx, live[0]))
			live = live[1:]
		}
	}

	var got []string
	for _, e := range s.Expenses() {
		got = append(got, e.ID)
	}
	assert.Equal(t, live, got)
}

func TestNotFoundLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	s, mem := openMemory(t)
	_, err := s.AddExpense(ctx, bus())
	require.NoError(t, err)
	before := s.Snapshot()
	saves := mem.Saves()

	name := "x"
	_, err = s.UpdateCategory(ctx, "nope", core.CategoryPatch{Name: &name})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.DeleteCategory(ctx, "nope"), core.ErrNotFound)
	_, err = s.UpdateExpense(ctx, "nope", core.ExpensePatch{Title: &name})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.DeleteExpense(ctx, "nope"), core.ErrNotFound)

	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, saves, mem.Saves())
	assert.Equal(t, uint64(1), s.Version())
}

func TestUpdates(t *testing.T) {
	ctx := context.Background()
	s, _ := openMemory(t)

	color := "#000000"
	c, err := s.UpdateCategory(ctx, "2", core.CategoryPatch{Color: &color})
	require.NoError(t, err)
	assert.Equal(t, core.Category{ID: "2", Name: "Transport", Color: "#000000", Icon: "🚗"}, c)

	e, err := s.AddExpense(ctx, coffee())
	require.NoError(t, err)

	amount := core.Money{Cents: 999}
	cats := []string{"2", "3"}
	u, err := s.UpdateExpense(ctx, e.ID, core.ExpensePatch{Amount: &amount, CategoryIDs: &cats})
	require.NoError(t, err)
	assert.Equal(t, e.ID, u.ID)
	assert.Equal(t, amount, u.Amount)
	assert.Equal(t, cats, u.CategoryIDs)
	assert.Equal(t, e.Title, u.Title)
	assert.Equal(t, e.Images, u.Images)

	// Mutating the caller's slice must not reach the store.
	cats[0] = "5"
	got, _ := s.Expense(e.ID)
	assert.Equal(t, []string{"2", "3"}, got.CategoryIDs)
}

func TestEmptyPatchDoesNotSave(t *testing.T) {
	ctx := context.Background()
	s, mem := openMemory(t)

	c, err := s.UpdateCategory(ctx, "1", core.CategoryPatch{})
	require.NoError(t, err)
	assert.Equal(t, "Food", c.Name)
	assert.Equal(t, 0, mem.Saves())
	assert.Equal(t, uint64(0), s.Version())
}

func TestNegativeAmountRejected(t *testing.T) {
	ctx := context.Background()
	s, mem := openMemory(t)

	in := bus()
	in.Amount = core.Money{Cents: -1}
	_, err := s.AddExpense(ctx, in)
	assert.ErrorIs(t, err, core.ErrNegativeAmount)
	assert.True(t, core.IsValidation(err))

	// Zero and empty categories are left to the boundary.
	in.Amount = core.Money{}
	in.CategoryIDs = nil
	e, err := s.AddExpense(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, []string{}, e.CategoryIDs)
	assert.Equal(t, 1, mem.Saves())
}

func TestOversizedAmountRejected(t *testing.T) {
	ctx := context.Background()
	s, mem := openMemory(t)

	in := bus()
	in.Amount = core.Money{Cents: 9223372036854775800}
	_, err := s.AddExpense(ctx, in)
	assert.ErrorIs(t, err, core.ErrAmountTooLarge)
	assert.True(t, core.IsValidation(err))

	in.Amount = core.Money{Cents: core.MaxAmount * 100}
	for i := 0; i < 2; i++ {
		_, err = s.AddExpense(ctx, in)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, mem.Saves())

	var total core.Money
	for _, e := range s.Expenses() {
		total = total.Add(e.Amount)
	}
	assert.Equal(t, int64(2*core.MaxAmount*100), total.Cents)
}

func TestConcurrentChangesCarryDistinctVersions(t *testing.T) {
	ctx := context.Background()
	s, _ := openMemory(t)

	var mu sync.Mutex
	seen := make(map[uint64]bool)
	s.Subscribe(func(c Change, _ core.Snapshot) {
		mu.Lock()
		seen[c.Version] = true
		mu.Unlock()
	})

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddExpense(ctx, bus())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for v := uint64(1); v <= n; v++ {
		assert.True(t, seen[v], "version %d not delivered", v)
	}
	assert.Len(t, seen, n)
}

func TestMutationIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelInfo, Format: "json", Output: &buf})
	s, _ := openMemory(t, WithLogger(logger))
	buf.Reset()

	e, err := s.AddExpense(context.Background(), bus())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"Store changed"`)
	assert.Contains(t, out, `"component":"store"`)
	assert.Contains(t, out, `"operation":"create"`)
	assert.Contains(t, out, `"entity":"expense"`)
	assert.Contains(t, out, `"id":"`+e.ID+`"`)
	assert.Contains(t, out, `"version":1`)
}

func TestUnknownCategoryRejected(t *testing.T) {
	ctx := context.Background()
	s, mem := openMemory(t)

	in := coffee()
	in.CategoryIDs = []string{"1", "ghost"}
	_, err := s.AddExpense(ctx, in)
	assert.ErrorIs(t, err, core.ErrUnknownCategory)
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "categoryIds", ve.Field)

	e, err := s.AddExpense(ctx, bus())
	require.NoError(t, err)
	cats := []string{"2", "ghost"}
	_, err = s.UpdateExpense(ctx, e.ID, core.ExpensePatch{CategoryIDs: &cats})
	assert.ErrorIs(t, err, core.ErrUnknownCategory)

	// A category deleted after the caller looked it up is refused too.
	require.NoError(t, s.DeleteCategory(ctx, "3"))
	in.CategoryIDs = []string{"3"}
	_, err = s.AddExpense(ctx, in)
	assert.ErrorIs(t, err, core.ErrUnknownCategory)

	assert.Len(t, s.Expenses(), 1)
	assert.Equal(t, 2, mem.Saves())

	reloaded, err := Open(ctx, mem)
	require.NoError(t, err)
	assert.Equal(t, s.Snapshot(), reloaded.Snapshot())
}

func TestFailedSaveKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	s, mem := openMemory(t)
	_, err := s.AddExpense(ctx, coffee())
	require.NoError(t, err)
	before := s.Snapshot()

	var calls int
	s.Subscribe(func(Change, core.Snapshot) { calls++ })

	boom := errors.New("disk full")
	mem.FailWith(boom)
	_, err = s.AddExpense(ctx, bus())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, s.DeleteCategory(ctx, "1"), boom)

	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, uint64(1), s.Version())
	assert.Zero(t, calls)

	mem.FailWith(nil)
	reloaded, err := Open(ctx, mem)
	require.NoError(t, err)
	assert.Equal(t, before, reloaded.Snapshot())
}

func TestPersistReloadIdentity(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs, err := storage.NewFileStore(dir, "")
	require.NoError(t, err)

	s, err := Open(ctx, fs)
	require.NoError(t, err)
	_, err = s.AddExpense(ctx, coffee())
	require.NoError(t, err)
	_, err = s.AddExpense(ctx, bus())
	require.NoError(t, err)
	_, err = s.AddCategory(ctx, core.CategoryInput{Name: "Travel", Color: "#123456", Icon: "✈️"})
	require.NoError(t, err)

	fresh, err := storage.NewFileStore(dir, "")
	require.NoError(t, err)
	reloaded, err := Open(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, s.Snapshot(), reloaded.Snapshot())
}

func TestResetRestoresSeed(t *testing.T) {
	ctx := context.Background()
	s, _ := openMemory(t)
	_, err := s.AddExpense(ctx, coffee())
	require.NoError(t, err)
	require.NoError(t, s.DeleteCategory(ctx, "2"))

	require.NoError(t, s.Reset(ctx))
	assert.Equal(t, core.DefaultSnapshot(), s.Snapshot())
}

func TestObservers(t *testing.T) {
	ctx := context.Background()
	s, _ := openMemory(t)

	var changes []Change
	var lastExpenses int
	unsubscribe := s.Subscribe(func(c Change, snap core.Snapshot) {
		changes = append(changes, c)
		lastExpenses = len(snap.Expenses)
		// Reading from inside an observer must not deadlock.
		_ = s.Version()
	})

	e, err := s.AddExpense(ctx, coffee())
	require.NoError(t, err)
	require.NoError(t, s.DeleteExpense(ctx, e.ID))
	unsubscribe()
	unsubscribe()
	_, err = s.AddCategory(ctx, core.CategoryInput{Name: "Late"})
	require.NoError(t, err)

	require.Len(t, changes, 2)
	assert.Equal(t, Change{Op: OpCreate, Entity: EntityExpense, ID: e.ID, Version: 1}, changes[0])
	assert.Equal(t, Change{Op: OpDelete, Entity: EntityExpense, ID: e.ID, Version: 2}, changes[1])
	assert.Equal(t, 0, lastExpenses)
	assert.Equal(t, uint64(3), s.Version())
}

func TestReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	s, _ := openMemory(t)
	e, err := s.AddExpense(ctx, coffee())
	require.NoError(t, err)

	snap := s.Snapshot()
	snap.Expenses[0].CategoryIDs[0] = "changed"
	snap.Expenses[0].Images[0][0] = 'X'
	snap.Categories[0].Name = "changed"

	got, _ := s.Expense(e.ID)
	assert.Equal(t, []string{"1"}, got.CategoryIDs)
	assert.Equal(t, []byte("receipt"), got.Images[0])
	c, _ := s.Category("1")
	assert.Equal(t, "Food", c.Name)
}

func TestCancelledContext(t *testing.T) {
	s, mem := openMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.AddCategory(ctx, core.CategoryInput{Name: "x"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, mem.Saves())
}
