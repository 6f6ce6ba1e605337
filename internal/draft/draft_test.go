package draft

import (
	"context"
	"sync"
	"testing"
	"time"

	"milkrun/internal/apperr"
	"milkrun/internal/stock"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC)

func newManager(store Store) *Manager {
	m := NewManager(store, time.UTC, zerolog.Nop())
	m.now = func() time.Time { return today }
	return m
}

func roster() []RosterCustomer {
	return []RosterCustomer{
		{CustomerID: "c1", Name: "Asha", Products: []ProductLine{{ProductID: "milk", Quantity: decimal.NewFromInt(2)}}},
		{CustomerID: "c2", Name: "Ravi", Products: []ProductLine{
			{ProductID: "milk", Quantity: decimal.NewFromInt(1)},
			{ProductID: "curd", Quantity: decimal.NewFromInt(1)},
		}},
	}
}

func TestOpenSeedsFromSubscriptions(t *testing.T) {
	m := newManager(NewMemoryStore())

	session, err := m.Open(context.Background(), Key{Date: "2025-10-15", AreaID: "a1"}, roster(), nil)
	require.NoError(t, err)

	assert.Equal(t, StateNoData, session.State)
	assert.True(t, session.Editable)
	entry, ok := session.Sheet.Get("c2", "curd")
	require.True(t, ok)
	assert.Equal(t, stock.StatusDelivered, entry.Status)
	assert.True(t, decimal.NewFromInt(4).Equal(session.Sheet.TotalDelivered()))
}

func TestOpenPastDateWithoutDataIsReadOnly(t *testing.T) {
	m := newManager(NewMemoryStore())

	session, err := m.Open(context.Background(), Key{Date: "2025-10-14", AreaID: "a1"}, roster(), nil)
	require.NoError(t, err)

	assert.Equal(t, StateNoData, session.State)
	assert.False(t, session.Editable)
}

func TestOpenRestoresDraftWithModifiedProducts(t *testing.T) {
	store := NewMemoryStore()
	key := Key{Date: "2025-10-14", AreaID: "a1"}
	sheet := stock.NewSheet()
	require.NoError(t, sheet.AddProduct("c1", "paneer", decimal.NewFromInt(1)))
	require.NoError(t, store.Save(context.Background(), key, &Draft{
		TotalDispatched: "10+2",
		Attendance:      sheet,
		ModifiedProductLists: map[string][]ProductLine{
			"c1":   {{ProductID: "paneer", Quantity: decimal.NewFromInt(1)}},
			"gone": {{ProductID: "milk", Quantity: decimal.NewFromInt(1)}},
		},
	}))

	session, err := newManager(store).Open(context.Background(), key, roster(), nil)
	require.NoError(t, err)

	assert.Equal(t, StateDraft, session.State)
	assert.True(t, session.Editable, "a draft can be continued on a past date")
	assert.Equal(t, "10+2", session.TotalDispatched)
	require.Len(t, session.Roster, 2)
	assert.Equal(t, "paneer", session.Roster[0].Products[0].ProductID)
	assert.Len(t, session.Roster[1].Products, 2)
	_, ok := session.Sheet.Get("c1", "paneer")
	assert.True(t, ok)
}

func TestSubmittedRecordWinsOverDraft(t *testing.T) {
	store := NewMemoryStore()
	key := Key{Date: "2025-10-15", AreaID: "a1"}
	require.NoError(t, store.Save(context.Background(), key, &Draft{TotalDispatched: "99"}))

	serverSheet := stock.NewSheet()
	require.NoError(t, serverSheet.AddProduct("c1", "milk", decimal.NewFromInt(3)))

	session, err := newManager(store).Open(context.Background(), key, roster(), &Submitted{
		TotalDispatched: "3",
		Sheet:           serverSheet,
	})
	require.NoError(t, err)

	assert.Equal(t, StateSubmitted, session.State)
	assert.False(t, session.Editable)
	assert.Equal(t, "3", session.TotalDispatched)

	_, err = store.Get(context.Background(), key)
	assert.ErrorIs(t, err, ErrNotFound, "draft must be discarded")
}

func TestBeginEdit(t *testing.T) {
	m := newManager(NewMemoryStore())
	key := Key{Date: "2025-10-01", AreaID: "a1"}

	_, err := m.BeginEdit(key, roster(), nil)
	var notFound *apperr.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	session, err := m.BeginEdit(key, roster(), &Submitted{Sheet: stock.NewSheet()})
	require.NoError(t, err)
	assert.Equal(t, StateEditingSubmitted, session.State)
	assert.True(t, session.Editable)
}

func TestGuard(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := newManager(store)

	t.Run("submitted without edit is locked", func(t *testing.T) {
		_, err := m.Guard(ctx, Key{Date: "2025-10-15", AreaID: "a1"}, true, false)
		var conflict *apperr.ConflictError
		assert.ErrorAs(t, err, &conflict)
	})

	t.Run("submitted while editing", func(t *testing.T) {
		state, err := m.Guard(ctx, Key{Date: "2025-09-01", AreaID: "a1"}, true, true)
		require.NoError(t, err)
		assert.Equal(t, StateEditingSubmitted, state)
	})

	t.Run("blind edit of the past", func(t *testing.T) {
		_, err := m.Guard(ctx, Key{Date: "2025-10-01", AreaID: "a1"}, false, false)
		var verr *apperr.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "date", verr.Field)
	})

	t.Run("draft continuation in the past", func(t *testing.T) {
		key := Key{Date: "2025-10-02", AreaID: "a1"}
		require.NoError(t, store.Save(ctx, key, &Draft{}))
		state, err := m.Guard(ctx, key, false, false)
		require.NoError(t, err)
		assert.Equal(t, StateDraft, state)
	})

	t.Run("today", func(t *testing.T) {
		state, err := m.Guard(ctx, Key{Date: "2025-10-15", AreaID: "a2"}, false, false)
		require.NoError(t, err)
		assert.Equal(t, StateNoData, state)
	})
}

type countingStore struct {
	*MemoryStore
	mu    sync.Mutex
	saves int
}

func (s *countingStore) Save(ctx context.Context, key Key, d *Draft) error {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return s.MemoryStore.Save(ctx, key, d)
}

func (s *countingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func TestSaverKeepsOnlyLastChange(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	saver := NewSaver(store, 20*time.Millisecond, zerolog.Nop())
	key := Key{Date: "2025-10-15", AreaID: "a1"}

	for _, expr := range []string{"1", "12", "120"} {
		saver.Schedule(key, &Draft{TotalDispatched: expr})
	}

	pending, ok := saver.Pending(key)
	require.True(t, ok)
	assert.Equal(t, "120", pending.TotalDispatched)

	require.Eventually(t, func() bool { return store.count() == 1 }, time.Second, 5*time.Millisecond)
	stored, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "120", stored.TotalDispatched)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, store.count())
}

func TestSaverFlushAndCancel(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	saver := NewSaver(store, time.Hour, zerolog.Nop())
	flushed := Key{Date: "2025-10-15", AreaID: "a1"}
	cancelled := Key{Date: "2025-10-15", AreaID: "a2"}

	saver.Schedule(flushed, &Draft{TotalDispatched: "5"})
	saver.Schedule(cancelled, &Draft{TotalDispatched: "6"})

	require.NoError(t, saver.Flush(context.Background(), flushed))
	saver.Cancel(cancelled)
	saver.Stop(context.Background())

	assert.Equal(t, 1, store.count())
	_, err := store.Get(context.Background(), cancelled)
	assert.ErrorIs(t, err, ErrNotFound)
	_, ok := saver.Pending(flushed)
	assert.False(t, ok)
}

type blockingStore struct {
	*MemoryStore
	started chan struct{}
	release chan struct{}
}

func (s *blockingStore) Save(ctx context.Context, key Key, d *Draft) error {
	close(s.started)
	<-s.release
	return s.MemoryStore.Save(ctx, key, d)
}

func TestSaverCancelWaitsForSaveInFlight(t *testing.T) {
	store := &blockingStore{MemoryStore: NewMemoryStore(), started: make(chan struct{}), release: make(chan struct{})}
	saver := NewSaver(store, time.Millisecond, zerolog.Nop())
	key := Key{Date: "2025-10-15", AreaID: "a1"}

	saver.Schedule(key, &Draft{TotalDispatched: "120"})
	<-store.started

	// Submission: cancel pending saves, then delete what is stored.
	discarded := make(chan struct{})
	go func() {
		saver.Cancel(key)
		_ = store.Delete(context.Background(), key)
		close(discarded)
	}()

	select {
	case <-discarded:
		t.Fatal("cancel returned while a save was still running")
	case <-time.After(20 * time.Millisecond):
	}

	close(store.release)
	<-discarded

	_, err := store.Get(context.Background(), key)
	assert.ErrorIs(t, err, ErrNotFound, "the in-flight save must not outlive the discard")
}
