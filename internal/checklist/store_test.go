package checklist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/idilsaglam/checklist/internal/metrics"
	"github.com/idilsaglam/checklist/internal/model"
	"github.com/idilsaglam/checklist/internal/store/memstore"
)

func newStore(t *testing.T, opts ...Option) (*Store, *memstore.Store) {
	t.Helper()
	backend := memstore.New()
	s, err := Open(context.Background(), backend, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, backend
}

func sequentialIDs() Option {
	n := 0
	return WithIDFunc(func() string {
		n++
		return fmt.Sprintf("id%d", n)
	})
}

func ids(items []model.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestAddAssignsDistinctIDsAndIndex(t *testing.T) {
	s, backend := newStore(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		it := s.Add(ctx, fmt.Sprintf("item %d", i), nil)
		require.Len(t, it.ID, 32)
		require.False(t, seen[it.ID], "duplicate id %s", it.ID)
		seen[it.ID] = true
		assert.Equal(t, i, it.Index)
		assert.False(t, it.Complete)
	}
	assert.Equal(t, 100, backend.Saves())
	assert.Len(t, backend.Snapshot(), 100)
}

func TestUpdateCompleteKeepsOtherFields(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	a := s.Add(ctx, "Milk", model.StringPtr("dairy"))

	got, err := s.Update(ctx, a.ID, model.Fields{"complete": true})
	require.NoError(t, err)
	assert.True(t, got.Complete)
	assert.Equal(t, "Milk", got.Name)
	assert.Equal(t, "dairy", got.Type())

	got, err = s.Update(ctx, a.ID, model.Fields{"name": "Oat milk", "item_type": nil})
	require.NoError(t, err)
	assert.Equal(t, "Oat milk", got.Name)
	assert.Nil(t, got.ItemType)
	assert.True(t, got.Complete)
}

func TestUpdateErrorsLeaveListUntouched(t *testing.T) {
	s, backend := newStore(t)
	ctx := context.Background()
	a := s.Add(ctx, "Milk", nil)
	events, cancel := s.Subscribe(8)
	defer cancel()
	before := s.Items()
	saves := backend.Saves()

	_, err := s.Update(ctx, "missing", model.Fields{"complete": true})
	assert.True(t, IsNotFound(err))
	assert.False(t, IsValidation(err))

	_, err = s.Update(ctx, a.ID, model.Fields{"complete": "yes"})
	require.True(t, IsValidation(err))
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "complete", ve.Field)

	_, err = s.Update(ctx, a.ID, model.Fields{"name": "x", "priority": 1})
	assert.True(t, IsValidation(err))

	assert.Equal(t, before, s.Items())
	assert.Equal(t, saves, backend.Saves())
	assert.Len(t, events, 0)
}

func TestUpdateLooksUpBeforeValidating(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Update(context.Background(), "missing", model.Fields{"bogus": 1})
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestClearCompleted(t *testing.T) {
	s, _ := newStore(t, sequentialIDs())
	ctx := context.Background()
	a := s.Add(ctx, "Milk", nil)
	b := s.Add(ctx, "Eggs", nil)
	c := s.Add(ctx, "Bread", nil)
	d := s.Add(ctx, "Jam", nil)
	_, err := s.Update(ctx, a.ID, model.CompleteFields(true))
	require.NoError(t, err)
	_, err = s.Update(ctx, c.ID, model.CompleteFields(true))
	require.NoError(t, err)

	left := s.ClearCompleted(ctx)
	assert.Equal(t, []string{b.ID, d.ID}, ids(left))

	again := s.ClearCompleted(ctx)
	assert.Equal(t, left, again)
	assert.Equal(t, left, s.Items())
}

func TestMilkEggsExample(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	a := s.Add(ctx, "Milk", nil)
	b := s.Add(ctx, "Eggs", nil)

	a, err := s.Update(ctx, a.ID, model.Fields{"complete": true})
	require.NoError(t, err)
	require.True(t, a.Complete)

	got := s.ClearCompleted(ctx)
	if diff := cmp.Diff([]model.Item{b}, got); diff != "" {
		t.Fatalf("unexpected list (-want +got):\n%s", diff)
	}
}

func TestUpdateAll(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	s.Add(ctx, "Milk", nil)
	s.Add(ctx, "Eggs", nil)

	items, err := s.UpdateAll(ctx, model.CompleteFields(true))
	require.NoError(t, err)
	for _, it := range items {
		assert.True(t, it.Complete)
	}

	_, err = s.UpdateAll(ctx, model.Fields{"complete": 1})
	assert.True(t, IsValidation(err))
	for _, it := range s.Items() {
		assert.True(t, it.Complete)
	}

	items, err = s.UpdateAll(ctx, model.CompleteFields(false))
	require.NoError(t, err)
	for _, it := range items {
		assert.False(t, it.Complete)
	}
}

func TestListItemsPersistsAndNotifies(t *testing.T) {
	s, backend := newStore(t)
	ctx := context.Background()
	s.Add(ctx, "Milk", nil)
	events, cancel := s.Subscribe(4)
	defer cancel()
	saves := backend.Saves()

	items := s.ListItems(ctx)
	assert.Len(t, items, 1)
	assert.Equal(t, saves+1, backend.Saves())

	ev := <-events
	assert.Equal(t, model.ActionListItems, ev.Action)
	assert.Equal(t, items, ev.Items)
}

func TestReorderPermutation(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	var all []string
	for _, n := range []string{"a", "b", "c", "d", "e"} {
		all = append(all, s.Add(ctx, n, nil).ID)
	}
	want := []string{all[3], all[0], all[4], all[2], all[1]}

	require.NoError(t, s.Reorder(ctx, want))
	assert.Equal(t, want, ids(s.Items()))
}

func TestReorderAppendsOmittedCompletedItems(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	a := s.Add(ctx, "A", nil)
	b := s.Add(ctx, "B", nil)
	c := s.Add(ctx, "C", nil)
	_, err := s.Update(ctx, a.ID, model.CompleteFields(true))
	require.NoError(t, err)

	require.NoError(t, s.Reorder(ctx, []string{c.ID, b.ID}))
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, ids(s.Items()))
	// index is a creation-order hint and is not renumbered
	assert.Equal(t, []int{2, 1, 0}, []int{s.Items()[0].Index, s.Items()[1].Index, s.Items()[2].Index})
}

func TestReorderKeepsRelativeOrderOfAppendedItems(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	a := s.Add(ctx, "A", nil)
	b := s.Add(ctx, "B", nil)
	c := s.Add(ctx, "C", nil)
	d := s.Add(ctx, "D", nil)
	for _, id := range []string{a.ID, b.ID, d.ID} {
		_, err := s.Update(ctx, id, model.CompleteFields(true))
		require.NoError(t, err)
	}

	require.NoError(t, s.Reorder(ctx, []string{c.ID, b.ID}))
	assert.Equal(t, []string{c.ID, b.ID, a.ID, d.ID}, ids(s.Items()))
}

func TestReorderRejectsOmittedIncompleteItem(t *testing.T) {
	s, backend := newStore(t)
	ctx := context.Background()
	a := s.Add(ctx, "A", nil)
	b := s.Add(ctx, "B", nil)
	s.Add(ctx, "C", nil)
	_, err := s.Update(ctx, a.ID, model.CompleteFields(true))
	require.NoError(t, err)
	before := s.Items()
	saves := backend.Saves()

	err = s.Reorder(ctx, []string{b.ID})
	require.True(t, IsValidation(err))
	assert.EqualError(t, err, "The item ids array doesn't contain all the unchecked check list items.")
	assert.Equal(t, before, s.Items())
	assert.Equal(t, saves, backend.Saves())
}

func TestReorderRejectsUnknownAndDuplicateIDs(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	a := s.Add(ctx, "A", nil)
	b := s.Add(ctx, "B", nil)
	before := s.Items()

	err := s.Reorder(ctx, []string{b.ID, "ghost", a.ID})
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.Equal(t, before, s.Items())

	err = s.Reorder(ctx, []string{b.ID, b.ID, a.ID})
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.Equal(t, before, s.Items())
}

func TestEventsFollowMutationOrder(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	events, cancel := s.Subscribe(16)
	defer cancel()

	a := s.Add(ctx, "A", nil)
	_, err := s.Update(ctx, a.ID, model.CompleteFields(true))
	require.NoError(t, err)
	_, err = s.Update(ctx, "nope", model.CompleteFields(true))
	require.Error(t, err)
	_, err = s.UpdateAll(ctx, model.CompleteFields(false))
	require.NoError(t, err)
	require.NoError(t, s.Reorder(ctx, []string{a.ID}))
	s.ClearCompleted(ctx)

	want := []model.Action{
		model.ActionAdd, model.ActionUpdate, model.ActionUpdateList,
		model.ActionReorder, model.ActionClearCompleted,
	}
	for _, action := range want {
		ev := <-events
		assert.Equal(t, action, ev.Action)
	}
	assert.Len(t, events, 0)
}

func TestAddEventCarriesItem(t *testing.T) {
	s, _ := newStore(t)
	events, cancel := s.Subscribe(1)
	defer cancel()

	it := s.Add(context.Background(), "Milk", model.StringPtr("dairy"))
	ev := <-events
	require.NotNil(t, ev.Item)
	assert.Equal(t, it, *ev.Item)
	assert.Nil(t, ev.Items)
}

func TestPersistFailureIsNotFatal(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s, backend := newStore(t, WithLogger(zap.New(core)))
	backend.FailWith(errors.New("disk full"))
	events, cancel := s.Subscribe(1)
	defer cancel()

	it := s.Add(context.Background(), "Milk", nil)
	assert.Equal(t, []model.Item{it}, s.Items())
	assert.Equal(t, model.ActionAdd, (<-events).Action)
	assert.Equal(t, 1, logs.FilterMessage("check list snapshot not saved").Len())
	assert.Empty(t, backend.Snapshot())
}

func TestPersistSurvivesCancelledCaller(t *testing.T) {
	s, backend := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s.Add(ctx, "Milk", nil)
	assert.Len(t, backend.Snapshot(), 1)
}

func TestReturnedItemsAreCopies(t *testing.T) {
	s, _ := newStore(t)
	it := s.Add(context.Background(), "Milk", model.StringPtr("dairy"))
	*it.ItemType = "changed"

	items := s.Items()
	items[0].Name = "changed"
	got, ok := s.Get(it.ID)
	require.True(t, ok)
	assert.Equal(t, "Milk", got.Name)
	assert.Equal(t, "dairy", got.Type())
}

func TestFindByNameReturnsFirstMatch(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	first := s.Add(ctx, "Milk", nil)
	s.Add(ctx, "Milk", nil)

	got, ok := s.FindByName("Milk")
	require.True(t, ok)
	assert.Equal(t, first.ID, got.ID)

	_, ok = s.FindByName("Bread")
	assert.False(t, ok)
}

func TestOpenLoadsSnapshot(t *testing.T) {
	seed := []model.Item{
		{ID: "x", Name: "Milk", Complete: true, Index: 0},
		{ID: "y", Name: "Eggs", Index: 1},
	}
	s, err := Open(context.Background(), memstore.New(seed...))
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, seed, s.Items())

	it := s.Add(context.Background(), "Bread", nil)
	assert.Equal(t, 2, it.Index)
}

func TestConcurrentMutationsKeepIDsUnique(t *testing.T) {
	s, backend := newStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				it := s.Add(ctx, fmt.Sprintf("%d-%d", w, i), nil)
				if i%2 == 0 {
					_, _ = s.Update(ctx, it.ID, model.CompleteFields(true))
				}
			}
		}(w)
	}
	wg.Wait()

	items := s.Items()
	require.Len(t, items, 200)
	seen := map[string]bool{}
	for _, it := range items {
		require.False(t, seen[it.ID])
		seen[it.ID] = true
	}
	if diff := cmp.Diff(items, backend.Snapshot()); diff != "" {
		t.Fatalf("snapshot lags memory (-mem +disk):\n%s", diff)
	}
}

func TestFullSubscriberCountsDroppedEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.New(reg)
	require.NoError(t, err)
	s, _ := newStore(t, WithMetrics(rec))
	_, cancel := s.Subscribe(1)
	defer cancel()

	ctx := context.Background()
	s.Add(ctx, "Milk", nil)
	s.Add(ctx, "Eggs", nil)
	s.Add(ctx, "Bread", nil)

	n, err := testutil.GatherAndCount(reg, "checklist_events_dropped_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "checklist_events_dropped_total" {
			assert.Equal(t, 2.0, mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
}
