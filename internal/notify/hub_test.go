package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/idilsaglam/checklist/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPublishReachesEverySubscriber(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe(4)
	defer cancelA()
	b, cancelB := h.Subscribe(4)
	defer cancelB()

	n := h.Publish(model.Event{Action: model.ActionAdd})
	assert.Equal(t, 2, n)
	assert.Equal(t, model.ActionAdd, (<-a).Action)
	assert.Equal(t, model.ActionAdd, (<-b).Action)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	h := NewHub()
	assert.Equal(t, 0, h.Publish(model.Event{Action: model.ActionReorder}))
}

func TestFullBufferDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1)
	defer cancel()

	h.Publish(model.Event{Action: model.ActionAdd})
	h.Publish(model.Event{Action: model.ActionUpdate})

	assert.Equal(t, uint64(1), h.Dropped())
	assert.Equal(t, model.ActionAdd, (<-ch).Action)
	select {
	case ev := <-ch:
		t.Fatalf("unexpected second event %v", ev)
	default:
	}
}

func TestCancelClosesAndIsIdempotent(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(0)
	require.Equal(t, 1, h.Subscribers())

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, h.Subscribers())
}

func TestCloseEndsSubscriptions(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(2)
	h.Close()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := h.Subscribe(2)
	_, ok = <-late
	assert.False(t, ok)
}
