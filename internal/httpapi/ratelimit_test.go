package httpapi

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientLimiterDisabled(t *testing.T) {
	l := newClientLimiter(0, 10)
	require.Nil(t, l)
	for i := 0; i < 1000; i++ {
		require.True(t, l.allow("a", time.Now()))
	}
}

func TestClientLimiterPerKey(t *testing.T) {
	l := newClientLimiter(1, 1)
	now := time.Unix(1_700_000_000, 0)
	assert.True(t, l.allow("a", now))
	assert.False(t, l.allow("a", now))
	assert.True(t, l.allow("b", now))
}

func TestClientLimiterEvictsIdle(t *testing.T) {
	l := newClientLimiter(100, 100)
	start := time.Unix(1_700_000_000, 0)
	l.allow("stale", start)

	later := start.Add(time.Hour)
	for i := 0; i < 511; i++ {
		l.allow("fresh", later)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.byKey, "stale")
	assert.Contains(t, l.byKey, "fresh")
}

func TestClientKeyStripsPort(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.7:51234"
	assert.Equal(t, "10.0.0.7", clientKey(r))
	r.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", clientKey(r))
}
