package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestTTLCache_ExpiresByClock(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)}
	c := NewTTLCache[string, int](time.Minute, clock.now)

	c.Set("summary", 42)
	v, ok := c.Get("summary")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	clock.advance(59 * time.Second)
	_, ok = c.Get("summary")
	assert.True(t, ok)

	clock.advance(time.Second)
	_, ok = c.Get("summary")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLCache_Invalidate(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)}
	c := NewTTLCache[string, int](time.Hour, clock.now)

	c.Set("a", 1)
	c.Set("b", 2)

	c.Invalidate("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)

	c.InvalidateAll()
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestTTLCache_ZeroTTLDisablesCaching(t *testing.T) {
	c := NewTTLCache[string, int](0, nil)
	c.Set("a", 1)
	_, ok := c.Get("a")
	assert.False(t, ok)
}
