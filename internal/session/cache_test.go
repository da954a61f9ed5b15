package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-portal/internal/models"
)

func TestMemoryCache_TTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	cache := NewMemoryCache(5*time.Minute, clock.Now)

	cache.Put("u1", models.RoleReceptionist)
	role, ok := cache.Get("u1")
	assert.True(t, ok)
	assert.Equal(t, models.RoleReceptionist, role)

	_, ok = cache.Get("u2")
	assert.False(t, ok, "entries are scoped to one uid")

	clock.Set(clock.Now().Add(5*time.Minute - time.Millisecond))
	_, ok = cache.Get("u1")
	assert.True(t, ok)

	clock.Set(clock.Now().Add(time.Millisecond))
	_, ok = cache.Get("u1")
	assert.False(t, ok, "expires at the TTL")
}

func TestMemoryCache_PutReplacesOtherUID(t *testing.T) {
	cache := NewMemoryCache(0, nil)
	cache.Put("u1", models.RoleAdmin)
	cache.Put("u2", models.RoleStaff)

	_, ok := cache.Get("u1")
	assert.False(t, ok)
	role, ok := cache.Get("u2")
	assert.True(t, ok)
	assert.Equal(t, models.RoleStaff, role)

	cache.Invalidate()
	_, ok = cache.Get("u2")
	assert.False(t, ok)
}

func TestFileCache_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal", "role-cache.json")
	clock := &fakeClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	cache := NewFileCache(path, DefaultRoleTTL, clock.Now)

	_, ok := cache.Get("u1")
	assert.False(t, ok)

	cache.Put("u1", models.RoleAdmin)
	_, err := os.Stat(path)
	require.NoError(t, err)

	reopened := NewFileCache(path, DefaultRoleTTL, clock.Now)
	role, ok := reopened.Get("u1")
	assert.True(t, ok)
	assert.Equal(t, models.RoleAdmin, role)

	clock.Set(clock.Now().Add(400 * time.Second))
	_, ok = reopened.Get("u1")
	assert.False(t, ok)

	reopened.Invalidate()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	reopened.Invalidate()
}

func TestFileCache_CorruptFileIsMiss(t *testing.T) {
	path := filepath.Join(t.TempDir(), "role-cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	cache := NewFileCache(path, DefaultRoleTTL, nil)
	_, ok := cache.Get("u1")
	assert.False(t, ok)
}

func TestHub_DeliversCurrentStateOnSubscribe(t *testing.T) {
	hub := NewHub(signedIn("u1"))

	var events []Event
	sub := hub.Subscribe(func(ev Event) { events = append(events, ev) })
	require.Len(t, events, 1)
	assert.True(t, events[0].Authenticated())

	hub.Publish(Event{})
	require.Len(t, events, 2)
	assert.False(t, events[1].Authenticated())

	sub.Cancel()
	sub.Cancel()
	hub.Publish(signedIn("u2"))
	assert.Len(t, events, 2)
	assert.Equal(t, "u2", hub.Current().Session.UID)
}
