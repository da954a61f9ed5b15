package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-portal/internal/models"
)

// DefaultRoleTTL is how long a cached role stays valid.
const DefaultRoleTTL = 5 * time.Minute

// RoleCache remembers the role of the most recently resolved uid.
type RoleCache interface {
	Get(uid string) (models.Role, bool)
	Put(uid string, role models.Role)
	Invalidate()
}

// MemoryCache holds a single CachedRoleEntry in memory.
type MemoryCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	entry *models.CachedRoleEntry
}

// NewMemoryCache returns a cache whose entries expire after ttl. A nil now
// uses time.Now.
func NewMemoryCache(ttl time.Duration, now func() time.Time) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultRoleTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{ttl: ttl, now: now}
}

func (c *MemoryCache) Get(uid string) (models.Role, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lookup(c.entry, uid, c.now(), c.ttl)
}

func (c *MemoryCache) Put(uid string, role models.Role) {
	c.mu.Lock()
	c.entry = &models.CachedRoleEntry{UID: uid, Role: role, Timestamp: c.now().UnixMilli()}
	c.mu.Unlock()
}

func (c *MemoryCache) Invalidate() {
	c.mu.Lock()
	c.entry = nil
	c.mu.Unlock()
}

// Entry returns a copy of the stored entry, if any.
func (c *MemoryCache) Entry() (models.CachedRoleEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil {
		return models.CachedRoleEntry{}, false
	}
	return *c.entry, true
}

// FileCache persists the CachedRoleEntry as JSON in a single file. Concurrent
// processes sharing the file are not coordinated; the last writer wins.
type FileCache struct {
	mu   sync.Mutex
	path string
	ttl  time.Duration
	now  func() time.Time
}

// NewFileCache returns a cache stored at path.
func NewFileCache(path string, ttl time.Duration, now func() time.Time) *FileCache {
	if ttl <= 0 {
		ttl = DefaultRoleTTL
	}
	if now == nil {
		now = time.Now
	}
	return &FileCache{path: path, ttl: ttl, now: now}
}

func (c *FileCache) Get(uid string) (models.Role, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).WithField("path", c.path).Debug("Role cache unreadable")
		}
		return "", false
	}
	var entry models.CachedRoleEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.WithError(err).WithField("path", c.path).Debug("Role cache corrupt")
		return "", false
	}
	return lookup(&entry, uid, c.now(), c.ttl)
}

func (c *FileCache) Put(uid string, role models.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(models.CachedRoleEntry{UID: uid, Role: role, Timestamp: c.now().UnixMilli()})
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		log.WithError(err).Warn("Failed to create role cache directory")
		return
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		log.WithError(err).Warn("Failed to write role cache")
		return
	}
	if err := os.Rename(tmp, c.path); err != nil {
		log.WithError(err).Warn("Failed to replace role cache")
	}
}

func (c *FileCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("Failed to remove role cache")
	}
}

func lookup(entry *models.CachedRoleEntry, uid string, now time.Time, ttl time.Duration) (models.Role, bool) {
	if entry == nil || entry.UID != uid || entry.Role == "" {
		return "", false
	}
	age := now.Sub(time.UnixMilli(entry.Timestamp))
	if age < 0 || age >= ttl {
		return "", false
	}
	return entry.Role, true
}
