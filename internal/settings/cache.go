package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	appLog "diskdash/internal/log"
)

// loadTimeout bounds a single fetch from the source.
const loadTimeout = 30 * time.Second

// Snapshot is what a Source returns: the stored (possibly partial)
// settings and the version string of the server that holds them.
type Snapshot struct {
	Settings      Tree   `json:"settings"`
	ServerVersion string `json:"server_version,omitempty"`
}

// Source is the settings fetch/save boundary.
type Source interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, settings Tree) (Snapshot, error)
}

// Cache holds the latest merged settings and publishes every replacement
// to subscribers. It is safe for concurrent use.
type Cache struct {
	src      Source
	defaults Tree

	mu      sync.RWMutex
	current Tree
	version string

	loads singleflight.Group

	// saveMu serializes read-overlay-write sequences and refreshes.
	saveMu sync.Mutex

	subMu  sync.Mutex
	subs   map[int]chan Tree
	nextID int
}

// NewCache returns an empty cache. A nil defaults tree means Defaults().
func NewCache(src Source, defaults Tree) *Cache {
	if defaults == nil {
		defaults = Defaults()
	}
	return &Cache{
		src:      src,
		defaults: Clone(defaults),
		subs:     make(map[int]chan Tree),
	}
}

// Defaults returns a copy of the defaults this cache merges over.
func (c *Cache) Defaults() Tree {
	return Clone(c.defaults)
}

// Get returns the merged settings, loading them from the source on first
// use or after Invalidate. Concurrent loads are collapsed into one, which
// runs detached from any single caller's cancellation.
func (c *Cache) Get(ctx context.Context) (Tree, error) {
	if t, ok := c.peek(); ok {
		return t, nil
	}

	v, err, _ := c.loads.Do("settings", func() (any, error) {
		if t, ok := c.peek(); ok {
			return t, nil
		}
		return c.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return Clone(v.(Tree)), nil
}

// load fetches from the source and replaces the cache. On error the cache
// is left as it was.
func (c *Cache) load(ctx context.Context) (Tree, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
	defer cancel()

	snap, err := c.src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	merged := Merge(c.defaults, snap.Settings)
	c.store(merged, snap.ServerVersion)
	appLog.Debug("settings loaded", "keys", len(merged), "server_version", snap.ServerVersion)
	return merged, nil
}

// Settings is Get decoded into the typed form.
func (c *Cache) Settings(ctx context.Context) (*Settings, error) {
	t, err := c.Get(ctx)
	if err != nil {
		return nil, err
	}
	return Decode(t)
}

// ServerVersion is the version reported by the last load or save.
func (c *Cache) ServerVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Invalidate drops the cached settings; the next Get reloads them.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

// Refresh refetches from the source. The cached settings are replaced only
// when the fetch succeeds, so a failed refresh keeps serving the last good
// tree.
func (c *Cache) Refresh(ctx context.Context) (Tree, error) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	v, err, _ := c.loads.Do("settings", func() (any, error) {
		return c.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return Clone(v.(Tree)), nil
}

// Save overlays patch on the current settings, stores the result through
// the source and replaces the cache with what the source returned, merged
// over defaults. Current settings are loaded first if not yet cached.
// Saves are serialized so concurrent partial saves all land.
func (c *Cache) Save(ctx context.Context, patch Tree) (Tree, error) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	base, err := c.Get(ctx)
	if err != nil {
		return nil, err
	}
	merged, err := c.put(ctx, Overlay(base, patch))
	if err != nil {
		return nil, err
	}
	appLog.Info("settings saved", "keys", len(patch))
	return merged, nil
}

// Reset stores the defaults, discarding every stored value.
func (c *Cache) Reset(ctx context.Context) (Tree, error) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	merged, err := c.put(ctx, Clone(c.defaults))
	if err != nil {
		return nil, err
	}
	appLog.Info("settings reset to defaults")
	return merged, nil
}

func (c *Cache) put(ctx context.Context, t Tree) (Tree, error) {
	snap, err := c.src.Save(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}

	merged := Merge(c.defaults, snap.Settings)
	version := snap.ServerVersion
	if version == "" {
		version = c.ServerVersion()
	}
	c.store(merged, version)
	return Clone(merged), nil
}

// Subscribe returns a channel that receives every new settings tree, and a
// cancel func that closes it. Only the newest value is buffered; a slow
// reader skips intermediate trees. If settings are already cached the
// channel starts with them.
func (c *Cache) Subscribe() (<-chan Tree, func()) {
	ch := make(chan Tree, 1)

	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	if t, ok := c.peek(); ok {
		ch <- t
	}
	c.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			close(ch)
			c.subMu.Unlock()
		})
	}
	return ch, cancel
}

func (c *Cache) peek() (Tree, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil, false
	}
	return Clone(c.current), true
}

func (c *Cache) store(t Tree, version string) {
	c.mu.Lock()
	c.current = Clone(t)
	c.version = version
	c.mu.Unlock()
	c.broadcast(t)
}

func (c *Cache) broadcast(t Tree) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- Clone(t)
	}
}
