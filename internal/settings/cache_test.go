package settings

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu        sync.Mutex
	stored    Tree
	version   string
	loads     atomic.Int32
	saves     atomic.Int32
	delay     time.Duration
	saveDelay time.Duration
	loadErr   error
	saveErr   error
}

func (f *fakeSource) Load(ctx context.Context) (Snapshot, error) {
	f.loads.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	f.mu.Lock()
	loadErr := f.loadErr
	f.mu.Unlock()
	if loadErr != nil {
		return Snapshot{}, loadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return Snapshot{Settings: Clone(f.stored), ServerVersion: f.version}, nil
}

func (f *fakeSource) Save(_ context.Context, t Tree) (Snapshot, error) {
	f.saves.Add(1)
	if f.saveDelay > 0 {
		time.Sleep(f.saveDelay)
	}
	if f.saveErr != nil {
		return Snapshot{}, f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = Clone(t)
	return Snapshot{Settings: Clone(f.stored)}, nil
}

func TestCacheGetMergesAndCaches(t *testing.T) {
	src := &fakeSource{stored: Tree{"theme": "dark", "layout": ""}, version: "v1.2.3"}
	c := NewCache(src, nil)

	got, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dark", got["theme"])
	assert.Equal(t, "material", got["layout"])
	assert.Equal(t, "v1.2.3", c.ServerVersion())

	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, src.loads.Load())
}

func TestCacheConcurrentGetLoadsOnce(t *testing.T) {
	src := &fakeSource{stored: Tree{}, delay: 50 * time.Millisecond}
	c := NewCache(src, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, src.loads.Load())
}

func TestCacheRefreshRefetches(t *testing.T) {
	src := &fakeSource{stored: Tree{"theme": "dark"}}
	c := NewCache(src, nil)

	_, err := c.Get(context.Background())
	require.NoError(t, err)

	src.mu.Lock()
	src.stored = Tree{"theme": "system"}
	src.mu.Unlock()

	got, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "system", got["theme"])
	assert.EqualValues(t, 2, src.loads.Load())
}

func TestCacheLoadError(t *testing.T) {
	src := &fakeSource{loadErr: errors.New("backend down")}
	c := NewCache(src, nil)

	_, err := c.Get(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}

func TestCacheSaveOverlaysAndBroadcasts(t *testing.T) {
	src := &fakeSource{stored: Tree{"theme": "dark"}, version: "v1"}
	c := NewCache(src, nil)
	_, err := c.Get(context.Background())
	require.NoError(t, err)

	updates, cancel := c.Subscribe()
	defer cancel()
	initial := <-updates
	assert.Equal(t, "dark", initial["theme"])

	got, err := c.Save(context.Background(), Tree{"metrics": Tree{"notify_level": NotifyLevelWarn}})
	require.NoError(t, err)
	assert.Equal(t, "dark", got["theme"], "unrelated keys kept")
	assert.Equal(t, NotifyLevelWarn, got["metrics"].(Tree)["notify_level"])
	assert.Equal(t, 60, got["metrics"].(Tree)["missed_ping_timeout_minutes"])
	assert.Equal(t, "v1", c.ServerVersion(), "version kept when save omits it")

	select {
	case pushed := <-updates:
		assert.Equal(t, got, pushed)
	case <-time.After(time.Second):
		t.Fatal("no broadcast after save")
	}
}

func TestCacheSaveError(t *testing.T) {
	src := &fakeSource{stored: Tree{}, saveErr: errors.New("read-only")}
	c := NewCache(src, nil)

	_, err := c.Save(context.Background(), Tree{"theme": "dark"})
	require.Error(t, err)

	got, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "light", got["theme"])
}

func TestCacheReset(t *testing.T) {
	src := &fakeSource{stored: Tree{"theme": "dark"}}
	c := NewCache(src, nil)

	got, err := c.Reset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), got)
	assert.Equal(t, Defaults(), src.stored)
}

func TestSubscribeKeepsOnlyLatest(t *testing.T) {
	src := &fakeSource{stored: Tree{}}
	c := NewCache(src, nil)

	updates, cancel := c.Subscribe()
	for _, theme := range []string{"a", "b", "c"} {
		_, err := c.Save(context.Background(), Tree{"theme": theme})
		require.NoError(t, err)
	}

	latest := <-updates
	assert.Equal(t, "c", latest["theme"])

	cancel()
	cancel()
	_, open := <-updates
	assert.False(t, open)
}

func TestCacheSettingsTyped(t *testing.T) {
	src := &fakeSource{stored: Tree{"temperature_unit": "fahrenheit"}}
	c := NewCache(src, nil)

	s, err := c.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fahrenheit", s.TemperatureUnit)
	assert.Equal(t, Defaults(), c.Defaults())
}

func TestCacheSaveBeforeLoadKeepsStoredValues(t *testing.T) {
	src := &fakeSource{stored: Tree{"theme": "dark"}}
	c := NewCache(src, nil)

	got, err := c.Save(context.Background(), Tree{"layout": "compact"})
	require.NoError(t, err)
	assert.Equal(t, "dark", got["theme"])
	assert.Equal(t, "compact", got["layout"])
	assert.EqualValues(t, 1, src.loads.Load())
}

func TestCacheConcurrentSavesAllLand(t *testing.T) {
	src := &fakeSource{stored: Tree{}, saveDelay: 50 * time.Millisecond}
	c := NewCache(src, nil)

	var wg sync.WaitGroup
	for _, patch := range []Tree{{"theme": "dark"}, {"layout": "compact"}} {
		wg.Add(1)
		go func(p Tree) {
			defer wg.Done()
			_, err := c.Save(context.Background(), p)
			assert.NoError(t, err)
		}(patch)
	}
	wg.Wait()

	got, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dark", got["theme"])
	assert.Equal(t, "compact", got["layout"])
}

func TestCacheFailedRefreshKeepsLastGood(t *testing.T) {
	src := &fakeSource{stored: Tree{"theme": "dark"}, version: "v1"}
	c := NewCache(src, nil)
	_, err := c.Get(context.Background())
	require.NoError(t, err)

	src.mu.Lock()
	src.loadErr = errors.New("upstream down")
	src.mu.Unlock()

	_, err = c.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")

	got, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dark", got["theme"])
	assert.Equal(t, "v1", c.ServerVersion())

	src.mu.Lock()
	src.loadErr = nil
	src.stored = Tree{"theme": "system"}
	src.mu.Unlock()

	got, err = c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "system", got["theme"])
}

func TestCacheLoadIgnoresCallerCancel(t *testing.T) {
	src := &fakeSource{stored: Tree{"theme": "dark"}, delay: 50 * time.Millisecond}
	c := NewCache(src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx)
		first <- err
	}()
	time.Sleep(10 * time.Millisecond)

	second := make(chan Tree, 1)
	go func() {
		got, err := c.Get(context.Background())
		assert.NoError(t, err)
		second <- got
	}()
	cancel()

	require.NoError(t, <-first)
	assert.Equal(t, "dark", (<-second)["theme"])
}
