package fetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"gismap/internal/store"
	"gismap/internal/tile"
)

func tilePNG(t *testing.T, addr tile.Address) []byte {
	t.Helper()
	data, err := tile.EncodePNG(tile.Placeholder(addr, 64))
	if err != nil {
		t.Fatal(err)
	}
	return data
}

type testEnv struct {
	coord *Coordinator
	disk  *store.Disk
	mem   *store.Memory
	hits  *atomic.Int64
}

func newTestEnv(t *testing.T, handler http.HandlerFunc) *testEnv {
	t.Helper()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	servers := tile.Servers{
		"test": {Name: "test", URLTemplate: srv.URL + "/{z}/{x}/{y}.png"},
	}

	disk, err := store.NewDisk(t.TempDir(), 0, 7*24*time.Hour, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	mem, err := store.NewMemory(100)
	if err != nil {
		t.Fatal(err)
	}

	return &testEnv{
		coord: New(srv.Client(), servers, disk, mem, 256, zap.NewNop()),
		disk:  disk,
		mem:   mem,
		hits:  &hits,
	}
}

func testAddr() tile.Address {
	return tile.Address{Server: "test", Z: 12, X: 3252, Y: 1745}
}

func TestLoadFetchesAndCaches(t *testing.T) {
	addr := testAddr()
	want := tilePNG(t, addr)
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(want)
	})

	got, err := env.coord.Load(context.Background(), addr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Error("Load returned different bytes than the server sent")
	}

	// Fetched imagery is written through to the disk store.
	if _, ok := env.disk.TryGet(addr); !ok {
		t.Error("fetched tile was not cached on disk")
	}

	// A second load is served from cache, not the network.
	if _, err := env.coord.Load(context.Background(), addr); err != nil {
		t.Fatal(err)
	}
	if n := env.hits.Load(); n != 1 {
		t.Errorf("upstream hit %d times, want 1", n)
	}
}

func TestLoadDeduplicatesConcurrent(t *testing.T) {
	addr := testAddr()
	data := tilePNG(t, addr)
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(150 * time.Millisecond)
		w.Write(data)
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.coord.Load(context.Background(), addr); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if n := env.hits.Load(); n != 1 {
		t.Errorf("upstream hit %d times for one tile, want 1", n)
	}
}

func TestLoadNetworkFailure(t *testing.T) {
	addr := testAddr()
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})

	_, err := env.coord.Load(context.Background(), addr)
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Load error = %v, want *LoadError", err)
	}
	if loadErr.Reason != NetworkFailure {
		t.Errorf("reason = %v, want %v", loadErr.Reason, NetworkFailure)
	}
}

func TestLoadDecodeFailureNotCached(t *testing.T) {
	addr := testAddr()
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>rate limited</html>"))
	})

	_, err := env.coord.Load(context.Background(), addr)
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Load error = %v, want *LoadError", err)
	}
	if loadErr.Reason != DecodeFailure {
		t.Errorf("reason = %v, want %v", loadErr.Reason, DecodeFailure)
	}

	// Undecodable responses must never reach the disk cache.
	path := filepath.Join(env.disk.Root(), addr.Path())
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("undecodable response was written to the cache")
	}
}

func TestRequestDeliversTile(t *testing.T) {
	addr := testAddr()
	data := tilePNG(t, addr)
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	})

	env.coord.Request(addr, 1, -2, 7)

	select {
	case d := <-env.coord.Deliveries():
		if d.Err != nil {
			t.Fatalf("delivery error: %v", d.Err)
		}
		if d.Address != addr || d.DX != 1 || d.DY != -2 || d.Generation != 7 {
			t.Errorf("delivery routing = %+v", d)
		}
		if d.Image == nil {
			t.Fatal("delivery without an image")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery arrived")
	}
}

func TestRequestFallbackOnFailure(t *testing.T) {
	addr := testAddr()
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})

	env.coord.Request(addr, 0, 0, 1)

	select {
	case d := <-env.coord.Deliveries():
		if d.Err == nil {
			t.Error("expected an advisory error on the delivery")
		}
		if d.Image == nil {
			t.Fatal("failed fetch delivered no image; the mosaic would show a blank cell")
		}
		if b := d.Image.Bounds(); b.Dx() != 256 || b.Dy() != 256 {
			t.Errorf("fallback size = %dx%d, want 256x256", b.Dx(), b.Dy())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery arrived")
	}

	// Fallback tiles are never persisted.
	path := filepath.Join(env.disk.Root(), addr.Path())
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("fallback tile was written to the cache")
	}
}

func TestRequestDropsDuplicateWhilePending(t *testing.T) {
	addr := testAddr()
	data := tilePNG(t, addr)
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(150 * time.Millisecond)
		w.Write(data)
	})

	env.coord.Request(addr, 0, 0, 1)
	env.coord.Request(addr, 0, 0, 1) // duplicate while the first is pending

	select {
	case <-env.coord.Deliveries():
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery arrived")
	}

	// The duplicate was dropped: no second delivery, one upstream request.
	select {
	case d := <-env.coord.Deliveries():
		t.Fatalf("unexpected second delivery: %+v", d)
	case <-time.After(200 * time.Millisecond):
	}
	if n := env.hits.Load(); n != 1 {
		t.Errorf("upstream hit %d times, want 1", n)
	}
}

func TestCachedPromotesDiskHitsToMemory(t *testing.T) {
	addr := testAddr()
	data := tilePNG(t, addr)
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected network fetch")
	})

	if err := env.disk.Put(addr, data); err != nil {
		t.Fatal(err)
	}

	if _, ok := env.coord.Cached(addr); !ok {
		t.Fatal("Cached missed a disk-resident tile")
	}

	// After promotion the tile survives clearing the disk store.
	if err := env.disk.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, ok := env.coord.Cached(addr); !ok {
		t.Error("disk hit was not promoted to the memory layer")
	}
}
