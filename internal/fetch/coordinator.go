package fetch

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"gismap/internal/store"
	"gismap/internal/tile"
)

// Delivery is the result of one asynchronous tile request. Image is always
// non-nil: real imagery on success, a synthesized placeholder otherwise, so
// the viewport mosaic stays visually complete. Generation and the grid
// offset let the receiver discard results for viewports that no longer
// exist.
type Delivery struct {
	Address    tile.Address
	DX, DY     int
	Generation uint64
	Image      image.Image
	Err        error
}

// Coordinator bridges cache misses to network fetches. In-flight requests
// are deduplicated two ways: synchronous loads share a singleflight group,
// and asynchronous requests are dropped while the same tile URL is already
// pending.
type Coordinator struct {
	client   *http.Client
	servers  tile.Servers
	store    store.Store
	mem      *store.Memory
	tileSize int
	log      *zap.Logger

	flight singleflight.Group

	mu      sync.Mutex
	pending map[string]bool

	deliveries chan Delivery
}

func New(client *http.Client, servers tile.Servers, st store.Store, mem *store.Memory, tileSize int, log *zap.Logger) *Coordinator {
	if client == nil {
		client = http.DefaultClient
	}
	return &Coordinator{
		client:     client,
		servers:    servers,
		store:      st,
		mem:        mem,
		tileSize:   tileSize,
		log:        log,
		pending:    make(map[string]bool),
		deliveries: make(chan Delivery, 256),
	}
}

// Deliveries is the channel resolved asynchronous requests arrive on. The
// owner of the viewport consumes it.
func (c *Coordinator) Deliveries() <-chan Delivery {
	return c.deliveries
}

// Cached returns tile bytes from the memory or disk layer without touching
// the network. Disk hits are promoted to memory.
func (c *Coordinator) Cached(addr tile.Address) ([]byte, bool) {
	if data, ok := c.mem.Get(addr); ok {
		return data, true
	}
	if data, ok := c.store.TryGet(addr); ok {
		c.mem.Add(addr, data)
		return data, true
	}
	return nil, false
}

// Load returns tile bytes, fetching from the tile server on a cache miss.
// Concurrent loads of the same tile share one request. Fetched imagery is
// written through to the disk and memory caches; a failed cache write is
// logged and the tile is still returned.
func (c *Coordinator) Load(ctx context.Context, addr tile.Address) ([]byte, error) {
	if data, ok := c.Cached(addr); ok {
		return data, nil
	}

	srv, err := c.servers.Get(addr.Server)
	if err != nil {
		return nil, err
	}
	url := srv.URL(addr)

	v, err, _ := c.flight.Do(url, func() (interface{}, error) {
		data, err := c.fetchRemote(ctx, srv, addr, url)
		if err != nil {
			return nil, err
		}
		if err := c.store.Put(addr, data); err != nil {
			c.log.Warn("Tile cache write failed", zap.String("tile", addr.String()), zap.Error(err))
		}
		c.mem.Add(addr, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Coordinator) fetchRemote(ctx context.Context, srv tile.Server, addr tile.Address, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &LoadError{Address: addr, Reason: NetworkFailure, Err: err}
	}
	for k, v := range srv.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &LoadError{Address: addr, Reason: NetworkFailure, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &LoadError{Address: addr, Reason: NetworkFailure, Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &LoadError{Address: addr, Reason: NetworkFailure, Err: err}
	}

	// Only decodable imagery is cached or delivered as real content.
	if _, err := tile.Decode(data); err != nil {
		return nil, &LoadError{Address: addr, Reason: DecodeFailure, Err: err}
	}

	return data, nil
}

// Request starts an asynchronous fetch for a viewport grid cell. A request
// for a tile URL already in flight is dropped; the outstanding fetch will
// satisfy it. Every started request resolves exactly once into a Delivery,
// with failures carrying a placeholder image that is never persisted.
func (c *Coordinator) Request(addr tile.Address, dx, dy int, generation uint64) {
	srv, err := c.servers.Get(addr.Server)
	if err != nil {
		c.log.Warn("Tile request for unknown server", zap.String("tile", addr.String()))
		return
	}
	url := srv.URL(addr)

	c.mu.Lock()
	if c.pending[url] {
		c.mu.Unlock()
		return
	}
	c.pending[url] = true
	c.mu.Unlock()

	go func() {
		data, err := c.Load(context.Background(), addr)

		var img image.Image
		if err == nil {
			img, err = tile.Decode(data)
		}
		if err != nil {
			c.log.Debug("Tile fetch failed, using fallback", zap.String("tile", addr.String()), zap.Error(err))
			img = tile.Placeholder(addr, c.tileSize)
		}

		c.mu.Lock()
		delete(c.pending, url)
		c.mu.Unlock()

		c.deliveries <- Delivery{
			Address:    addr,
			DX:         dx,
			DY:         dy,
			Generation: generation,
			Image:      img,
			Err:        err,
		}
	}()
}

// PendingCount reports how many fetches are currently in flight.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
