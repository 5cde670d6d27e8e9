package prefetch

import (
	"context"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"gismap/internal/geo"
	"gismap/internal/tile"
)

// Loader is the slice of the fetch coordinator the prefetcher uses: a cache
// probe and a blocking load that writes through to the store.
type Loader interface {
	Cached(addr tile.Address) ([]byte, bool)
	Load(ctx context.Context, addr tile.Address) ([]byte, error)
}

// Prefetcher warms the tile cache for rings of tiles around a center point.
// It never touches the viewport: results land in the store only, failures
// are dropped, and a rate limiter plus a per-invocation request cap keep it
// from competing with interactive fetches or violating tile-server usage
// policy.
type Prefetcher struct {
	loader      Loader
	limiter     *rate.Limiter
	maxRequests int
	workers     int
	tileSize    int
	log         *zap.Logger
}

func New(loader Loader, requestsPerSecond float64, maxRequests, workers, tileSize int, log *zap.Logger) *Prefetcher {
	if maxRequests <= 0 {
		maxRequests = 25
	}
	if workers <= 0 {
		workers = 2
	}
	return &Prefetcher{
		loader:      loader,
		limiter:     rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		maxRequests: maxRequests,
		workers:     workers,
		tileSize:    tileSize,
		log:         log,
	}
}

// Prefetch fetches uncached tiles in rings of Chebyshev distance 1..radius
// around the tile containing center. Returns how many fetches were issued.
func (p *Prefetcher) Prefetch(ctx context.Context, server string, center geo.Point, zoom, radius int) int {
	px, py := geo.GeoToPixel(center, zoom, p.tileSize)
	ctx0 := int(math.Floor(px / float64(p.tileSize)))
	cty0 := int(math.Floor(py / float64(p.tileSize)))

	candidates := RingAddresses(server, ctx0, cty0, zoom, radius)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	issued := 0
	for _, addr := range candidates {
		if issued >= p.maxRequests {
			break
		}
		if _, ok := p.loader.Cached(addr); ok {
			continue
		}
		issued++

		addr := addr
		g.Go(func() error {
			if err := p.limiter.Wait(gctx); err != nil {
				return nil
			}
			if _, err := p.loader.Load(gctx, addr); err != nil {
				p.log.Debug("Prefetch failed", zap.String("tile", addr.String()), zap.Error(err))
			}
			return nil
		})
	}

	g.Wait()
	p.log.Debug("Prefetch done",
		zap.String("server", server),
		zap.Int("zoom", zoom),
		zap.Int("radius", radius),
		zap.Int("issued", issued),
	)
	return issued
}

// RingAddresses enumerates valid tile addresses on the rings around a
// center tile, nearest ring first.
func RingAddresses(server string, centerX, centerY, zoom, radius int) []tile.Address {
	var out []tile.Address
	for ring := 1; ring <= radius; ring++ {
		for dy := -ring; dy <= ring; dy++ {
			for dx := -ring; dx <= ring; dx++ {
				if maxInt(absInt(dx), absInt(dy)) != ring {
					continue
				}
				addr := tile.Address{Server: server, Z: zoom, X: centerX + dx, Y: centerY + dy}
				if addr.Valid() {
					out = append(out, addr)
				}
			}
		}
	}
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
