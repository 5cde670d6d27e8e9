package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gismap/internal/config"
	"gismap/internal/fetch"
	"gismap/internal/geo"
	"gismap/internal/store"
	"gismap/internal/tile"
	"gismap/internal/viewport"
)

type Handlers struct {
	config  *config.Config
	logger  *zap.Logger
	coord   *fetch.Coordinator
	store   store.Store
	servers tile.Servers
}

func New(config *config.Config, logger *zap.Logger, coord *fetch.Coordinator, st store.Store, servers tile.Servers) *Handlers {
	return &Handlers{
		config:  config,
		logger:  logger,
		coord:   coord,
		store:   st,
		servers: servers,
	}
}

func (h *Handlers) RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		start := time.Now()

		ip := h.extractIP(r)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		bytes := wrapped.bytesWritten

		h.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("ip", ip),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Int64("bytes", bytes),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.String("user_agent", r.UserAgent()),
		)
	})
}

func (h *Handlers) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HandleTiles serves /tiles/{server}/{z}/{x}/{y}.png through the cache,
// fetching from the upstream tile server on a miss.
func (h *Handlers) HandleTiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/tiles/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 4 {
		http.Error(w, "Invalid tile path", http.StatusBadRequest)
		return
	}

	server := parts[0]
	if _, err := h.servers.Get(server); err != nil {
		http.Error(w, "Unknown tile server", http.StatusNotFound)
		return
	}

	z, errZ := strconv.Atoi(parts[1])
	x, errX := strconv.Atoi(parts[2])
	y, errY := strconv.Atoi(strings.TrimSuffix(parts[3], ".png"))
	if errZ != nil || errX != nil || errY != nil {
		http.Error(w, "Invalid tile coordinates", http.StatusBadRequest)
		return
	}

	addr := tile.Address{Server: server, Z: z, X: x, Y: y}
	if !addr.Valid() {
		http.Error(w, "Tile coordinates out of range for zoom", http.StatusNotFound)
		return
	}

	data, err := h.coord.Load(r.Context(), addr)
	if err != nil {
		h.logger.Warn("Tile load failed", zap.String("tile", addr.String()), zap.Error(err))
		http.Error(w, "Tile unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Write(data)
}

// HandleServers lists the configured tile servers.
func (h *Handlers) HandleServers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	type serverInfo struct {
		Name string `json:"name"`
		URL  string `json:"url_template"`
	}
	infos := make([]serverInfo, 0, len(h.servers))
	for _, name := range h.servers.Names() {
		srv := h.servers[name]
		infos = append(infos, serverInfo{Name: srv.Name, URL: srv.URLTemplate})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(infos)
}

// HandleCacheSize reports the on-disk cache size. The walk is O(file count),
// so callers poll this endpoint, the cache never pushes.
func (h *Handlers) HandleCacheSize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	size, err := h.store.SizeBytes()
	if err != nil {
		h.logger.Error("Cache size walk failed", zap.Error(err))
		http.Error(w, "Failed to compute cache size", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"bytes":     size,
		"megabytes": float64(size) / (1024 * 1024),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (h *Handlers) HandleCacheClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.store.Clear(); err != nil {
		h.logger.Error("Cache clear failed", zap.Error(err))
		http.Error(w, "Failed to clear cache", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Tile cache cleared")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "tile cache cleared"})
}

// HandleGrid computes the viewport tile grid for a map window described by
// query parameters and reports, per cell, whether the tile is cached or
// would be fetched. It probes the cache only; no fetches are started.
func (h *Handlers) HandleGrid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil {
		http.Error(w, "Invalid lat/lon", http.StatusBadRequest)
		return
	}

	zoom := h.config.DefaultZoom
	if v := q.Get("zoom"); v != "" {
		z, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "Invalid zoom", http.StatusBadRequest)
			return
		}
		zoom = z
	}
	width := queryInt(q.Get("width"), 1024)
	height := queryInt(q.Get("height"), 768)

	server := q.Get("server")
	if server == "" {
		server = h.config.TileServer
	}
	if _, err := h.servers.Get(server); err != nil {
		http.Error(w, "Unknown tile server", http.StatusNotFound)
		return
	}

	vp := geo.Viewport{
		Center:   geo.Point{Lat: lat, Lon: lon},
		Width:    width,
		Height:   height,
		TileSize: h.config.TileSize,
	}
	vp = vp.WithZoom(zoom, h.config.MinZoom, h.config.MaxZoom)

	ts := viewport.NewTileSet(&cacheProbe{coord: h.coord}, server, h.config.TileSize, viewport.DefaultLimits(), h.logger)
	ts.Recompute(vp, true)

	type cellInfo struct {
		DX     int    `json:"dx"`
		DY     int    `json:"dy"`
		Tile   string `json:"tile"`
		Cached bool   `json:"cached"`
	}
	cells := ts.Cells()
	out := make([]cellInfo, 0, len(cells))
	for _, c := range cells {
		out = append(out, cellInfo{
			DX:     c.Offset.DX,
			DY:     c.Offset.DY,
			Tile:   c.Address.String(),
			Cached: !c.Placeholder,
		})
	}

	centerX, centerY := ts.CenterTile()
	response := map[string]interface{}{
		"server":           server,
		"zoom":             vp.Zoom,
		"center_tile":      [2]int{centerX, centerY},
		"meters_per_pixel": vp.MetersPerPixel(),
		"cells":            out,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// cacheProbe adapts the coordinator into a read-only tile source for grid
// inspection: misses are reported but no network fetch is started.
type cacheProbe struct {
	coord *fetch.Coordinator
}

func (p *cacheProbe) Cached(addr tile.Address) ([]byte, bool) {
	return p.coord.Cached(addr)
}

func (p *cacheProbe) Request(addr tile.Address, dx, dy int, generation uint64) {
}

func queryInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	if v, err := strconv.Atoi(value); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

// Not for real production use due to potential spoofing
// but it's fine for a demo
func (h *Handlers) extractIP(r *http.Request) string {
	ip := r.Header.Get("X-Real-Ip")
	if ip != "" {
		return strings.Split(ip, ":")[0]
	}

	addr := r.RemoteAddr
	if addr != "" {
		return strings.Split(addr, ":")[0]
	}

	return "unknown"
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
