// Package http serves tiles out of a built configuration. The handlers only
// wire the graph together: layer lookup, bounds checks, cache reads and
// saves, and provider rendering.
package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tilegarden/internal/cache"
	"tilegarden/internal/config"
	"tilegarden/internal/geo"
	"tilegarden/internal/layer"
)

// ConfigSource yields the live configuration; a Reloader satisfies it, and a
// static configuration can stand in for tests.
type ConfigSource interface {
	Current() *config.Configuration
}

type Handlers struct {
	source ConfigSource
	logger *zap.Logger
}

func New(source ConfigSource, logger *zap.Logger) *Handlers {
	return &Handlers{source: source, logger: logger}
}

func (h *Handlers) RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		h.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Int64("bytes", wrapped.bytesWritten),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (h *Handlers) HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// HandleTile serves GET /{layer}/{z}/{x}/{y}.{ext}.
func (h *Handlers) HandleTile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	layerName, coord, format, ok := parseTilePath(r.URL.Path)
	if !ok {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	cfg := h.source.Current()
	l, ok := cfg.Layer(layerName)
	if !ok {
		http.Error(w, "Unknown layer: "+layerName, http.StatusNotFound)
		return
	}

	if l.Excludes(coord) {
		http.Error(w, "Tile out of bounds", http.StatusNotFound)
		return
	}

	if l.AllowedOrigin != "" {
		w.Header().Set("Access-Control-Allow-Origin", l.AllowedOrigin)
	}

	body, err := h.tileBody(r, cfg, l, coord, format)
	if err != nil {
		h.logger.Error("tile render failed",
			zap.String("layer", layerName),
			zap.Stringer("coord", coord),
			zap.Error(err))
		http.Error(w, "Tile render failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType(format))
	if l.CacheLifespan > 0 {
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(l.CacheLifespan))
	}
	w.Write(body)
}

func (h *Handlers) tileBody(r *http.Request, cfg *config.Configuration, l *layer.Layer, coord geo.Coordinate, format string) ([]byte, error) {
	ctx := r.Context()
	key := cache.TileKey{
		Layer:  l.Name,
		Zoom:   coord.Zoom,
		Row:    int(coord.Row),
		Column: int(coord.Column),
		Format: format,
	}

	body, err := cfg.Cache.Read(ctx, key)
	if err == nil {
		return body, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		return nil, err
	}

	// Hold the tile lock while rendering so concurrent requests for the same
	// tile don't duplicate the work; check the cache again once inside.
	staleAfter := time.Duration(l.StaleLockTimeout) * time.Second
	if err := cfg.Cache.Lock(ctx, key, staleAfter); err != nil {
		return nil, err
	}
	defer cfg.Cache.Unlock(ctx, key)

	if body, err := cfg.Cache.Read(ctx, key); err == nil {
		return body, nil
	}

	body, err = l.Provider.RenderTile(ctx, coord, format)
	if err != nil {
		return nil, err
	}

	if l.WriteCache {
		lifespan := time.Duration(l.CacheLifespan) * time.Second
		if err := cfg.Cache.Save(ctx, key, body, lifespan); err != nil {
			return nil, err
		}
	}
	return body, nil
}

func parseTilePath(path string) (layerName string, coord geo.Coordinate, format string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 4 {
		return "", geo.Coordinate{}, "", false
	}
	layerName = parts[0]

	z, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", geo.Coordinate{}, "", false
	}
	x, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", geo.Coordinate{}, "", false
	}

	file, format, found := strings.Cut(parts[3], ".")
	if !found || format == "" {
		return "", geo.Coordinate{}, "", false
	}
	y, err := strconv.Atoi(file)
	if err != nil {
		return "", geo.Coordinate{}, "", false
	}

	return layerName, geo.Coordinate{Zoom: z, Row: float64(y), Column: float64(x)}, format, true
}

func contentType(format string) string {
	switch strings.ToLower(format) {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "json", "geojson":
		return "application/json"
	case "pbf", "mvt":
		return "application/x-protobuf"
	default:
		return "application/octet-stream"
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += int64(n)
	return n, err
}
