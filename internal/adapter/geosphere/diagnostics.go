package geosphere

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/nwp-forecast-service/internal/domain"
)

// DiagnosticSink observes what the client received. Implementations must be
// safe for concurrent use and must not retain body after returning.
type DiagnosticSink interface {
	RawResponse(ctx context.Context, q domain.ForecastQuery, status int, body []byte)
	ParsedForecast(ctx context.Context, q domain.ForecastQuery, f *domain.Forecast)
}

// LogSink writes diagnostics to a logger at debug level.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) RawResponse(ctx context.Context, q domain.ForecastQuery, status int, body []byte) {
	s.Logger.DebugContext(ctx, "geosphere raw response", "request", RequestID(ctx),
		"lat", q.Coordinates.Latitude, "lon", q.Coordinates.Longitude,
		"status", status, "bytes", len(body))
}

func (s LogSink) ParsedForecast(ctx context.Context, q domain.ForecastQuery, f *domain.Forecast) {
	fields := make([]string, 0, len(f.Series))
	for _, p := range parameters {
		if f.Has(p.field) {
			fields = append(fields, string(p.field))
		}
	}
	s.Logger.DebugContext(ctx, "geosphere forecast parsed", "request", RequestID(ctx),
		"start", q.Start, "end", q.End, "hours", f.Len(), "fields", fields)
}

type requestIDKey struct{}

// RequestID returns the sequence number a Client assigned to the request
// carried by ctx, or 0 when ctx does not belong to a request.
func RequestID(ctx context.Context) uint64 {
	id, _ := ctx.Value(requestIDKey{}).(uint64)
	return id
}

func withRequestID(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// DirSink writes each response and parsed forecast to files in Dir, numbered
// by request so raw and parsed files of one request share a number.
type DirSink struct {
	Dir    string
	Logger *slog.Logger
}

func (s *DirSink) RawResponse(ctx context.Context, _ domain.ForecastQuery, status int, body []byte) {
	s.write(fmt.Sprintf("raw-%03d-status%d.json", RequestID(ctx), status), body)
}

func (s *DirSink) ParsedForecast(ctx context.Context, _ domain.ForecastQuery, f *domain.Forecast) {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		s.Logger.Warn("encode parsed forecast", "error", err)
		return
	}
	s.write(fmt.Sprintf("parsed-%03d.json", RequestID(ctx)), data)
}

func (s *DirSink) write(name string, data []byte) {
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		s.Logger.Warn("write diagnostic file", "path", path, "error", err)
	}
}
