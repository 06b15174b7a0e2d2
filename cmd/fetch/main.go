// Command fetch performs one GeoSphere forecast request for a point and
// prints the normalized result. It is meant for checking what the provider
// returns without running the service.
//
// Usage:
//
//	go run ./cmd/fetch -lat 48.2082 -lon 16.3738 \
//	  -hours 12 \
//	  -dump-dir /tmp/geosphere
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/nwp-forecast-service/internal/adapter/geosphere"
	"github.com/couchcryptid/nwp-forecast-service/internal/config"
	"github.com/couchcryptid/nwp-forecast-service/internal/domain"
	"github.com/couchcryptid/nwp-forecast-service/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	lat := flag.Float64("lat", 48.2082, "latitude in degrees")
	lon := flag.Float64("lon", 16.3738, "longitude in degrees")
	startFlag := flag.String("start", "", "window start in RFC 3339 (default: now)")
	hours := flag.Int("hours", 24, "number of hourly rows to print")
	asJSON := flag.Bool("json", false, "print the parsed forecast as JSON")
	dumpDir := flag.String("dump-dir", "", "directory to write raw and parsed responses to")
	baseURL := flag.String("base-url", geosphere.DefaultBaseURL, "dataset API base URL")
	model := flag.String("model", geosphere.DefaultModel, "forecast model id")
	timeout := flag.Duration("timeout", geosphere.DefaultTimeout, "request timeout")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	start := time.Now().UTC()
	if *startFlag != "" {
		t, err := time.Parse(time.RFC3339, *startFlag)
		if err != nil {
			return fmt.Errorf("invalid -start: %w", err)
		}
		start = t.UTC()
	}

	logCfg := &config.Config{LogLevel: "warn", LogFormat: "text"}
	if *verbose {
		logCfg.LogLevel = "debug"
	}
	logger := observability.NewLogger(logCfg)

	opts := []geosphere.Option{
		geosphere.WithBaseURL(*baseURL),
		geosphere.WithModel(*model),
		geosphere.WithTimeout(*timeout),
		geosphere.WithLogger(logger),
	}
	if *dumpDir != "" {
		if err := os.MkdirAll(*dumpDir, 0o750); err != nil {
			return fmt.Errorf("create dump dir: %w", err)
		}
		opts = append(opts, geosphere.WithDiagnosticSink(&geosphere.DirSink{Dir: *dumpDir, Logger: logger}))
	} else if *verbose {
		opts = append(opts, geosphere.WithDiagnosticSink(geosphere.LogSink{Logger: logger}))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	q := domain.NewForecastQuery(domain.Coordinates{Latitude: *lat, Longitude: *lon}, start)
	f, err := geosphere.NewClient(opts...).Fetch(ctx, q)
	if err != nil {
		return describe(err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	}
	return printTable(os.Stdout, f, start, *hours)
}

func describe(err error) error {
	var connErr *domain.ConnectionError
	switch {
	case errors.As(err, &connErr) && connErr.Timeout():
		return fmt.Errorf("request timed out: %w", err)
	case domain.IsConnectionError(err):
		return fmt.Errorf("could not reach provider: %w", err)
	case domain.IsProviderError(err):
		return fmt.Errorf("provider returned an unusable response: %w", err)
	default:
		return err
	}
}

func printTable(w io.Writer, f *domain.Forecast, now time.Time, limit int) error {
	cur, ok := domain.Current(f)
	if !ok {
		return errors.New("forecast is empty")
	}
	fmt.Fprintf(w, "now: %s  %s  %s\n\n", cur.Time.Format(time.RFC3339), cur.Condition, formatOptional(cur.Temperature, "°C"))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tCONDITION\tTEMP\tMIN\tPRECIP\tWIND\tPRESSURE")
	n := 0
	for h := range domain.HourlySeries(f, now.Truncate(time.Hour)) {
		if n == limit {
			break
		}
		n++
		cond := "-"
		if h.Condition != nil {
			cond = string(*h.Condition)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			h.Time.Format("Mon 15:04"), cond,
			formatOptional(h.Temperature, "°C"),
			formatOptional(h.TemperatureLow, "°C"),
			formatOptional(h.Precipitation, "mm"),
			formatOptional(h.WindSpeed, "m/s"),
			formatOptional(h.Pressure, "hPa"),
		)
	}
	return tw.Flush()
}

func formatOptional(v *float64, unit string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f%s", *v, unit)
}
