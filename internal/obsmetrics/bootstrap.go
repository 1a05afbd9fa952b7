// Package obsmetrics bootstraps the process-wide OTel MeterProvider
// (SPEC_FULL.md §2 DOMAIN STACK: "go.opentelemetry.io/otel (metric) |
// RSC + TQ | permit-semaphore occupancy gauge and task-queue depth
// gauge, following the teacher's otel wiring in its root go.mod").
// Packages that want metrics (relationstore, taskqueue) register their
// instruments against the global meter independently of this package,
// following the teacher's internal/storage/dolt pattern of a
// package-level meter plus init(); Bootstrap only decides where those
// readings go.
package obsmetrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// ShutdownFunc flushes and stops the installed MeterProvider.
type ShutdownFunc func(ctx context.Context) error

// Bootstrap installs a periodic-export MeterProvider and sets it as the
// global provider (otel.SetMeterProvider). Every instrument package
// registers against otel.Meter(...) lazily, so instruments created
// before Bootstrap runs (via init()) still forward readings once it has.
// interval <= 0 defaults to 15s.
func Bootstrap(interval time.Duration) (ShutdownFunc, error) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	exporter, err := stdoutmetric.New(stdoutmetric.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("obsmetrics: new stdout exporter: %w", err)
	}
	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)
	return provider.Shutdown, nil
}
