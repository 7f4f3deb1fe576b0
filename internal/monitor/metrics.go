package monitor

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/alerts"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/telemetry"
)

// metrics holds the monitor's OTEL instruments. With no provider
// configured every instrument is a no-op.
type metrics struct {
	meter        metric.Meter
	tracer       trace.Tracer
	scans        metric.Int64Counter
	scanDuration metric.Float64Histogram
	alertsRaised metric.Int64Counter
	activeAlerts metric.Int64ObservableGauge

	// reg is the active-alerts callback, held only while running.
	reg metric.Registration
}

func newMetrics() *metrics {
	meter := telemetry.Meter("caws/monitor")

	scans, _ := meter.Int64Counter("caws.monitor.scans",
		metric.WithDescription("Completed recompute scans by outcome"),
	)
	scanDur, _ := meter.Float64Histogram("caws.monitor.scan.duration",
		metric.WithDescription("Time to scan the tree and estimate progress (ms)"),
		metric.WithUnit("ms"),
	)
	raised, _ := meter.Int64Counter("caws.monitor.alerts.raised",
		metric.WithDescription("Alerts added to the active set"),
	)

	active, _ := meter.Int64ObservableGauge("caws.monitor.alerts.active",
		metric.WithDescription("Current number of active alerts"),
	)

	return &metrics{
		meter:        meter,
		activeAlerts: active,
		tracer:       telemetry.Tracer("caws/monitor"),
		scans:        scans,
		scanDuration: scanDur,
		alertsRaised: raised,
	}
}

// observe starts reporting m's active alert count. Pair with unobserve so a
// stopped monitor is not kept alive by the global meter.
func (mt *metrics) observe(m *Monitor) {
	if mt.reg != nil || mt.activeAlerts == nil {
		return
	}
	reg, err := mt.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		if s := m.snapshot.Load(); s != nil {
			o.ObserveInt64(mt.activeAlerts, int64(len(s.ActiveAlerts)))
		}
		return nil
	}, mt.activeAlerts)
	if err != nil {
		m.logger.Debug("registering active alerts gauge", "error", err)
		return
	}
	mt.reg = reg
}

func (mt *metrics) unobserve() {
	if mt.reg == nil {
		return
	}
	_ = mt.reg.Unregister()
	mt.reg = nil
}

func (mt *metrics) recordScan(ctx context.Context, outcome string, d time.Duration) {
	mt.scans.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	mt.scanDuration.Record(ctx, float64(d.Microseconds())/1000.0)
}

func (mt *metrics) recordAlerts(ctx context.Context, added []alerts.Alert) {
	for _, a := range added {
		mt.alertsRaised.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", string(a.Kind)),
			attribute.String("severity", string(a.Severity)),
		))
	}
}
