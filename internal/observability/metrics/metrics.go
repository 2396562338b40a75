package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const exportInterval = 10 * time.Second

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics holds the ledger, billing and delivery counters. A nil *Metrics
// records nothing, so services may run without the observability module.
type Metrics struct {
	reservations     metric.Int64Counter
	releases         metric.Int64Counter
	invoices         metric.Int64Counter
	advances         metric.Int64Counter
	sequenceRetries  metric.Int64Counter
	compensations    metric.Int64Counter
	notificationDrop metric.Int64Counter
}

// NewProvider installs the global meter provider. Disabled config yields a
// no-op provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName(cfg)),
		attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
	))
	if err != nil {
		return nil, fmt.Errorf("metrics resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.StopHook(provider.Shutdown))
	}
	log.Info("metrics exporter configured",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New creates the domain instruments on provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(serviceName(cfg))

	m := &Metrics{}
	instruments := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.reservations, "backoffice_commitment_reservations_total", "Reserve attempts on commitment lines by result."},
		{&m.releases, "backoffice_commitment_releases_total", "Releases on commitment lines; clamped ones hit zero."},
		{&m.invoices, "backoffice_invoices_total", "Invoices created by type."},
		{&m.advances, "backoffice_advance_transitions_total", "Advance request state changes by target status."},
		{&m.sequenceRetries, "backoffice_sequence_retries_total", "Code collisions that forced another attempt."},
		{&m.compensations, "backoffice_compensations_total", "Compensating releases after a failed write."},
		{&m.notificationDrop, "backoffice_notifications_dropped_total", "Notifications that failed delivery."},
	}
	for _, inst := range instruments {
		counter, err := meter.Int64Counter(inst.name, metric.WithDescription(inst.desc))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", inst.name, err)
		}
		*inst.dst = counter
	}
	return m, nil
}

// NewNoop returns instruments bound to a no-op provider.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

func inc(ctx context.Context, counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	counter.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attrs...)...))
}

// RecordReservation counts reserve attempts by result (ok, insufficient, conflict).
func (m *Metrics) RecordReservation(ctx context.Context, result string) {
	if m != nil {
		inc(ctx, m.reservations, label("result", result))
	}
}

func (m *Metrics) RecordRelease(ctx context.Context, clamped bool) {
	result := "ok"
	if clamped {
		result = "clamped"
	}
	if m != nil {
		inc(ctx, m.releases, label("result", result))
	}
}

func (m *Metrics) RecordInvoice(ctx context.Context, invoiceType string) {
	if m != nil {
		inc(ctx, m.invoices, label("invoice_type", invoiceType))
	}
}

func (m *Metrics) RecordAdvanceTransition(ctx context.Context, status string) {
	if m != nil {
		inc(ctx, m.advances, label("status", status))
	}
}

func (m *Metrics) RecordSequenceRetry(ctx context.Context, sequence string) {
	if m != nil {
		inc(ctx, m.sequenceRetries, label("sequence", sequence))
	}
}

func (m *Metrics) RecordCompensation(ctx context.Context, operation string) {
	if m != nil {
		inc(ctx, m.compensations, label("operation", operation))
	}
}

func (m *Metrics) RecordNotificationDropped(ctx context.Context, provider, eventType string) {
	if m != nil {
		inc(ctx, m.notificationDrop, label("provider", provider), label("event_type", eventType))
	}
}

func label(key, value string) attribute.KeyValue {
	return attribute.String(key, strings.TrimSpace(value))
}

func serviceName(cfg Config) string {
	if name := strings.TrimSpace(cfg.ServiceName); name != "" {
		return name
	}
	return "backoffice"
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		var opts []otlpmetrichttp.Option
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// allowedLabelKeys keeps entity ids (supplier, invoice, line) out of labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"result":       {},
	"invoice_type": {},
	"status":       {},
	"sequence":     {},
	"operation":    {},
	"provider":     {},
	"event_type":   {},
}

// FilterAttributes drops labels outside allowedLabelKeys.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; ok {
			filtered = append(filtered, attr)
		}
	}
	return filtered
}
