package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("result", "ok"),
		attribute.String("supplier_id", "456"),
		attribute.String("invoice_type", "supplier"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "result" && attrs[1].Key != "result" {
		t.Fatalf("expected result to be retained")
	}
	if attrs[0].Key != "invoice_type" && attrs[1].Key != "invoice_type" {
		t.Fatalf("expected invoice_type to be retained")
	}
}

func TestRecordReservationExports(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(Config{ServiceName: "test"}, provider)
	require.NoError(t, err)

	m.RecordReservation(context.Background(), "ok")
	m.RecordReservation(context.Background(), "ok")
	m.RecordReservation(context.Background(), "insufficient")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, md := range scope.Metrics {
			if md.Name != "backoffice_commitment_reservations_total" {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	assert.Equal(t, int64(3), total)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordInvoice(context.Background(), "client")
	m.RecordRelease(context.Background(), true)
}
