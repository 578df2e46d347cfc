// SPDX-License-Identifier: MIT

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestEmitDispatchObs_RecordsCounterWithAttributes(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	defer otel.SetMeterProvider(noop.NewMeterProvider())

	EmitDispatchObs(context.Background(), "w1", "transcode", DispatchClaimed)
	EmitDispatchObs(context.Background(), "w1", "transcode", DispatchClaimed)
	EmitDispatchObs(context.Background(), "w2", "", DispatchEmpty)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	var found bool
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if m.Name != "dashboard_dispatch_total" {
			continue
		}
		found = true
		sum, ok := m.Data.(metricdata.Sum[int64])
		require.True(t, ok, "dispatch counter must be an int64 sum")

		total := int64(0)
		for _, dp := range sum.DataPoints {
			total += dp.Value
			if outcome, ok := dp.Attributes.Value(attribute.Key("outcome")); ok && outcome.AsString() == DispatchClaimed {
				assert.Equal(t, int64(2), dp.Value, "two claimed dispatches recorded")
			}
		}
		assert.Equal(t, int64(3), total)
	}
	require.True(t, found, "dashboard_dispatch_total must be emitted")
}

func TestEmitDispatchObs_NoPanicWithoutProvider(t *testing.T) {
	otel.SetMeterProvider(noop.NewMeterProvider())
	// Must be safe with the no-op provider installed (production default
	// until cmd/dashboard wires an exporter).
	EmitDispatchObs(context.Background(), "w1", "cleanup", DispatchError)
}
