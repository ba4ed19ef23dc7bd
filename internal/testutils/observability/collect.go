package observability

import (
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type ResourceMetrics struct {
	metricdata.ResourceMetrics
}

// Find returns metric with given name from the instrumentation scope.
func (rm *ResourceMetrics) Find(scope, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != scope {
			continue
		}
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

/*
Int64Sum returns sum of all data points of the Int64 counter or gauge with
given name, zero when the metric is not found.
*/
func (rm *ResourceMetrics) Int64Sum(scope, name string) int64 {
	m, ok := rm.Find(scope, name)
	if !ok {
		return 0
	}
	var total int64
	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		for _, dp := range data.DataPoints {
			total += dp.Value
		}
	case metricdata.Gauge[int64]:
		for _, dp := range data.DataPoints {
			total += dp.Value
		}
	}
	return total
}
