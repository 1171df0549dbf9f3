package metrics

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CacheSizeFunc reports the current number of entries of one cache.
type CacheSizeFunc func() int

// RegisterCacheGauges exposes the entry counts of the key caches and the DEK registry as
// one observable gauge labelled by cache name. Sizes are read on every collection.
func RegisterCacheGauges(
	meterProvider metric.MeterProvider,
	namespace string,
	caches map[string]CacheSizeFunc,
) (metric.Registration, error) {
	meter := meterProvider.Meter(namespace)

	gauge, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_cache_entries", namespace),
		metric.WithDescription("Number of entries held by each key cache"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache gauge: %w", err)
	}

	names := slices.Sorted(maps.Keys(caches))
	registration, err := meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		for _, name := range names {
			o.ObserveInt64(gauge, int64(caches[name]()), metric.WithAttributes(attribute.String("cache", name)))
		}
		return nil
	}, gauge)
	if err != nil {
		return nil, fmt.Errorf("failed to register cache gauge callback: %w", err)
	}

	return registration, nil
}
