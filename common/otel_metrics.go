// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// FSOpKey annotates the Core API operation processed.
	FSOpKey = "fs_op"

	// FSErrCategoryKey reduces the cardinality of errors by grouping them.
	FSErrCategoryKey = "fs_error_category"
)

var (
	fsOpsMeter = otel.Meter("fs_op")
	allocMeter = otel.Meter("alloc")

	fsOpsAttributeSet              sync.Map
	fsOpsErrorCategoryAttributeSet sync.Map
)

func loadOrStoreAttributeOption(mp *sync.Map, key string, attrSetGenFunc func() attribute.Set) metric.MeasurementOption {
	attrSet, ok := mp.Load(key)
	if ok {
		return attrSet.(metric.MeasurementOption)
	}
	v, _ := mp.LoadOrStore(key, metric.WithAttributeSet(attrSetGenFunc()))
	return v.(metric.MeasurementOption)
}

func attrSetKey(attrs []MetricAttr) string {
	var key string
	for _, a := range attrs {
		key += a.Key + "=" + a.Value + ";"
	}
	return key
}

func toAttributeSet(attrs []MetricAttr) attribute.Set {
	kvs := make([]attribute.KeyValue, len(attrs))
	for i, a := range attrs {
		kvs[i] = attribute.String(a.Key, a.Value)
	}
	return attribute.NewSet(kvs...)
}

func getOpsAttributeSet(attrs []MetricAttr) metric.MeasurementOption {
	return loadOrStoreAttributeOption(&fsOpsAttributeSet, attrSetKey(attrs), func() attribute.Set { return toAttributeSet(attrs) })
}

func getOpsErrorAttributeSet(attrs []MetricAttr) metric.MeasurementOption {
	return loadOrStoreAttributeOption(&fsOpsErrorCategoryAttributeSet, attrSetKey(attrs), func() attribute.Set { return toAttributeSet(attrs) })
}

// otelMetrics maintains the metrics computed while operating an *mmapfs.FS.
type otelMetrics struct {
	fsOpsCount      metric.Int64Counter
	fsOpsErrorCount metric.Int64Counter
	fsOpsLatency    metric.Float64Histogram

	nodesAllocatedCount  metric.Int64Counter
	blocksAllocatedCount metric.Int64Counter
	storeGrowCount       metric.Int64Counter
}

func (o *otelMetrics) OpsCount(ctx context.Context, inc int64, attrs []MetricAttr) {
	o.fsOpsCount.Add(ctx, inc, getOpsAttributeSet(attrs))
}

func (o *otelMetrics) OpsLatency(ctx context.Context, latency time.Duration, attrs []MetricAttr) {
	o.fsOpsLatency.Record(ctx, float64(latency.Microseconds()), getOpsAttributeSet(attrs))
}

func (o *otelMetrics) OpsErrorCount(ctx context.Context, inc int64, attrs []MetricAttr) {
	o.fsOpsErrorCount.Add(ctx, inc, getOpsErrorAttributeSet(attrs))
}

func (o *otelMetrics) NodesAllocatedCount(ctx context.Context, inc int64) {
	o.nodesAllocatedCount.Add(ctx, inc)
}

func (o *otelMetrics) BlocksAllocatedCount(ctx context.Context, inc int64) {
	o.blocksAllocatedCount.Add(ctx, inc)
}

func (o *otelMetrics) StoreGrowCount(ctx context.Context, inc int64) {
	o.storeGrowCount.Add(ctx, inc)
}

// NewOTelMetrics builds an OpenTelemetry-backed MetricHandle, exported
// through whatever MeterProvider the process has installed (typically the
// Prometheus exporter wired up at startup).
func NewOTelMetrics() (MetricHandle, error) {
	fsOpsCount, err1 := fsOpsMeter.Int64Counter("fs/ops_count", metric.WithDescription("The cumulative number of Core API operations processed."))
	fsOpsLatency, err2 := fsOpsMeter.Float64Histogram("fs/ops_latency", metric.WithDescription("The cumulative distribution of Core API operation latencies"), metric.WithUnit("us"),
		defaultLatencyDistribution)
	fsOpsErrorCount, err3 := fsOpsMeter.Int64Counter("fs/ops_error_count", metric.WithDescription("The cumulative number of errors returned by Core API operations."))

	nodesAllocatedCount, err4 := allocMeter.Int64Counter("alloc/nodes_allocated_count", metric.WithDescription("The cumulative number of inode slots allocated."))
	blocksAllocatedCount, err5 := allocMeter.Int64Counter("alloc/blocks_allocated_count", metric.WithDescription("The cumulative number of blocks allocated."))
	storeGrowCount, err6 := allocMeter.Int64Counter("alloc/store_grow_count", metric.WithDescription("The cumulative number of times the backing store has grown."))

	if err := errors.Join(err1, err2, err3, err4, err5, err6); err != nil {
		return nil, err
	}

	return &otelMetrics{
		fsOpsCount:           fsOpsCount,
		fsOpsErrorCount:      fsOpsErrorCount,
		fsOpsLatency:         fsOpsLatency,
		nodesAllocatedCount:  nodesAllocatedCount,
		blocksAllocatedCount: blocksAllocatedCount,
		storeGrowCount:       storeGrowCount,
	}, nil
}
