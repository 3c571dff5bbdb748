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
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// ShutdownFn releases resources owned by a component on process exit.
type ShutdownFn func(ctx context.Context) error

// The default time buckets for latency metrics. The unit can change for
// different metrics: one might record microseconds, another milliseconds.
var defaultLatencyDistribution = metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5, 6, 8, 10, 13, 16, 20, 25, 30, 40, 50, 65, 80, 100, 130, 160, 200, 250, 300, 400, 500, 650, 800, 1000, 2000, 5000, 10000, 20000, 50000, 100000)

// JoinShutdownFunc combines the provided shutdown functions into a single
// function that runs all of them and joins their errors.
func JoinShutdownFunc(shutdownFns ...ShutdownFn) ShutdownFn {
	return func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFns {
			if fn == nil {
				continue
			}
			err = errors.Join(err, fn(ctx))
		}
		return err
	}
}

// MetricAttr represents one attribute attached to a metric measurement.
type MetricAttr struct {
	Key, Value string
}

func (a *MetricAttr) String() string {
	return fmt.Sprintf("Key: %s, Value: %s", a.Key, a.Value)
}

// OpsMetricHandle records Core API call counts, latency, and errors, one
// measurement per operation name (see the Op* constants).
type OpsMetricHandle interface {
	OpsCount(ctx context.Context, inc int64, attrs []MetricAttr)
	OpsLatency(ctx context.Context, latency time.Duration, attrs []MetricAttr)
	OpsErrorCount(ctx context.Context, inc int64, attrs []MetricAttr)
}

// AllocMetricHandle records allocator activity: how many nodes and blocks
// have been handed out, and how many times the backing store has grown.
type AllocMetricHandle interface {
	NodesAllocatedCount(ctx context.Context, inc int64)
	BlocksAllocatedCount(ctx context.Context, inc int64)
	StoreGrowCount(ctx context.Context, inc int64)
}

// MetricHandle is the full instrumentation surface a Store/FS wraps every
// operation with.
type MetricHandle interface {
	OpsMetricHandle
	AllocMetricHandle
}
