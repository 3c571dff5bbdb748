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
	"time"
)

// NewNoopMetrics returns a MetricHandle that records nothing, for use when
// metrics collection is disabled.
func NewNoopMetrics() MetricHandle {
	var n noopMetrics
	return &n
}

type noopMetrics struct{}

func (*noopMetrics) OpsCount(_ context.Context, _ int64, _ []MetricAttr)              {}
func (*noopMetrics) OpsLatency(_ context.Context, _ time.Duration, _ []MetricAttr)     {}
func (*noopMetrics) OpsErrorCount(_ context.Context, _ int64, _ []MetricAttr)          {}
func (*noopMetrics) NodesAllocatedCount(_ context.Context, _ int64)                    {}
func (*noopMetrics) BlocksAllocatedCount(_ context.Context, _ int64)                   {}
func (*noopMetrics) StoreGrowCount(_ context.Context, _ int64)                         {}
