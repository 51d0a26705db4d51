// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
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

package snapshotter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	collectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cns_agent_collection_duration_seconds",
			Help:    "Time taken to run one batch of domain collectors",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	collectorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cns_agent_collector_duration_seconds",
			Help:    "Time taken by individual domain collectors",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"domain"},
	)

	collectorTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cns_agent_collector_total",
			Help: "Total number of domain collections",
		},
		[]string{"domain", "status"}, // ok or stale
	)
)
