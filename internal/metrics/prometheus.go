// SPDX-License-Identifier: AGPL-3.0-or-later
// rtpcast - Stream PCM audio over lossy networks
// Copyright (C) 2025-2026 rtpcast Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// The source code is available at <https://github.com/rtpcast/rtpcast>

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transport and pipeline counters. Registered on the default registry at
// package load; the metrics server exposes them.
var (
	// PacketsReceived counts datagrams read from UDP sockets.
	PacketsReceived = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "rtpcast_packets_received_total",
		Help: "The total number of UDP datagrams received",
	})
	// PacketsSent counts datagrams written to UDP sockets.
	PacketsSent = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "rtpcast_packets_sent_total",
		Help: "The total number of UDP datagrams sent",
	})
	// PacketsRestored counts source packets rebuilt by the FEC decoder.
	PacketsRestored = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "rtpcast_packets_restored_total",
		Help: "The total number of source packets restored by FEC",
	})
	// PacketsDropped counts packets discarded anywhere in the pipeline.
	PacketsDropped = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "rtpcast_packets_dropped_total",
		Help: "The total number of packets dropped, by reason",
	}, []string{"reason"})
	// SessionsActive tracks live receiver sessions.
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{ //nolint:gochecknoglobals
		Name: "rtpcast_sessions_active",
		Help: "The current number of receiver sessions",
	})
	// SessionsTotal counts sessions ever created.
	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "rtpcast_sessions_created_total",
		Help: "The total number of receiver sessions created",
	})
	// BrokenSlots tracks slots latched broken and awaiting unlink.
	BrokenSlots = promauto.NewGauge(prometheus.GaugeOpts{ //nolint:gochecknoglobals
		Name: "rtpcast_broken_slots",
		Help: "The current number of broken slots",
	})
)
