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

package config

// Config stores the application configuration.
type Config struct {
	LogLevel LogLevel       `name:"log-level" description:"Logging level: debug, info, warn, error" default:"info"`
	Receiver ReceiverConfig `name:"receiver"`
	Sender   SenderConfig   `name:"sender"`
	Metrics  MetricsConfig  `name:"metrics"`
	PProf    PProfConfig    `name:"pprof"`
}

// ReceiverConfig configures the receiving side.
type ReceiverConfig struct {
	Enabled bool   `name:"enabled" description:"Run a receiver" default:"false"`
	Source  string `name:"source" description:"Source endpoint URI to bind, e.g. rtp+rs8m://0.0.0.0:10001"`
	Repair  string `name:"repair" description:"Repair endpoint URI to bind, e.g. rs8m://0.0.0.0:10002"`
	Control string `name:"control" description:"Control endpoint URI to bind, e.g. rtcp://0.0.0.0:10003"`
	Output  string `name:"output" description:"Output I/O URI, e.g. file:./capture.pcm or file:-" default:"file:-"`
	// SessionTimeoutMs removes a session after this long without packets.
	SessionTimeoutMs int `name:"session-timeout-ms" description:"No-playback session timeout in milliseconds" default:"2000"`
}

// SenderConfig configures the sending side.
type SenderConfig struct {
	Enabled bool   `name:"enabled" description:"Run a sender" default:"false"`
	Source  string `name:"source" description:"Source endpoint URI to connect, e.g. rtp+rs8m://192.168.0.1:10001"`
	Repair  string `name:"repair" description:"Repair endpoint URI to connect, e.g. rs8m://192.168.0.1:10002"`
	Control string `name:"control" description:"Control endpoint URI to connect, e.g. rtcp://192.168.0.1:10003"`
	Input   string `name:"input" description:"Input I/O URI, e.g. file:./audio.pcm or file:-" default:"file:-"`
	// SourceBlockLength is the number of source packets per FEC block.
	SourceBlockLength int `name:"fec-block-source" description:"Source packets per FEC block" default:"10"`
	// RepairBlockLength is the number of repair packets per FEC block.
	RepairBlockLength int `name:"fec-block-repair" description:"Repair packets per FEC block" default:"5"`
	// PacketDurationSamples is the per-packet length in samples per channel.
	PacketDurationSamples int `name:"packet-duration" description:"Samples per channel carried by one packet" default:"320"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `name:"enabled" description:"Serve prometheus metrics" default:"false"`
	Bind    string `name:"bind" description:"Metrics server bind address" default:"0.0.0.0"`
	Port    int    `name:"port" description:"Metrics server port" default:"9100"`
}

// PProfConfig configures the pprof endpoint.
type PProfConfig struct {
	Enabled bool   `name:"enabled" description:"Serve pprof endpoints" default:"false"`
	Bind    string `name:"bind" description:"PProf server bind address" default:"127.0.0.1"`
	Port    int    `name:"port" description:"PProf server port" default:"6060"`
}
