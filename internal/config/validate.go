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

import "errors"

var (
	// ErrInvalidLogLevel indicates that the provided log level is not valid.
	ErrInvalidLogLevel = errors.New("invalid log level provided")
	// ErrNoEndpoints indicates that neither receiver nor sender is enabled.
	ErrNoEndpoints = errors.New("neither receiver nor sender is enabled")
	// ErrSourceRequired indicates that a source endpoint URI is required.
	ErrSourceRequired = errors.New("source endpoint uri is required")
	// ErrInvalidBlockLength indicates an invalid FEC block geometry.
	ErrInvalidBlockLength = errors.New("invalid FEC block length provided")
	// ErrInvalidMetricsPort indicates that the provided metrics server port is not valid.
	ErrInvalidMetricsPort = errors.New("invalid metrics server port provided")
	// ErrInvalidPProfPort indicates that the provided PProf server port is not valid.
	ErrInvalidPProfPort = errors.New("invalid PProf server port provided")
)

// Validate checks the configuration for coherence.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return ErrInvalidLogLevel
	}

	if !c.Receiver.Enabled && !c.Sender.Enabled {
		return ErrNoEndpoints
	}

	if c.Receiver.Enabled && c.Receiver.Source == "" {
		return ErrSourceRequired
	}

	if c.Sender.Enabled {
		if c.Sender.Source == "" {
			return ErrSourceRequired
		}
		if c.Sender.SourceBlockLength <= 0 || c.Sender.RepairBlockLength < 0 {
			return ErrInvalidBlockLength
		}
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return ErrInvalidMetricsPort
	}

	if c.PProf.Enabled && (c.PProf.Port <= 0 || c.PProf.Port > 65535) {
		return ErrInvalidPProfPort
	}

	return nil
}
