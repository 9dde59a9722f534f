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

// LogLevel represents the logging level for the application.
type LogLevel string

const (
	// LogLevelDebug is the debug logging level, providing detailed information.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the informational logging level, providing general information.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn is the warning logging level, indicating potential issues.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError is the error logging level, indicating serious issues.
	LogLevelError LogLevel = "error"
)
