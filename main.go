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

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/USA-RedDragon/configulator"
	"github.com/rtpcast/rtpcast/internal/cmd"
	"github.com/rtpcast/rtpcast/internal/config"
)

// https://goreleaser.com/cookbooks/using-main.version/
//
//nolint:golint,gochecknoglobals
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := cmd.NewCommand(version, commit)

	c := configulator.New[config.Config]().
		WithPFlags(rootCmd.Flags(), nil).
		WithEnvironmentVariables(&configulator.EnvironmentVariableOptions{
			Separator: "__",
		})

	if err := c.DefineFlags(); err != nil {
		slog.Error("Failed to define flags", "error", err)
		os.Exit(1)
	}

	rootCmd.SetContext(c.WithContext(context.Background()))

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
