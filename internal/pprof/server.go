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

package pprof

import (
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/rtpcast/rtpcast/internal/config"
)

const readTimeout = 3 * time.Second

// CreatePProfServer serves the pprof endpoints when enabled in the config.
func CreatePProfServer(cfg *config.Config) {
	if !cfg.PProf.Enabled {
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.PProf.Bind, cfg.PProf.Port),
		Handler:           mux,
		ReadHeaderTimeout: readTimeout,
	}
	if err := server.ListenAndServe(); err != nil {
		panic(err)
	}
}
