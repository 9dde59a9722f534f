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

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/USA-RedDragon/configulator"
	"github.com/lmittmann/tint"
	"github.com/rtpcast/rtpcast/internal/address"
	"github.com/rtpcast/rtpcast/internal/audio"
	"github.com/rtpcast/rtpcast/internal/config"
	"github.com/rtpcast/rtpcast/internal/fec"
	"github.com/rtpcast/rtpcast/internal/metrics"
	"github.com/rtpcast/rtpcast/internal/node"
	"github.com/rtpcast/rtpcast/internal/pipeline"
	"github.com/rtpcast/rtpcast/internal/pprof"
	"github.com/rtpcast/rtpcast/internal/rtp"
	"github.com/spf13/cobra"
	"github.com/ztrue/shutdown"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// frameChunk is the number of samples moved per pump iteration.
const frameChunk = 1024

// pumpInterval paces the receiver output pump.
const pumpInterval = 10 * time.Millisecond

// NewCommand creates the root command.
func NewCommand(version, commit string) *cobra.Command {
	return &cobra.Command{
		Use:     "rtpcast",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		RunE:              runRoot,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
}

func runRoot(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	fmt.Printf("rtpcast - %s (%s)\n", cmd.Annotations["version"], cmd.Annotations["commit"])

	c, err := configulator.FromContext[config.Config](ctx)
	if err != nil {
		return fmt.Errorf("failed to get config from context: %w", err)
	}

	cfg, err := c.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var logger *slog.Logger
	switch cfg.LogLevel {
	case config.LogLevelDebug:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug}))
	case config.LogLevelInfo:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	case config.LogLevelWarn:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelWarn}))
	case config.LogLevelError:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelError}))
	}
	slog.SetDefault(logger)

	go metrics.CreateMetricsServer(&cfg)
	go pprof.CreatePProfServer(&cfg)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, runCtx := errgroup.WithContext(runCtx)

	if cfg.Receiver.Enabled {
		if err := startReceiver(runCtx, g, &cfg); err != nil {
			return err
		}
	}

	if cfg.Sender.Enabled {
		if err := startSender(runCtx, g, &cfg); err != nil {
			return err
		}
	}

	shutdown.Add(func() {
		slog.Info("Shutting down")
		cancel()
	})

	go shutdown.Listen(syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func startReceiver(ctx context.Context, g *errgroup.Group, cfg *config.Config) error {
	recv := node.NewReceiver(pipeline.ReceiverSessionConfig{
		Timeout: time.Duration(cfg.Receiver.SessionTimeoutMs) * time.Millisecond,
	})

	const slot = node.SlotIndex(0)

	endpoints := []struct {
		iface address.Interface
		uri   string
	}{
		{address.IfaceAudioSource, cfg.Receiver.Source},
		{address.IfaceAudioRepair, cfg.Receiver.Repair},
		{address.IfaceAudioControl, cfg.Receiver.Control},
	}

	for _, e := range endpoints {
		if e.uri == "" {
			continue
		}
		uri, err := address.ParseNetworkUri(e.uri)
		if err != nil {
			recv.Close()
			return fmt.Errorf("failed to parse %s uri: %w", e.iface, err)
		}
		if err := recv.Bind(slot, e.iface, uri); err != nil {
			recv.Close()
			return fmt.Errorf("failed to bind %s endpoint: %w", e.iface, err)
		}
		slog.Info("Receiver listening", "iface", e.iface.String(), "uri", uri.String())
	}

	out, closeOut, err := openOutput(cfg.Receiver.Output)
	if err != nil {
		recv.Close()
		return err
	}

	g.Go(func() error {
		defer recv.Close()
		defer closeOut()

		ticker := time.NewTicker(pumpInterval)
		defer ticker.Stop()

		buf := make([]byte, frameChunk*2)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				samples := recv.ReadFrame(frameChunk)
				if len(samples) == 0 {
					continue
				}
				audio.EncodeS16BE(buf[:len(samples)*2], samples)
				if _, err := out.Write(buf[:len(samples)*2]); err != nil {
					return fmt.Errorf("failed to write output: %w", err)
				}
			}
		}
	})

	return nil
}

func startSender(ctx context.Context, g *errgroup.Group, cfg *config.Config) error {
	sourceURI, err := address.ParseNetworkUri(cfg.Sender.Source)
	if err != nil {
		return fmt.Errorf("failed to parse source uri: %w", err)
	}

	attrs := address.LookupProtocol(sourceURI.Proto())
	if attrs == nil {
		return node.ErrBadURI
	}

	enc, _ := rtp.LookupEncoding(rtp.PayloadTypeL16Stereo)

	send := node.NewSender(pipeline.SenderSlotConfig{
		PayloadType: rtp.PayloadTypeL16Stereo,
		FECScheme:   attrs.FECScheme,
		FECWriter: fec.BlockWriterConfig{
			SourceBlockLength: cfg.Sender.SourceBlockLength,
			RepairBlockLength: cfg.Sender.RepairBlockLength,
		},
		PacketDuration: cfg.Sender.PacketDurationSamples,
	})

	const slot = node.SlotIndex(0)

	if err := send.Connect(slot, address.IfaceAudioSource, sourceURI); err != nil {
		send.Close()
		return fmt.Errorf("failed to connect source endpoint: %w", err)
	}

	if cfg.Sender.Repair != "" {
		repairURI, err := address.ParseNetworkUri(cfg.Sender.Repair)
		if err != nil {
			send.Close()
			return fmt.Errorf("failed to parse repair uri: %w", err)
		}
		if err := send.Connect(slot, address.IfaceAudioRepair, repairURI); err != nil {
			send.Close()
			return fmt.Errorf("failed to connect repair endpoint: %w", err)
		}
	}

	if cfg.Sender.Control != "" {
		controlURI, err := address.ParseNetworkUri(cfg.Sender.Control)
		if err != nil {
			send.Close()
			return fmt.Errorf("failed to parse control uri: %w", err)
		}
		if err := send.Connect(slot, address.IfaceAudioControl, controlURI); err != nil {
			send.Close()
			return fmt.Errorf("failed to connect control endpoint: %w", err)
		}
	}

	in, closeIn, err := openInput(cfg.Sender.Input)
	if err != nil {
		send.Close()
		return err
	}

	// Pace outbound frames to the sample clock.
	limiter := rate.NewLimiter(rate.Limit(enc.SampleRate*enc.Channels), frameChunk)

	g.Go(func() error {
		defer send.Close()
		defer closeIn()

		buf := make([]byte, frameChunk*2)
		for {
			if err := limiter.WaitN(ctx, frameChunk); err != nil {
				return err
			}

			n, err := io.ReadFull(in, buf)
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					slog.Info("Sender input finished")
					return nil
				}
				return fmt.Errorf("failed to read input: %w", err)
			}

			if err := send.WriteFrame(audio.DecodeS16BE(buf[:n])); err != nil {
				return fmt.Errorf("failed to write frame: %w", err)
			}
		}
	})

	return nil
}

func openInput(uriStr string) (io.Reader, func(), error) {
	uri, err := address.ParseIoUri(uriStr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse input uri: %w", err)
	}

	if uri.IsSpecialFile() {
		return os.Stdin, func() {}, nil
	}

	if !uri.IsFile() {
		// Sound-card backends live outside this toolkit.
		return nil, nil, fmt.Errorf("unsupported input scheme %q", uri.Scheme())
	}

	f, err := os.Open(uri.Path())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func openOutput(uriStr string) (io.Writer, func(), error) {
	uri, err := address.ParseIoUri(uriStr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse output uri: %w", err)
	}

	if uri.IsSpecialFile() {
		return os.Stdout, func() {}, nil
	}

	if !uri.IsFile() {
		return nil, nil, fmt.Errorf("unsupported output scheme %q", uri.Scheme())
	}

	f, err := os.Create(uri.Path())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
