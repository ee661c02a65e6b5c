// Package resource implements the backpressure gate consulted before the
// expensive pipeline stages. RAM shortage blocks the job until memory frees
// up, swap pressure fails the attempt outright, and low disk aborts the run.
package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"

	"scribe/internal/config"
	"scribe/internal/logging"
)

var (
	// ErrSwapPressure indicates swap usage above the configured ceiling.
	// Waiting would only thrash harder, so the attempt fails immediately.
	ErrSwapPressure = errors.New("swap usage above configured ceiling")
	// ErrDiskSpace indicates free disk below the configured floor. The run
	// aborts rather than filling the volume mid-transcription.
	ErrDiskSpace = errors.New("free disk space below configured floor")
	// ErrMemoryWait indicates the RAM wait budget expired before enough
	// memory freed up. The failure is transient and retryable.
	ErrMemoryWait = errors.New("timed out waiting for free memory")
)

// MemorySample reports free RAM and used swap in bytes.
type MemorySample struct {
	FreeRAMBytes  uint64
	SwapUsedBytes uint64
}

// memInfoFunc allows tests to stub memory readings.
type memInfoFunc func() (MemorySample, error)

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (free uint64, err error)

// Gate evaluates resource thresholds before admitting work.
type Gate struct {
	enabled      bool
	minFreeRAM   uint64
	maxSwapUsed  uint64
	minFreeDisk  uint64
	pollInterval time.Duration
	maxWait      time.Duration
	memInfo      memInfoFunc
	statfs       statfsFunc
	logger       *slog.Logger
}

// NewGate builds a gate from the resources configuration section.
func NewGate(cfg *config.Config, logger *slog.Logger) *Gate {
	return &Gate{
		enabled:      cfg.Resources.Enabled,
		minFreeRAM:   uint64(cfg.Resources.MinFreeRAMMB) * 1024 * 1024,
		maxSwapUsed:  uint64(cfg.Resources.MaxSwapUsedMB) * 1024 * 1024,
		minFreeDisk:  uint64(cfg.Resources.MinFreeDiskMB) * 1024 * 1024,
		pollInterval: time.Duration(cfg.Resources.PollIntervalSeconds) * time.Second,
		maxWait:      time.Duration(cfg.Resources.MaxWaitSeconds) * time.Second,
		memInfo:      realMemInfo,
		statfs:       realStatfs,
		logger:       logging.NewComponentLogger(logger, "resource-gate"),
	}
}

// WaitForMemory blocks until free RAM clears the floor, polling for as long
// as it takes unless an opt-in wait budget expires. Swap pressure fails fast
// with ErrSwapPressure.
func (g *Gate) WaitForMemory(ctx context.Context) error {
	if g == nil || !g.enabled {
		return nil
	}

	deadline := time.Time{}
	if g.maxWait > 0 {
		deadline = time.Now().Add(g.maxWait)
	}

	waited := false
	for {
		sample, err := g.memInfo()
		if err != nil {
			return fmt.Errorf("read memory info: %w", err)
		}

		if g.maxSwapUsed > 0 && sample.SwapUsedBytes > g.maxSwapUsed {
			return fmt.Errorf("%w: %d MiB used", ErrSwapPressure, sample.SwapUsedBytes/(1024*1024))
		}
		if sample.FreeRAMBytes >= g.minFreeRAM {
			if waited {
				g.logger.Info("memory pressure cleared",
					logging.Uint64("free_ram_mb", sample.FreeRAMBytes/(1024*1024)))
			}
			return nil
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return fmt.Errorf("%w: %d MiB free, need %d MiB",
				ErrMemoryWait, sample.FreeRAMBytes/(1024*1024), g.minFreeRAM/(1024*1024))
		}

		if !waited {
			g.logger.Info("waiting for free memory",
				logging.Uint64("free_ram_mb", sample.FreeRAMBytes/(1024*1024)),
				logging.Uint64("need_mb", g.minFreeRAM/(1024*1024)))
			waited = true
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.pollInterval):
		}
	}
}

// CheckDisk verifies free space on the volume backing path.
func (g *Gate) CheckDisk(path string) error {
	if g == nil || !g.enabled {
		return nil
	}
	free, err := g.statfs(path)
	if err != nil {
		return fmt.Errorf("statfs %s: %w", path, err)
	}
	if free < g.minFreeDisk {
		return fmt.Errorf("%w: %d MiB free on %s, need %d MiB",
			ErrDiskSpace, free/(1024*1024), path, g.minFreeDisk/(1024*1024))
	}
	return nil
}

// ReadMemory samples current free RAM and swap usage. Model auto-selection
// feeds this into its decision table.
func ReadMemory() (MemorySample, error) {
	return realMemInfo()
}

// FreeDisk reports free bytes on the volume backing path.
func FreeDisk(path string) (uint64, error) {
	return realStatfs(path)
}

func realMemInfo() (MemorySample, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return MemorySample{}, err
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	free := (uint64(info.Freeram) + uint64(info.Bufferram)) * unit
	swapUsed := (uint64(info.Totalswap) - uint64(info.Freeswap)) * unit
	return MemorySample{FreeRAMBytes: free, SwapUsedBytes: swapUsed}, nil
}

func realStatfs(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
