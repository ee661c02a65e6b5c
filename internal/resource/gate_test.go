package resource

import (
	"context"
	"errors"
	"testing"
	"time"

	"scribe/internal/logging"
	"scribe/internal/testsupport"
)

const mib = 1024 * 1024

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Resources.Enabled = true
	cfg.Resources.MinFreeRAMMB = 2048
	cfg.Resources.MaxSwapUsedMB = 1024
	cfg.Resources.MinFreeDiskMB = 4096
	cfg.Resources.PollIntervalSeconds = 1
	cfg.Resources.MaxWaitSeconds = 60
	gate := NewGate(cfg, logging.NewNop())
	gate.pollInterval = time.Millisecond
	return gate
}

func TestWaitForMemoryPassesWhenFree(t *testing.T) {
	gate := newTestGate(t)
	gate.memInfo = func() (MemorySample, error) {
		return MemorySample{FreeRAMBytes: 8192 * mib}, nil
	}
	if err := gate.WaitForMemory(context.Background()); err != nil {
		t.Fatalf("WaitForMemory failed: %v", err)
	}
}

func TestWaitForMemoryBlocksUntilCleared(t *testing.T) {
	gate := newTestGate(t)
	samples := []MemorySample{
		{FreeRAMBytes: 512 * mib},
		{FreeRAMBytes: 1024 * mib},
		{FreeRAMBytes: 4096 * mib},
	}
	calls := 0
	gate.memInfo = func() (MemorySample, error) {
		sample := samples[calls]
		if calls < len(samples)-1 {
			calls++
		}
		return sample, nil
	}

	if err := gate.WaitForMemory(context.Background()); err != nil {
		t.Fatalf("WaitForMemory failed: %v", err)
	}
	if calls < 2 {
		t.Fatalf("expected gate to poll while blocked, calls = %d", calls)
	}
}

func TestWaitForMemorySwapFailsFast(t *testing.T) {
	gate := newTestGate(t)
	gate.memInfo = func() (MemorySample, error) {
		return MemorySample{FreeRAMBytes: 8192 * mib, SwapUsedBytes: 2048 * mib}, nil
	}
	err := gate.WaitForMemory(context.Background())
	if !errors.Is(err, ErrSwapPressure) {
		t.Fatalf("err = %v, want ErrSwapPressure", err)
	}
}

func TestWaitForMemoryTimesOut(t *testing.T) {
	gate := newTestGate(t)
	gate.maxWait = 5 * time.Millisecond
	gate.memInfo = func() (MemorySample, error) {
		return MemorySample{FreeRAMBytes: 1 * mib}, nil
	}
	err := gate.WaitForMemory(context.Background())
	if !errors.Is(err, ErrMemoryWait) {
		t.Fatalf("err = %v, want ErrMemoryWait", err)
	}
}

func TestWaitForMemoryPollsUntilRecoveryWithoutBudget(t *testing.T) {
	gate := newTestGate(t)
	gate.maxWait = 0
	calls := 0
	gate.memInfo = func() (MemorySample, error) {
		calls++
		if calls < 4 {
			return MemorySample{FreeRAMBytes: 1 * mib}, nil
		}
		return MemorySample{FreeRAMBytes: 4096 * mib}, nil
	}
	if err := gate.WaitForMemory(context.Background()); err != nil {
		t.Fatalf("WaitForMemory: %v", err)
	}
	if calls < 4 {
		t.Fatalf("gate admitted work after %d samples while RAM was low", calls)
	}
}

func TestWaitForMemoryHonorsContext(t *testing.T) {
	gate := newTestGate(t)
	gate.memInfo = func() (MemorySample, error) {
		return MemorySample{FreeRAMBytes: 1 * mib}, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := gate.WaitForMemory(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestCheckDisk(t *testing.T) {
	gate := newTestGate(t)
	gate.statfs = func(string) (uint64, error) {
		return 100 * 1024 * mib, nil
	}
	if err := gate.CheckDisk("/work"); err != nil {
		t.Fatalf("CheckDisk failed: %v", err)
	}

	gate.statfs = func(string) (uint64, error) {
		return 100 * mib, nil
	}
	err := gate.CheckDisk("/work")
	if !errors.Is(err, ErrDiskSpace) {
		t.Fatalf("err = %v, want ErrDiskSpace", err)
	}
}

func TestDisabledGateAdmitsEverything(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Resources.Enabled = false
	gate := NewGate(cfg, logging.NewNop())
	gate.memInfo = func() (MemorySample, error) {
		t.Fatal("disabled gate must not sample memory")
		return MemorySample{}, nil
	}
	if err := gate.WaitForMemory(context.Background()); err != nil {
		t.Fatalf("WaitForMemory failed: %v", err)
	}
	if err := gate.CheckDisk("/nowhere"); err != nil {
		t.Fatalf("CheckDisk failed: %v", err)
	}
}
