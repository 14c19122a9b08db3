package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPacer_SlotsSpacedByInterval(t *testing.T) {
	interval := 20 * time.Millisecond
	p := NewPacer(interval)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}
	elapsed := time.Since(start)

	// Four slots: the first is immediate, the rest are spaced.
	if want := 3 * interval; elapsed < want {
		t.Errorf("4 slots took %v, want at least %v", elapsed, want)
	}
}

func TestPacer_FirstSlotImmediate(t *testing.T) {
	p := NewPacer(time.Second)

	start := time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("first slot should be immediate, waited %v", elapsed)
	}
}

func TestPacer_ZeroIntervalDisablesPacing(t *testing.T) {
	p := NewPacer(0)

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("disabled pacer should not block, took %v", elapsed)
	}
}

func TestPacer_ContextCancelled(t *testing.T) {
	p := NewPacer(time.Hour)

	// Burn the immediate slot.
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := p.Wait(ctx); err == nil {
		t.Error("expected context error for blocked slot")
	}
}

func TestPacer_ConcurrentCallersAllGetSlots(t *testing.T) {
	interval := 5 * time.Millisecond
	p := NewPacer(interval)

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)

	start := time.Now()
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = p.Wait(context.Background())
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d failed: %v", i, err)
		}
	}
	if want := time.Duration(callers-1) * interval; elapsed < want {
		t.Errorf("%d concurrent callers finished in %v, want at least %v", callers, elapsed, want)
	}
}
