package ratelimiter

import (
	"sync"
	"testing"
	"time"
)

func TestLimiter_Reserve(t *testing.T) {
	tests := []struct {
		name           string
		bytesPerSecond int64
		reservations   []int
		wantZeroWait   []bool // whether each Reserve must return 0
	}{
		{
			name:           "unlimited rate never waits",
			bytesPerSecond: 0,
			reservations:   []int{1024, 1 << 20, 1 << 30},
			wantZeroWait:   []bool{true, true, true},
		},
		{
			name:           "first reservation is free",
			bytesPerSecond: 1000,
			reservations:   []int{1000},
			wantZeroWait:   []bool{true},
		},
		{
			name:           "second reservation pays for the first",
			bytesPerSecond: 1000,
			reservations:   []int{1000, 1000},
			wantZeroWait:   []bool{true, false},
		},
		{
			name:           "zero bytes cost nothing",
			bytesPerSecond: 1000,
			reservations:   []int{0, 0},
			wantZeroWait:   []bool{true, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.bytesPerSecond)
			for i, n := range tt.reservations {
				wait := limiter.Reserve(n)
				if tt.wantZeroWait[i] && wait != 0 {
					t.Errorf("reservation %d: Reserve(%d) = %v, want 0", i, n, wait)
				}
				if !tt.wantZeroWait[i] && wait <= 0 {
					t.Errorf("reservation %d: Reserve(%d) = %v, want > 0", i, n, wait)
				}
			}
		})
	}
}

func TestLimiter_WaitScalesWithBytes(t *testing.T) {
	limiter := New(1000)

	limiter.Reserve(500) // free, but books 500ms of debt
	wait := limiter.Reserve(1)
	if wait < 400*time.Millisecond || wait > 500*time.Millisecond {
		t.Errorf("Reserve(1) after 500 bytes at 1000 B/s = %v, want ~500ms", wait)
	}

	limiter.Reserve(1000)
	wait = limiter.Reserve(1)
	if wait < 1400*time.Millisecond || wait > 1510*time.Millisecond {
		t.Errorf("accumulated wait = %v, want ~1.5s", wait)
	}
}

func TestLimiter_NoBurstAfterIdle(t *testing.T) {
	limiter := New(1 << 20)

	time.Sleep(20 * time.Millisecond)
	limiter.Reserve(1 << 20) // free, books 1s of debt
	wait := limiter.Reserve(1)
	if wait < 900*time.Millisecond {
		t.Errorf("idle time accrued credit: wait = %v, want ~1s", wait)
	}
}

func TestLimiter_Reset(t *testing.T) {
	limiter := New(100)
	limiter.Reserve(1000) // books 10s of debt

	limiter.Reset()
	if wait := limiter.Reserve(1); wait != 0 {
		t.Errorf("Reserve() after Reset() = %v, want 0", wait)
	}
}

func TestLimiter_NilIsUnlimited(t *testing.T) {
	var limiter *Limiter
	if wait := limiter.Reserve(1 << 30); wait != 0 {
		t.Errorf("nil limiter Reserve() = %v, want 0", wait)
	}
}

func TestLimiter_ConcurrentReservationsShareBudget(t *testing.T) {
	limiter := New(1000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var total time.Duration
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wait := limiter.Reserve(1000)
			mu.Lock()
			total += wait
			mu.Unlock()
		}()
	}
	wg.Wait()

	// 10 KB at 1000 B/s books ~10s of debt; the reservations together
	// must have been told to cover at least the bulk of it.
	if total < 8*time.Second {
		t.Errorf("combined wait = %v, want at least 8s", total)
	}
}
