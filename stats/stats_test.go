package stats

import (
	"sync"
	"testing"
	"time"
)

// TestFormatLine pins the exact stdout wording, including the zero
// heartbeat form.
func TestFormatLine(t *testing.T) {
	cases := []struct {
		r, d uint64
		want string
	}{
		{0, 0, "received 0 numbers, 0 duplicates\n"},
		{3, 1, "received 3 numbers, 1 duplicates\n"},
		{1000000, 999999, "received 1000000 numbers, 999999 duplicates\n"},
	}
	buf := make([]byte, 0, 64)
	for _, tc := range cases {
		buf = formatLine(buf, tc.r, tc.d)
		if string(buf) != tc.want {
			t.Errorf("formatLine(%d, %d) = %q, want %q", tc.r, tc.d, buf, tc.want)
		}
	}
}

// TestUpdateAndFlush verifies the swap-and-zero: flush folds the period
// pair into the totals and resets the period for the next window.
func TestUpdateAndFlush(t *testing.T) {
	p := NewPrinter()

	p.Update(3, 1)
	p.Update(2, 0)
	p.FlushForTest()

	if r, d := p.Totals(); r != 5 || d != 1 {
		t.Fatalf("totals = (%d, %d), want (5, 1)", r, d)
	}

	// A fresh period starts from zero.
	p.Update(4, 4)
	p.FlushForTest()
	if r, d := p.Totals(); r != 9 || d != 5 {
		t.Fatalf("totals = (%d, %d), want (9, 5)", r, d)
	}
}

// TestZeroUpdateIsFree confirms the empty-batch fast path changes nothing.
func TestZeroUpdateIsFree(t *testing.T) {
	p := NewPrinter()
	p.Update(0, 0)
	p.FlushForTest()
	if r, d := p.Totals(); r != 0 || d != 0 {
		t.Fatalf("totals = (%d, %d), want (0, 0)", r, d)
	}
}

// TestTotalsOnlyGrow runs several flush cycles and checks monotonicity of
// the lifetime counters.
func TestTotalsOnlyGrow(t *testing.T) {
	p := NewPrinter()
	var lastR, lastD uint64
	for i := 0; i < 10; i++ {
		p.Update(uint64(i), uint64(i/2))
		p.FlushForTest()
		r, d := p.Totals()
		if r < lastR || d < lastD {
			t.Fatalf("totals regressed: (%d,%d) after (%d,%d)", r, d, lastR, lastD)
		}
		lastR, lastD = r, d
	}
}

// TestDuplicatesExceedingReceivedPanics enforces the counter invariant at
// the boundary: a batch can never contain more duplicates than arrivals.
func TestDuplicatesExceedingReceivedPanics(t *testing.T) {
	p := NewPrinter()
	defer func() {
		if recover() == nil {
			t.Fatal("Update(1, 2) should panic")
		}
	}()
	p.Update(1, 2)
}

// TestConcurrentUpdates hammers Update from several goroutines while the
// flusher swaps; the folded totals must conserve every count. The journal
// consumer is the only production caller, but the mutex contract is wider
// and cheap to prove.
func TestConcurrentUpdates(t *testing.T) {
	p := NewPrinter()
	const workers = 4
	const perWorker = 10000

	var wg sync.WaitGroup
	stop := make(chan struct{})
	go func() { // concurrent flusher, paced so the swap races the updates
		for {
			select {
			case <-stop:
				return
			default:
				p.FlushForTest()
				time.Sleep(time.Millisecond)
			}
		}
	}()

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				p.Update(2, 1)
			}
		}()
	}
	wg.Wait()
	close(stop)
	p.FlushForTest()

	if r, d := p.Totals(); r != workers*perWorker*2 || d != workers*perWorker {
		t.Fatalf("totals = (%d, %d), want (%d, %d)",
			r, d, workers*perWorker*2, workers*perWorker)
	}
}
