// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: stats.go — Periodic throughput reporter (stdout heartbeat)
//
// Purpose:
//   - Accumulates received/duplicate counts from the journal consumer.
//   - Every 10 s prints exactly one line to stdout:
//       received <r> numbers, <d> duplicates
//     including zero-traffic heartbeats.
//
// Notes:
//   - The consumer calls Update from one goroutine; the timer flushes from
//     another. The period pair is guarded by a short mutex around the
//     swap-and-read; totals are folded on the timer side only.
//   - The schedule is fixed-rate: a late tick does not advance the next one.
//   - Stdout carries statistics lines and nothing else, built into a
//     reusable buffer and written with one syscall.
//
// ⚠️ No final partial-period line is printed at shutdown
// ─────────────────────────────────────────────────────────────────────────────

package stats

import (
	"sync"
	"time"

	"main/constants"
	"main/control"
	"main/utils"
)

// Printer gathers per-period and lifetime counters and owns the reporting
// timer goroutine.
type Printer struct {
	mu               sync.Mutex
	periodReceived   uint64
	periodDuplicates uint64

	// Totals are written only by the timer goroutine's fold and read after
	// the timer has stopped, so they ride under the same short mutex.
	totalReceived   uint64
	totalDuplicates uint64

	done chan struct{}
	line []byte // reusable stdout line buffer
}

// NewPrinter returns an idle Printer. Start launches the timer.
func NewPrinter() *Printer {
	return &Printer{
		done: make(chan struct{}),
		line: make([]byte, 0, 64),
	}
}

// Update adds one batch's counts. Called by the journal consumer at each
// batch boundary. duplicates exceeding received is a caller bug and panics
// loudly rather than corrupting the period invariant.
func (p *Printer) Update(received, duplicates uint64) {
	if received == 0 && duplicates == 0 {
		return
	}
	if duplicates > received {
		panic("stats: duplicates must never exceed received")
	}
	p.mu.Lock()
	p.periodReceived += received
	p.periodDuplicates += duplicates
	p.mu.Unlock()
}

// Totals returns the lifetime counters folded so far. Meaningful once the
// timer has stopped; used by tests.
func (p *Printer) Totals() (received, duplicates uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalReceived, p.totalDuplicates
}

// Snapshot returns lifetime counts including the still-open period,
// without printing or folding. Observability hook for tests.
func (p *Printer) Snapshot() (received, duplicates uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalReceived + p.periodReceived, p.totalDuplicates + p.periodDuplicates
}

// Start launches the fixed-rate reporting goroutine. The first line prints
// one full period after this call, never at startup.
func (p *Printer) Start() {
	control.ShutdownWG.Add(1)
	go func() {
		defer control.ShutdownWG.Done()
		ticker := time.NewTicker(constants.StatsPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.flush()
			case <-p.done:
				return
			}
		}
	}()
}

// Stop halts the timer. Idempotent-unsafe by design: the lifecycle owner
// calls it exactly once during the CAS-guarded shutdown sequence.
func (p *Printer) Stop() {
	close(p.done)
}

// flush swaps the period counters to zero, folds them into the totals, and
// emits the report line. Runs on the timer goroutine only.
func (p *Printer) flush() {
	p.mu.Lock()
	r := p.periodReceived
	d := p.periodDuplicates
	p.periodReceived = 0
	p.periodDuplicates = 0
	p.totalReceived += r
	p.totalDuplicates += d
	p.mu.Unlock()

	p.line = formatLine(p.line, r, d)
	utils.PrintLine(p.line)
}

// formatLine renders one report line into dst, reusing its backing array.
func formatLine(dst []byte, received, duplicates uint64) []byte {
	dst = dst[:0]
	dst = append(dst, "received "...)
	dst = utils.AppendUint(dst, received)
	dst = append(dst, " numbers, "...)
	dst = utils.AppendUint(dst, duplicates)
	return append(dst, " duplicates\n"...)
}

// FlushForTest exposes one flush cycle to the test suite without waiting
// out a 10 s period.
func (p *Printer) FlushForTest() { p.flush() }
