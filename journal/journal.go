// ════════════════════════════════════════════════════════════════════════════════════════════════
// Digits Journal - Ring-Backed Unique-Value Append Log
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Digits Ingestion Server
// Component: Journal Producer API & Single-Consumer Writer
//
// Description:
//   Multi-producer enqueue of validated nine-digit payloads into a bounded MPSC
//   ring, drained by one pinned consumer that deduplicates against the bitmap
//   filter, appends unique values to the journal file through a buffered
//   writer, and reports batch counts to the statistics printer.
//
// Data flow:
//   workers ──Write──▶ ring ──Consume──▶ dedup filter ──▶ bufio ──▶ numbers.log
//                                          │
//                                          └──▶ statistics (per batch)
//
// Ownership:
//   - The ring's consumer cursor, the filter, and the file are owned by the
//     consumer goroutine exclusively; no other goroutine touches them.
//   - Producers own nothing: they copy nine bytes into a claimed slot and
//     publish.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package journal

import (
	"bufio"
	"os"
	"runtime"

	"main/constants"
	"main/control"
	"main/debug"
	"main/filter"
	"main/ring"
	"main/stats"
	"main/utils"
)

// Journal couples the producer API with the consumer state. Construct with
// New, start the consumer with Start, and stop via the global control flag
// followed by Wait.
type Journal struct {
	ring    *ring.Ring
	filter  *filter.Filter
	printer *stats.Printer

	file *os.File
	w    *bufio.Writer

	// Batch-local counters; consumer goroutine only.
	batchReceived   uint64
	batchDuplicates uint64
	batchErr        error

	done chan struct{}
}

// Create deletes any stale journal file at path and creates a fresh one.
// The file starts at zero bytes; there is no recovery of prior state.
// Failure here is fatal to startup.
func Create(path string) (*os.File, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return os.Create(path)
}

// New assembles a Journal over an already-created file. The ring strategy
// decides how the consumer waits when the feed runs dry.
func New(f *os.File, flt *filter.Filter, printer *stats.Printer, wait ring.Strategy) *Journal {
	return &Journal{
		ring:    ring.New(constants.RingCapacity, wait),
		filter:  flt,
		printer: printer,
		file:    f,
		w:       bufio.NewWriterSize(f, constants.JournalBufferSize),
		done:    make(chan struct{}),
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// PRODUCER API
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Write enqueues one validated nine-digit payload. Safe under any number
// of concurrent callers; allocation-free. Blocks only when the ring is
// full — that spin-yield loop is the backpressure path from disk to
// network. After shutdown begins the call degrades to a no-op so closing
// workers never wedge on a full ring.
//
//go:nosplit
func (j *Journal) Write(frame *[constants.DigitCount]byte) {
	if control.Stopping() {
		return
	}
	for !j.ring.Push(frame) {
		if control.Stopping() {
			return
		}
		runtime.Gosched() // ring full: yield until the consumer frees slots
	}
	control.SignalActivity()
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CONSUMER
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Start launches the single consumer goroutine, locked to an OS thread and
// pinned to the given core (no-op off Linux or for negative cores).
func (j *Journal) Start(core int) {
	control.ShutdownWG.Add(1)
	go func() {
		defer control.ShutdownWG.Done()
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if core >= 0 {
			ring.SetAffinity(core)
		}
		j.consumeLoop()
	}()
}

// Wait blocks until the consumer has drained the ring and closed the file.
func (j *Journal) Wait() {
	<-j.done
}

// WakeConsumer unparks a Block-strategy consumer so it notices the stop
// flag. Called once by the shutdown sequence.
func (j *Journal) WakeConsumer() {
	j.ring.WakeConsumer()
}

// consumeLoop is the consumer's whole life: drain batches, report them,
// idle per the wait strategy, and on shutdown drain to empty before
// flushing and closing the file.
func (j *Journal) consumeLoop() {
	defer close(j.done)
	for {
		n := j.ring.Consume(j.process)
		if n > 0 {
			j.endBatch()
			continue
		}

		// Ring empty: push buffered bytes down to the OS before idling.
		if err := j.w.Flush(); err != nil {
			j.reportWriteError(err)
		}

		if control.Stopping() {
			// Producers are no-ops now and in-flight claims publish
			// promptly; one more pass picks up any straggler batch.
			for {
				n := j.ring.Consume(j.process)
				if n == 0 {
					break
				}
				j.endBatch()
			}
			j.closeFile()
			return
		}

		j.ring.Idle()
	}
}

// process handles one ring slot: parse, dedup, append. Runs on the
// consumer goroutine with exclusive ownership of filter and writer.
func (j *Journal) process(frame *[constants.DigitCount]byte) {
	j.batchReceived++
	if !j.filter.TestAndSet(utils.ParseDigits(frame)) {
		j.batchDuplicates++
		return
	}
	if j.batchErr != nil {
		return // batch already poisoned: discard the remaining writes
	}
	if _, err := j.w.Write(frame[:]); err != nil {
		j.batchErr = err
		return
	}
	if err := j.w.WriteByte('\n'); err != nil {
		j.batchErr = err
	}
}

// endBatch publishes the batch counters to the statistics printer and, if
// the batch hit a write error, logs it and restores the writer so the next
// batch starts clean. The journal is best-effort durable: dedup state
// survives in memory even when a batch's bytes are lost.
func (j *Journal) endBatch() {
	j.printer.Update(j.batchReceived, j.batchDuplicates)
	j.batchReceived = 0
	j.batchDuplicates = 0
	if j.batchErr != nil {
		j.reportWriteError(j.batchErr)
	}
}

// reportWriteError logs a discarded batch and resets the buffered writer's
// sticky error state.
func (j *Journal) reportWriteError(err error) {
	debug.DropError("JOURNAL: batch discarded", err)
	j.batchErr = nil
	j.w.Reset(j.file)
}

// closeFile flushes the tail of the buffer and closes the journal.
func (j *Journal) closeFile() {
	if err := j.w.Flush(); err != nil {
		debug.DropError("JOURNAL: final flush", err)
	}
	if err := j.file.Close(); err != nil {
		debug.DropError("JOURNAL: close", err)
	}
}
