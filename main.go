// ════════════════════════════════════════════════════════════════════════════════════════════════
// Digits Ingestion Server - Main Entry Point
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Digits Ingestion Server
// Component: Main Entry Point & Lifecycle Orchestration
//
// Description:
//   Phased startup with clean separation of concerns, a CAS-guarded shutdown
//   funnel shared by the in-band terminate command and POSIX signals, and a
//   strictly ordered teardown that drains the journal before the process
//   exits.
//
// Architecture:
//   - Phase 0: Configuration (defaults → JSON file → environment)
//   - Phase 1: Dedup bitmap allocation (the single large allocation)
//   - Phase 2: Journal file truncate/create
//   - Phase 3: Statistics reporter
//   - Phase 4: Journal consumer (pinned)
//   - Phase 5: Memory consolidation before traffic
//   - Phase 6: Listener, acceptor, and worker pool
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	rtdebug "runtime/debug"
	"syscall"

	"main/config"
	"main/control"
	"main/debug"
	"main/filter"
	"main/journal"
	"main/loadtest"
	"main/ring"
	"main/server"
	"main/stats"
	"main/utils"
)

func main() {
	// The binary doubles as its own load-test driver; nothing in the
	// server path below is shared with it beyond the wire protocol.
	if len(os.Args) > 1 && os.Args[1] == "loadtest" {
		loadtest.Main()
		return
	}
	runServer()
}

// runServer executes the full server lifecycle and never returns.
func runServer() {
	// PHASE 0: Configuration
	cfg := config.Load()
	if cfg.SingleThreadedEventLoop {
		// Single-threaded mode pins the whole scheduler to one OS thread;
		// observable semantics are unchanged, only latency/CPU trade-offs.
		runtime.GOMAXPROCS(1)
		debug.DropMessage("INIT", "single-threaded event loop")
	}
	debug.DropMessage("INIT", "starting digits server on port "+utils.Itoa(cfg.Port)+
		", wait strategy "+cfg.JournalWaitStrategy)

	// PHASE 1: Dedup bitmap — allocated before the listener binds so an
	// out-of-memory failure is a startup error, not a mid-traffic one.
	flt := filter.New()

	// PHASE 2: Journal file — truncate-and-create, no recovery of state.
	path := cfg.JournalPath()
	file, err := journal.Create(path)
	if err != nil {
		fatal("INIT: journal create", err)
	}
	if abs, err := filepath.Abs(path); err == nil {
		debug.DropMessage("INIT", "journal file at "+abs)
	} else {
		debug.DropMessage("INIT", "journal file at "+path)
	}

	// PHASE 3: Statistics reporter — first line one period from now.
	printer := stats.NewPrinter()
	printer.Start()

	// PHASE 4: Journal consumer, pinned to the last core so the bitmap
	// and file buffer stay in one cache domain.
	jnl := journal.New(file, flt, printer, ring.StrategyFor(cfg.JournalWaitStrategy))
	jnl.Start(runtime.NumCPU() - 1)

	// PHASE 5: Memory consolidation — settle the 125 MB bitmap and ring
	// before traffic arrives.
	runtime.GC()
	runtime.GC()
	rtdebug.FreeOSMemory()

	// PHASE 6: Front-end. Every shutdown source funnels through the stop
	// CAS; only the winning caller closes stopRequested.
	stopRequested := make(chan struct{})
	requestStop := func() {
		if control.BeginShutdown() {
			close(stopRequested)
		}
	}

	srv := server.New(jnl, requestStop)
	if err := srv.Listen(cfg.Port); err != nil {
		fatal("INIT: bind port "+utils.Itoa(cfg.Port), err)
	}
	srv.Serve()
	debug.DropMessage("READY", "listening on "+srv.Addr().String())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		debug.DropMessage("SIGNAL", "received interrupt, shutting down")
		requestStop()
	}()

	<-stopRequested

	// Ordered teardown: stop accepting and unwind workers, drain the ring
	// and close the journal, silence the statistics timer, release the
	// bitmap, exit 0.
	srv.Stop()
	jnl.WakeConsumer()
	jnl.Wait()
	printer.Stop()
	control.ShutdownWG.Wait()
	flt.Release()
	debug.DropMessage("SHUTDOWN", "complete")
	os.Exit(0)
}

// fatal logs a startup failure and exits non-zero. Startup errors never
// reach the graceful path: there is nothing to drain yet.
func fatal(tag string, err error) {
	debug.DropError(tag, err)
	os.Exit(1)
}
