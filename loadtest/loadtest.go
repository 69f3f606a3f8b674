// ════════════════════════════════════════════════════════════════════════════════════════════════
// Digits Load Generator
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Digits Ingestion Server
// Component: Load-Test Driver
//
// Description:
//   Drives a digits server with N parallel connections streaming formatted
//   nine-digit lines as fast as the link allows, samples aggregate
//   throughput once per second, and persists the run history to an embedded
//   sqlite database for comparison across tuning experiments.
//
// Notes:
//   - Each sender owns a disjoint slice of the value range, so a full run
//     exercises the dedup filter with zero expected duplicates.
//   - The driver is an external collaborator: nothing in the server imports
//     this package.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package loadtest

import (
	"database/sql"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"main/constants"
	"main/debug"
	"main/utils"

	_ "github.com/mattn/go-sqlite3"
)

// Options configures one load-test run.
type Options struct {
	Addr        string // host:port of the target server
	Connections int    // parallel sender connections
	Total       uint64 // lines to send across all connections
	Start       uint32 // first value of the range
	Terminate   bool   // send the terminate command when done
	DBPath      string // sqlite history location; empty disables persistence
}

// Result summarizes a finished run.
type Result struct {
	LinesSent uint64
	Duration  time.Duration
	Samples   []uint64 // lines sent during each elapsed second
}

// Run executes the load test and returns its result. Connection failures
// abort the run; send failures stop the affected sender but let the rest
// finish so a mid-run server shutdown still yields a usable sample set.
func Run(opts Options) (Result, error) {
	if opts.Connections <= 0 {
		opts.Connections = 1
	}
	if opts.Total == 0 {
		opts.Total = uint64(opts.Connections)
	}

	clients := make([]*Client, opts.Connections)
	for i := range clients {
		c, err := Dial(opts.Addr)
		if err != nil {
			for _, open := range clients[:i] {
				_ = open.Close()
			}
			return Result{}, err
		}
		clients[i] = c
	}

	var sent uint64
	var wg sync.WaitGroup
	start := time.Now()

	// Partition the value range across senders; the last sender absorbs
	// the remainder.
	share := opts.Total / uint64(opts.Connections)
	for i, c := range clients {
		lo := uint64(opts.Start) + uint64(i)*share
		hi := lo + share
		if i == len(clients)-1 {
			hi = uint64(opts.Start) + opts.Total
		}
		wg.Add(1)
		go func(c *Client, lo, hi uint64) {
			defer wg.Done()
			for v := lo; v < hi; v++ {
				if err := c.SendValue(uint32(v % (constants.MaxValue + 1))); err != nil {
					debug.DropError("LOADTEST: send", err)
					return
				}
				atomic.AddUint64(&sent, 1)
			}
			if err := c.Flush(); err != nil {
				debug.DropError("LOADTEST: flush", err)
			}
		}(c, lo, hi)
	}

	// Per-second throughput sampler, stopped when all senders finish.
	samplerDone := make(chan struct{})
	var samples []uint64
	var samplerWG sync.WaitGroup
	samplerWG.Add(1)
	go func() {
		defer samplerWG.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		prev := uint64(0)
		for {
			select {
			case <-ticker.C:
				cur := atomic.LoadUint64(&sent)
				samples = append(samples, cur-prev)
				prev = cur
			case <-samplerDone:
				return
			}
		}
	}()

	wg.Wait()
	close(samplerDone)
	samplerWG.Wait()
	elapsed := time.Since(start)

	if opts.Terminate {
		if err := clients[0].Terminate(); err != nil {
			debug.DropError("LOADTEST: terminate", err)
		}
	}
	for _, c := range clients {
		_ = c.Close()
	}

	res := Result{
		LinesSent: atomic.LoadUint64(&sent),
		Duration:  elapsed,
		Samples:   samples,
	}
	if opts.DBPath != "" {
		if err := persist(opts, res); err != nil {
			debug.DropError("LOADTEST: persist", err)
		}
	}
	return res, nil
}

// persist records the run and its per-second samples in the sqlite
// history database, creating the schema on first use.
func persist(opts Options, res Result) error {
	db, err := sql.Open("sqlite3", opts.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at  TEXT NOT NULL,
			addr        TEXT NOT NULL,
			connections INTEGER NOT NULL,
			lines_sent  INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS samples (
			run_id     INTEGER NOT NULL REFERENCES runs(id),
			second     INTEGER NOT NULL,
			lines_sent INTEGER NOT NULL
		)`); err != nil {
		return err
	}

	result, err := db.Exec(
		"INSERT INTO runs (started_at, addr, connections, lines_sent, duration_ms) VALUES (?, ?, ?, ?, ?)",
		time.Now().UTC().Format(time.RFC3339),
		opts.Addr,
		opts.Connections,
		res.LinesSent,
		res.Duration.Milliseconds(),
	)
	if err != nil {
		return err
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return err
	}
	for i, n := range res.Samples {
		if _, err := db.Exec(
			"INSERT INTO samples (run_id, second, lines_sent) VALUES (?, ?, ?)",
			runID, i+1, n,
		); err != nil {
			return err
		}
	}
	return nil
}

// Main is the `loadtest` subcommand entry point. Configuration comes from
// the environment, mirroring the server's own configuration surface:
//
//	LOADTEST_ADDR         target host:port       (default 127.0.0.1:4000)
//	LOADTEST_CONNECTIONS  parallel senders       (default 5)
//	LOADTEST_TOTAL        lines across all conns (default 1000000)
//	LOADTEST_START        first value            (default 0)
//	LOADTEST_TERMINATE    send terminate at end  (default false)
//	LOADTEST_DB           sqlite history path    (default digits_loadtest.db)
func Main() {
	opts := Options{
		Addr:        "127.0.0.1:" + utils.Itoa(constants.DefaultPort),
		Connections: constants.WorkerCount,
		Total:       1000000,
		DBPath:      "digits_loadtest.db",
	}
	if v := strings.TrimSpace(os.Getenv("LOADTEST_ADDR")); v != "" {
		opts.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("LOADTEST_CONNECTIONS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Connections = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("LOADTEST_TOTAL")); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			opts.Total = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("LOADTEST_START")); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			opts.Start = uint32(n)
		}
	}
	if v := strings.TrimSpace(os.Getenv("LOADTEST_TERMINATE")); v != "" {
		opts.Terminate = v == "1" || strings.EqualFold(v, "true")
	}
	if v := strings.TrimSpace(os.Getenv("LOADTEST_DB")); v != "" {
		opts.DBPath = v
	}

	debug.DropMessage("LOADTEST", "driving "+opts.Addr+" with "+
		utils.Itoa(opts.Connections)+" connections, "+
		utils.Itoa(int(opts.Total))+" lines")

	res, err := Run(opts)
	if err != nil {
		debug.DropError("LOADTEST", err)
		os.Exit(1)
	}

	perSec := uint64(0)
	if secs := res.Duration.Seconds(); secs > 0 {
		perSec = uint64(float64(res.LinesSent) / secs)
	}
	debug.DropMessage("LOADTEST", "sent "+utils.Itoa(int(res.LinesSent))+
		" lines in "+res.Duration.String()+" ("+utils.Itoa(int(perSec))+" lines/s)")
}
