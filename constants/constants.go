// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: constants.go — Global server tunables & wire-format probes
//
// Purpose:
//   - Defines process-wide constants for the digits ingestion pipeline.
//   - Covers wire framing geometry, ring sizing, socket tuning, and the
//     statistics cadence.
//
// Notes:
//   - Sized for a bounded client population (5 concurrent handlers) feeding
//     one journal consumer through a single MPSC ring.
//   - Power-of-2 ring capacity keeps index math to a single AND.
//
// ⚠️ No runtime logic here — all values must be compile-time resolvable
// ─────────────────────────────────────────────────────────────────────────────

package constants

import "time"

// ───────────────────────────── Wire Framing ────────────────────────────────

const (
	// DigitCount is the number of ASCII digits carried by one message.
	// Nine decimal digits cover the value domain [0, 999999999].
	DigitCount = 9

	// LineLength is the full frame width on the wire: nine digits plus one
	// LF terminator. Framing is strictly fixed-width; any line of a
	// different length is a protocol violation.
	LineLength = DigitCount + 1

	// MaxValue is the highest representable message value. The dedup bitmap
	// is sized for MaxValue+1 distinct keys.
	MaxValue = 999999999
)

// TerminateLine is the single in-band control frame. It occupies exactly one
// line slot so the parser can classify it with the same 10-byte window used
// for digit lines.
var TerminateLine = [LineLength]byte{'t', 'e', 'r', 'm', 'i', 'n', 'a', 't', 'e', '\n'}

// ──────────────────────────── Journal & Ring ───────────────────────────────

const (
	// RingCapacity is the number of pre-allocated 9-byte slots between the
	// connection workers and the journal consumer. 2^20 slots keep multi-
	// second bursts in memory before producers feel disk backpressure.
	RingCapacity = 1 << 20

	// JournalFileName is the append-only journal created inside the
	// configured journal directory. The file is deleted and recreated on
	// every startup; no prior state survives a restart.
	JournalFileName = "numbers.log"

	// JournalBufferSize is the bufio writer size in front of the journal
	// file. Flush happens on fill, on drain between batches, and at
	// shutdown.
	JournalBufferSize = 8 * 1024
)

// ─────────────────────────── Dedup Filter Sizing ───────────────────────────

const (
	// FilterBytes is the byte length of the direct-mapped dedup bitmap:
	// one bit per value in [0, 10^9), 125,000,000 bytes total. One
	// allocation at startup, zero reallocations afterwards.
	FilterBytes = (MaxValue + 1) / 8
)

// ───────────────────────── Acceptor & Worker Pool ──────────────────────────

const (
	// DefaultPort is the TCP listen port when no override is configured.
	DefaultPort = 4000

	// WorkerCount is the hard concurrency limit: at most this many
	// connection handlers read sockets at any moment. Clients beyond the
	// limit are accepted by the kernel backlog and served when a worker
	// frees up — delayed, never rejected.
	WorkerCount = 5

	// SocketBufferSize is the SO_RCVBUF / SO_SNDBUF hint applied to every
	// accepted connection. The server is read-heavy; 16 KiB keeps a full
	// burst of ~1,600 frames in flight per client.
	SocketBufferSize = 16 * 1024

	// ReadBufferSize is the per-worker receive buffer handed to each socket
	// read. One buffer per worker slot, reused across connections.
	ReadBufferSize = 16 * 1024

	// WriteWatermarkHigh and WriteWatermarkLow mirror the original
	// transport tuning contract. Informational on this read-heavy path.
	WriteWatermarkHigh = 16 * 1024
	WriteWatermarkLow  = 8 * 1024
)

// ──────────────────────────── Statistics Cadence ───────────────────────────

const (
	// StatsPeriod is the fixed-rate reporting interval. The first line is
	// printed one full period after startup, then every period thereafter,
	// including zero-traffic heartbeats.
	StatsPeriod = 10 * time.Second
)
