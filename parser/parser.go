package parser

import "main/constants"

// ============================================================================
// FIXED-WIDTH DIGIT-LINE PARSER - PER-CONNECTION FRAMING
// ============================================================================
//
// This parser turns the raw byte stream of one TCP connection into exactly
// three kinds of events: a valid nine-digit payload, the in-band terminate
// command, and a protocol violation. It is built for the trusted-geometry
// case: every legal frame is exactly ten octets (nine ASCII digits or the
// word "terminate", then LF), so framing never searches for delimiters —
// it slices fixed windows and classifies them.
//
// SEGMENTATION MODEL:
// - TCP delivers arbitrary fragments. A frame may span reads at any byte
//   boundary, including one-byte-at-a-time delivery.
// - The carry buffer holds at most one partial frame (0-9 octets) between
//   reads. It is filled first on the next Feed, and any 1-9 octet tail of
//   the current input is re-buffered on the way out — including a second
//   partial inside the same read.
//
// RESULT MODEL:
// - Classification outcomes are a tagged status value, not errors: the hot
//   path allocates nothing and unwinds nothing.
// - The first invalid window halts parsing for the connection permanently;
//   no rescan of the remaining bytes is attempted.
//
// ============================================================================

// Status is the tagged result of a Feed pass.
type Status uint8

const (
	// More: input consumed cleanly, connection keeps reading.
	More Status = iota

	// Terminated: the terminate frame was recognized. The caller triggers
	// global shutdown; any bytes after the frame are discarded.
	Terminated

	// Invalid: a malformed frame was recognized. The caller closes the
	// connection; any remaining bytes are discarded.
	Invalid
)

// frameKind is the classification of one ten-octet window.
type frameKind uint8

const (
	frameDigits frameKind = iota
	frameTerminate
	frameInvalid
)

// Parser is the per-connection framing state. One instance lives in each
// worker slot and is Reset between connections; it holds no references
// into any input buffer after Feed returns.
type Parser struct {
	carry    [constants.LineLength]byte // partial frame from previous reads
	carryLen int                        // 0..9 octets currently buffered
	dead     bool                       // latched after the first invalid frame
}

// Reset clears all framing state so the Parser can serve a new connection.
func (p *Parser) Reset() {
	p.carryLen = 0
	p.dead = false
}

// CarryLen reports the number of buffered partial-frame octets. A non-zero
// value at EOF means the peer disconnected mid-frame; the partial is
// discarded without counting or journalling anything.
func (p *Parser) CarryLen() int { return p.carryLen }

// classify inspects one complete ten-octet window.
//
//go:nosplit
//go:inline
func classify(w *[constants.LineLength]byte) frameKind {
	// Digit line: nine bytes in '0'..'9' followed by LF. This is the hot
	// case and is checked first.
	ok := true
	for i := 0; i < constants.DigitCount; i++ {
		c := w[i]
		ok = ok && c >= '0' && c <= '9'
	}
	if ok && w[constants.DigitCount] == '\n' {
		return frameDigits
	}
	if *w == constants.TerminateLine {
		return frameTerminate
	}
	return frameInvalid
}

// Feed consumes one read's worth of bytes, invoking emit once per valid
// digit frame with a pointer to the nine payload octets. The pointed-at
// bytes are valid only for the duration of the callback; the journal
// producer copies them into a ring slot immediately.
//
// The return value is the connection's next move: More to keep reading,
// Terminated to trigger shutdown, Invalid to drop the connection. Once a
// pass returns Invalid the parser latches and all further input is
// rejected; Terminated does not latch.
func (p *Parser) Feed(data []byte, emit func(*[constants.DigitCount]byte)) Status {
	if p.dead {
		return Invalid
	}

	// ───── 1. Complete a buffered partial frame, if any ─────
	if p.carryLen > 0 {
		n := copy(p.carry[p.carryLen:], data)
		p.carryLen += n
		data = data[n:]
		if p.carryLen < constants.LineLength {
			return More // input drained before the frame completed
		}
		p.carryLen = 0
		switch classify(&p.carry) {
		case frameDigits:
			emit((*[constants.DigitCount]byte)(p.carry[:constants.DigitCount]))
		case frameTerminate:
			return Terminated
		case frameInvalid:
			p.dead = true
			return Invalid
		}
	}

	// ───── 2. Whole frames lying inside this read ─────
	for len(data) >= constants.LineLength {
		w := (*[constants.LineLength]byte)(data[:constants.LineLength])
		switch classify(w) {
		case frameDigits:
			emit((*[constants.DigitCount]byte)(data[:constants.DigitCount]))
		case frameTerminate:
			return Terminated
		case frameInvalid:
			p.dead = true
			return Invalid
		}
		data = data[constants.LineLength:]
	}

	// ───── 3. Re-buffer the 1-9 octet tail for the next read ─────
	if len(data) > 0 {
		p.carryLen = copy(p.carry[:], data)
	}
	return More
}
