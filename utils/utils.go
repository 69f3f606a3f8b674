package utils

import (
	"syscall"
	"unsafe"
)

///////////////////////////////////////////////////////////////////////////////
// Conversion Utilities — Zero-Alloc Casts
///////////////////////////////////////////////////////////////////////////////

// B2s converts a []byte to a string **without** allocation.
// ⚠️ Caller must ensure the input slice remains valid and unchanged.
// Used for human-readable print paths.
//
//go:nosplit
//go:inline
func B2s(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// S2b reinterprets a string as a []byte **without** allocation.
// ⚠️ The returned slice must never be written to.
//
//go:nosplit
//go:inline
func S2b(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

///////////////////////////////////////////////////////////////////////////////
// Raw FD Writers — Stdout / Stderr Without fmt
///////////////////////////////////////////////////////////////////////////////

// PrintWarning writes a pre-concatenated message to stderr (fd 2) in a
// single syscall. Cold-path only: connection drops, journal errors,
// lifecycle transitions.
//
//go:nosplit
func PrintWarning(s string) {
	if len(s) == 0 {
		return
	}
	_, _ = syscall.Write(2, S2b(s))
}

// PrintLine writes a pre-built line to stdout (fd 1) in a single syscall.
// Used by the statistics printer, which owns the only stdout traffic in
// the process.
//
//go:nosplit
func PrintLine(b []byte) {
	if len(b) == 0 {
		return
	}
	_, _ = syscall.Write(1, b)
}

///////////////////////////////////////////////////////////////////////////////
// Decimal Formatting — Stack Buffers, No strconv
///////////////////////////////////////////////////////////////////////////////

// Itoa renders a non-negative int in base 10. One small allocation for the
// returned string; used only on diagnostic paths.
func Itoa(v int) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// AppendUint appends the base-10 rendering of v to dst and returns the
// extended slice. Allocation-free when dst has capacity.
func AppendUint(dst []byte, v uint64) []byte {
	if v == 0 {
		return append(dst, '0')
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return append(dst, buf[i:]...)
}

///////////////////////////////////////////////////////////////////////////////
// Fixed-Width Digit Codec — The 9-Digit Wire Payload
///////////////////////////////////////////////////////////////////////////////

// ParseDigits converts nine ASCII digits into their integer value.
// The caller guarantees every byte is in '0'..'9' (the frame parser
// validates before enqueue), so the nine steps are written out in full
// with no branches.
//
//go:nosplit
//go:inline
func ParseDigits(b *[9]byte) uint32 {
	v := uint32(b[0]) - '0'
	v = v*10 + uint32(b[1]) - '0'
	v = v*10 + uint32(b[2]) - '0'
	v = v*10 + uint32(b[3]) - '0'
	v = v*10 + uint32(b[4]) - '0'
	v = v*10 + uint32(b[5]) - '0'
	v = v*10 + uint32(b[6]) - '0'
	v = v*10 + uint32(b[7]) - '0'
	return v*10 + uint32(b[8]) - '0'
}

// PutDigits renders v as nine zero-padded ASCII digits into dst.
// Inverse of ParseDigits; used by the load-test client to format the
// outbound payload into a reusable scratch buffer.
//
//go:nosplit
//go:inline
func PutDigits(v uint32, dst *[9]byte) {
	for i := 8; i >= 0; i-- {
		dst[i] = byte('0' + v%10)
		v /= 10
	}
}
