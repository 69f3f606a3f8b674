// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: debug.go — Cold-path stderr logging helper (zero-alloc)
//
// Purpose:
//   - Logs infrequent events without introducing heap pressure.
//   - Used only off the hot path: lifecycle transitions, dropped
//     connections, journal write failures, signal handling.
//
// Notes:
//   - Avoids fmt to keep footprint and latency minimal.
//   - One concatenation, one write syscall, no interfaces.
//
// ⚠️ Never invoke from the frame-parse or ring-drain loops
// ─────────────────────────────────────────────────────────────────────────────

package debug

import "main/utils"

// DropError logs a tagged error to stderr. A nil error prints the tag
// alone, which lets callers reuse the same call site for state markers.
//
//go:nosplit
//go:inline
func DropError(tag string, err error) {
	if err != nil {
		utils.PrintWarning(tag + ": " + err.Error() + "\n")
	} else {
		utils.PrintWarning(tag + "\n")
	}
}

// DropMessage logs a tagged diagnostic message to stderr. Used for startup
// phases, connection state changes, and shutdown progress.
//
//go:nosplit
//go:inline
func DropMessage(tag, message string) {
	utils.PrintWarning(tag + ": " + message + "\n")
}
