//go:build !linux || tinygo

// setaffinity_stub.go
//
// Portable stub: thread pinning is a Linux-only optimization and every
// other platform simply runs unpinned.

package ring

// SetAffinity is a no-op outside Linux.
func SetAffinity(cpu int) {}
