//go:build linux

// sockopt_linux.go
//
// Linux socket tuning beyond what net.TCPConn exposes portably.  The
// listener opts into SO_REUSEPORT so a restarting server can rebind
// without waiting out TIME_WAIT, and accepted connections enable
// TCP_QUICKACK to keep the read-heavy ingest path from batching ACKs.
//
// Failures are swallowed: these are hints, and a cgroup-restricted host
// simply runs untuned.

package server

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// listenControl runs on the listener socket between socket(2) and bind(2).
func listenControl(network, address string, c syscall.RawConn) error {
	return c.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
}

// tuneRaw applies accepted-socket options not covered by the net package.
func tuneRaw(conn *net.TCPConn) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return
	}
	_ = raw.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1)
	})
}
