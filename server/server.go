// ════════════════════════════════════════════════════════════════════════════════════════════════
// Digits Ingestion Server - Acceptor, Concurrency Gate & Connection Handlers
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Digits Ingestion Server
// Component: TCP Front-End
//
// Description:
//   Binds the TCP listener, hands accepted sockets to a fixed pool of five
//   long-lived workers, and runs the per-connection read loop that feeds the
//   frame parser and dispatches its events.
//
// Concurrency gate:
//   - At most WorkerCount (5) handlers read sockets at any moment. The
//     acceptor publishes each connection over an unbuffered channel, so once
//     all workers are busy the acceptor itself blocks and surplus clients
//     wait in the kernel's accept backlog — delayed, never rejected.
//   - The acceptor runs on its own goroutine outside the five slots.
//
// Per-connection state machine:
//   Reading --bytes--> Reading          (parse, maybe enqueue)
//   Reading --terminate--> Closed       (trigger global stop)
//   Reading --invalid frame--> Closed
//   Reading --EOF / I/O error--> Closed
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package server

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"main/constants"
	"main/control"
	"main/debug"
	"main/journal"
	"main/parser"
	"main/utils"
)

// Server owns the listener, the worker pool, and the dispatch wiring from
// parser events to the journal and the shutdown trigger.
type Server struct {
	emit        func(*[constants.DigitCount]byte) // bound once: journal producer API
	onTerminate func()                            // global stop trigger

	ln      *net.TCPListener
	handoff chan *net.TCPConn
	active  [constants.WorkerCount]atomic.Pointer[net.TCPConn]
	wg      sync.WaitGroup
	closing uint32
}

// New wires a Server to its collaborators. The journal handle is
// non-owning; lifecycle ownership stays with the caller.
func New(j *journal.Journal, onTerminate func()) *Server {
	return &Server{
		emit:        j.Write,
		onTerminate: onTerminate,
		handoff:     make(chan *net.TCPConn), // unbuffered: this IS the gate
	}
}

// Listen binds the TCP listener on the given port. Failure here is fatal
// to startup and reported to the lifecycle owner.
func (s *Server) Listen(port int) error {
	lc := net.ListenConfig{Control: listenControl}
	ln, err := lc.Listen(context.Background(), "tcp", ":"+utils.Itoa(port))
	if err != nil {
		return err
	}
	s.ln = ln.(*net.TCPListener)
	return nil
}

// Addr returns the bound listener address. Valid after Listen; used by the
// lifecycle log line and by tests binding port 0.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Serve launches the worker pool and the acceptor. Non-blocking; Stop
// tears everything down.
func (s *Server) Serve() {
	s.wg.Add(constants.WorkerCount + 1)
	for i := 0; i < constants.WorkerCount; i++ {
		go s.worker(i)
	}
	go s.acceptLoop()
}

// Stop closes the listener and every in-flight connection, then waits for
// the acceptor and all workers to exit. Safe to call once, from the
// CAS-guarded shutdown sequence.
func (s *Server) Stop() {
	atomic.StoreUint32(&s.closing, 1)
	if err := s.ln.Close(); err != nil {
		debug.DropError("SERVER: listener close", err)
	}
	// Unblock any worker parked in conn.Read.
	for i := range s.active {
		if conn := s.active[i].Load(); conn != nil {
			_ = conn.Close()
		}
	}
	s.wg.Wait()
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// ACCEPTOR
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// acceptLoop accepts, tunes, and hands off sockets until the listener
// closes. Closing the handoff channel afterwards releases idle workers.
func (s *Server) acceptLoop() {
	defer s.wg.Done()
	defer close(s.handoff)
	for {
		conn, err := s.ln.AcceptTCP()
		if err != nil {
			if atomic.LoadUint32(&s.closing) != 0 || control.Stopping() {
				return
			}
			debug.DropError("ACCEPT", err)
			continue
		}
		tune(conn)
		if control.Stopping() {
			_ = conn.Close()
			return
		}
		s.handoff <- conn // blocks while all five workers are busy
	}
}

// tune applies the per-connection socket contract: no Nagle, 16 KiB
// buffers both ways, plus the platform-specific extras in sockopt_*.go.
func tune(conn *net.TCPConn) {
	_ = conn.SetNoDelay(true)
	_ = conn.SetReadBuffer(constants.SocketBufferSize)
	_ = conn.SetWriteBuffer(constants.SocketBufferSize)
	tuneRaw(conn)
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CONNECTION WORKERS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// worker is one of the five gate slots. It owns a receive buffer and a
// frame parser for its whole life, reusing both across connections.
func (s *Server) worker(id int) {
	defer s.wg.Done()
	var p parser.Parser
	buf := make([]byte, constants.ReadBufferSize)
	for conn := range s.handoff {
		s.handle(id, conn, &p, buf)
	}
}

// handle runs one connection's read loop to a terminal state. Every exit
// path closes the socket and leaves the parser reset-able; the carry state
// dies with the Reset on the next connection.
func (s *Server) handle(id int, conn *net.TCPConn, p *parser.Parser, buf []byte) {
	p.Reset()
	s.active[id].Store(conn)
	defer func() {
		s.active[id].Store(nil)
		_ = conn.Close()
		debug.DropMessage("CONN", "connection closed")
	}()

	for {
		if control.Stopping() {
			return
		}
		n, err := conn.Read(buf)
		if n > 0 {
			switch p.Feed(buf[:n], s.emit) {
			case parser.Terminated:
				debug.DropMessage("CONN", "terminate requested by client")
				s.onTerminate()
				return
			case parser.Invalid:
				debug.DropMessage("CONN", "invalid frame, disconnecting client")
				return
			}
		}
		if err != nil {
			if err != io.EOF && atomic.LoadUint32(&s.closing) == 0 {
				debug.DropError("CONN: read", err)
			}
			if p.CarryLen() > 0 {
				// Peer vanished mid-frame: the partial carry is discarded,
				// never counted, never journalled.
				debug.DropMessage("CONN", "discarding partial frame of "+utils.Itoa(p.CarryLen())+" bytes")
			}
			return
		}
	}
}
