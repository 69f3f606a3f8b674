package server

import (
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"main/constants"
	"main/control"
	"main/filter"
	"main/journal"
	"main/loadtest"
	"main/ring"
	"main/stats"
)

// ============================================================================
// TEST HARNESS
// ============================================================================

// testEnv wires a full in-process pipeline — listener, workers, ring,
// consumer, journal file — on an ephemeral port.
type testEnv struct {
	srv     *Server
	jnl     *journal.Journal
	pr      *stats.Printer
	path    string
	addr    string
	stopped chan struct{} // closed when the stop CAS is won
	once    sync.Once
}

func startTestServer(t *testing.T) *testEnv {
	t.Helper()
	control.Reset()

	path := filepath.Join(t.TempDir(), constants.JournalFileName)
	f, err := journal.Create(path)
	if err != nil {
		t.Fatalf("journal create: %v", err)
	}
	pr := stats.NewPrinter()
	jnl := journal.New(f, filter.New(), pr, ring.StrategyFor("Yield"))
	jnl.Start(-1)

	env := &testEnv{jnl: jnl, pr: pr, path: path, stopped: make(chan struct{})}
	requestStop := func() {
		if control.BeginShutdown() {
			close(env.stopped)
		}
	}
	env.srv = New(jnl, requestStop)
	if err := env.srv.Listen(0); err != nil {
		t.Fatalf("listen: %v", err)
	}
	env.srv.Serve()
	// The listener binds every interface; dial loopback explicitly.
	port := env.srv.Addr().(*net.TCPAddr).Port
	env.addr = "127.0.0.1:" + strconv.Itoa(port)

	t.Cleanup(env.shutdown)
	return env
}

// shutdown runs the ordered teardown exactly once: stop flag, front-end,
// journal drain, file close.
func (e *testEnv) shutdown() {
	e.once.Do(func() {
		control.BeginShutdown()
		e.srv.Stop()
		e.jnl.WakeConsumer()
		e.jnl.Wait()
	})
}

// waitTotals polls the folded statistics until the received counter hits
// want or the deadline expires.
func waitTotals(t *testing.T, pr *stats.Printer, want uint64) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		if r, _ := pr.Snapshot(); r >= want {
			return
		}
		if time.Now().After(deadline) {
			r, d := pr.Snapshot()
			t.Fatalf("counters stalled at (%d, %d), want received >= %d", r, d, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// journalLines reads the journal after shutdown and splits it into lines.
func journalLines(t *testing.T, e *testEnv) []string {
	t.Helper()
	e.shutdown()
	data, err := os.ReadFile(e.path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

// ============================================================================
// END-TO-END SCENARIOS
// ============================================================================

// TestEndToEndSingleClient replays scenario one: three lines with one
// duplicate yield two journal lines in arrival order and totals (3, 1).
func TestEndToEndSingleClient(t *testing.T) {
	env := startTestServer(t)

	c, err := loadtest.Dial(env.addr)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SendRaw([]byte("000000000\n000000001\n000000000\n")); err != nil {
		t.Fatal(err)
	}
	if err := c.Flush(); err != nil {
		t.Fatal(err)
	}
	waitTotals(t, env.pr, 3)
	_ = c.Close()

	lines := journalLines(t, env)
	if len(lines) != 2 || lines[0] != "000000000" || lines[1] != "000000001" {
		t.Fatalf("journal = %v", lines)
	}
	env.pr.FlushForTest()
	if r, d := env.pr.Totals(); r != 3 || d != 1 {
		t.Fatalf("totals = (%d, %d), want (3, 1)", r, d)
	}
}

// TestJournalStartsEmpty checks the truncation property: before any
// message is processed the journal file is zero bytes.
func TestJournalStartsEmpty(t *testing.T) {
	env := startTestServer(t)
	info, err := os.Stat(env.path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Fatalf("journal size = %d before any traffic, want 0", info.Size())
	}
}

// TestInvalidFrameClosesOnlyThatConnection sends a ten-byte malformed
// window on one connection and valid traffic on another. The offender is
// disconnected, the server keeps serving, and nothing from the bad frame
// is counted.
func TestInvalidFrameClosesOnlyThatConnection(t *testing.T) {
	env := startTestServer(t)

	bad, err := loadtest.Dial(env.addr)
	if err != nil {
		t.Fatal(err)
	}
	if err := bad.SendRaw([]byte("12345\nXXXX")); err != nil {
		t.Fatal(err)
	}
	if err := bad.Flush(); err != nil {
		t.Fatal(err)
	}

	good, err := loadtest.Dial(env.addr)
	if err != nil {
		t.Fatal(err)
	}
	if err := good.SendValue(7); err != nil {
		t.Fatal(err)
	}
	if err := good.Flush(); err != nil {
		t.Fatal(err)
	}
	waitTotals(t, env.pr, 1)
	_ = good.Close()
	_ = bad.Close()

	lines := journalLines(t, env)
	if len(lines) != 1 || lines[0] != "000000007" {
		t.Fatalf("journal = %v, want only the valid client's line", lines)
	}
	env.pr.FlushForTest()
	if r, d := env.pr.Totals(); r != 1 || d != 0 {
		t.Fatalf("totals = (%d, %d); the invalid frame must not count", r, d)
	}
}

// TestShortFrameThenDisconnect replays scenario six: a dangling partial
// frame at EOF is discarded without touching statistics or the journal.
func TestShortFrameThenDisconnect(t *testing.T) {
	env := startTestServer(t)

	c, err := loadtest.Dial(env.addr)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SendRaw([]byte("123456789")); err != nil { // nine digits, no LF
		t.Fatal(err)
	}
	if err := c.Flush(); err != nil {
		t.Fatal(err)
	}
	_ = c.Close()

	time.Sleep(300 * time.Millisecond) // let the EOF propagate
	if lines := journalLines(t, env); lines != nil {
		t.Fatalf("journal = %v, want empty", lines)
	}
	env.pr.FlushForTest()
	if r, _ := env.pr.Totals(); r != 0 {
		t.Fatalf("received = %d, want 0", r)
	}
}

// TestTerminateTriggersShutdown replays scenario two: two clients deliver
// one value each, then one sends terminate. The stop CAS fires and both
// values are journalled exactly once.
func TestTerminateTriggersShutdown(t *testing.T) {
	env := startTestServer(t)

	a, err := loadtest.Dial(env.addr)
	if err != nil {
		t.Fatal(err)
	}
	b, err := loadtest.Dial(env.addr)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.SendValue(0); err != nil {
		t.Fatal(err)
	}
	if err := a.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := b.SendValue(1); err != nil {
		t.Fatal(err)
	}
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}
	waitTotals(t, env.pr, 2)

	if err := a.Terminate(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-env.stopped:
	case <-time.After(10 * time.Second):
		t.Fatal("terminate frame did not trigger the stop flag")
	}
	_ = a.Close()
	_ = b.Close()

	lines := journalLines(t, env)
	sort.Strings(lines)
	if len(lines) != 2 || lines[0] != "000000000" || lines[1] != "000000001" {
		t.Fatalf("journal = %v, want both values exactly once", lines)
	}
}

// TestSegmentedDelivery drips one frame onto the wire a byte at a time,
// defeating any assumption that a frame arrives within one segment.
func TestSegmentedDelivery(t *testing.T) {
	env := startTestServer(t)

	c, err := loadtest.Dial(env.addr)
	if err != nil {
		t.Fatal(err)
	}
	frame := []byte("000031337\n")
	for _, by := range frame {
		if err := c.SendRaw([]byte{by}); err != nil {
			t.Fatal(err)
		}
		if err := c.Flush(); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	waitTotals(t, env.pr, 1)
	_ = c.Close()

	lines := journalLines(t, env)
	if len(lines) != 1 || lines[0] != "000031337" {
		t.Fatalf("journal = %v", lines)
	}
}

// TestConcurrencyGateHoldsSixthClient replays scenario four: with all five
// worker slots occupied by idle clients, a sixth client's bytes stay
// unread until a slot frees, then flow through untouched.
func TestConcurrencyGateHoldsSixthClient(t *testing.T) {
	env := startTestServer(t)

	occupants := make([]*loadtest.Client, constants.WorkerCount)
	for i := range occupants {
		c, err := loadtest.Dial(env.addr)
		if err != nil {
			t.Fatal(err)
		}
		occupants[i] = c
	}
	time.Sleep(200 * time.Millisecond) // let every occupant claim a worker

	sixth, err := loadtest.Dial(env.addr)
	if err != nil {
		t.Fatal(err)
	}
	if err := sixth.SendValue(424242); err != nil {
		t.Fatal(err)
	}
	if err := sixth.Flush(); err != nil {
		t.Fatal(err)
	}

	// All slots busy: the sixth client's frame must not be processed.
	time.Sleep(500 * time.Millisecond)
	if r, _ := env.pr.Snapshot(); r != 0 {
		t.Fatalf("received = %d while the gate is full, want 0", r)
	}

	// Free one slot; the queued connection is served and the frame lands.
	_ = occupants[0].Close()
	waitTotals(t, env.pr, 1)
	_ = sixth.Close()
	for _, c := range occupants[1:] {
		_ = c.Close()
	}

	lines := journalLines(t, env)
	if len(lines) != 1 || lines[0] != "000424242" {
		t.Fatalf("journal = %v", lines)
	}
}

// TestManyClientsConservation pushes distinct ranges from more clients
// than worker slots and checks full conservation end to end: every value
// journalled exactly once, totals matching the arrival count.
func TestManyClientsConservation(t *testing.T) {
	const clients = 8
	const perClient = 500

	env := startTestServer(t)

	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := loadtest.Dial(env.addr)
			if err != nil {
				t.Errorf("dial: %v", err)
				return
			}
			defer c.Close()
			for v := 0; v < perClient; v++ {
				if err := c.SendValue(uint32(i*perClient + v)); err != nil {
					t.Errorf("send: %v", err)
					return
				}
			}
			if err := c.Flush(); err != nil {
				t.Errorf("flush: %v", err)
			}
		}(i)
	}
	wg.Wait()
	waitTotals(t, env.pr, clients*perClient)

	lines := journalLines(t, env)
	if len(lines) != clients*perClient {
		t.Fatalf("journal has %d lines, want %d", len(lines), clients*perClient)
	}
	seen := make(map[string]bool, len(lines))
	for _, line := range lines {
		if seen[line] {
			t.Fatalf("value %q journalled twice", line)
		}
		seen[line] = true
	}
	env.pr.FlushForTest()
	if r, d := env.pr.Totals(); r != clients*perClient || d != 0 {
		t.Fatalf("totals = (%d, %d), want (%d, 0)", r, d, clients*perClient)
	}
}
