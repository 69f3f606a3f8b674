// wait.go
//
// Consumer wait disciplines for the hand-off ring, mirroring the classic
// ring-buffer strategy set {Block, Sleep, Yield, Busy}.  The strategy only
// governs what the *consumer* does when the ring runs dry; producers never
// touch it except for the O(1) Wake hook on publish.
//
//	Block  park on a condition variable          lowest idle CPU (default)
//	Sleep  short timed sleep after a spin budget low idle CPU, µs wakeup
//	Yield  runtime.Gosched every miss            medium CPU, ns wakeup
//	Busy   pure spin with PAUSE                  one core burned, min latency
//
// Busy borrows the teacher ring's hot/cold split: while the control layer
// reports recent producer activity the spin stays tight; after the
// activity flag cools down the loop inserts cpuRelax so a quiet feed stops
// saturating the core.

package ring

import (
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"main/control"
)

// Strategy is the pluggable idle policy consumed by Ring.
type Strategy interface {
	// Idle is invoked by the consumer after an empty drain pass.
	Idle()
	// Wake is invoked by producers after publish and by shutdown; it must
	// be cheap when no consumer is parked.
	Wake()
}

// StrategyFor maps a configuration name onto a strategy instance.
// Matching is case-insensitive; unrecognized names fall back to Block,
// the discipline with the lowest idle cost.
func StrategyFor(name string) Strategy {
	switch strings.ToLower(name) {
	case "sleep":
		return &sleepStrategy{}
	case "yield":
		return yieldStrategy{}
	case "busy":
		return busyStrategy{}
	case "block", "":
		return newBlockStrategy()
	}
	return newBlockStrategy()
}

// ─────────────────────────────── Block ─────────────────────────────────────

// blockStrategy parks the consumer on a condition variable. The parked
// flag keeps the producer-side Wake down to one atomic store and one
// atomic load unless a consumer is actually waiting, so the hot publish
// path stays lock-free.
type blockStrategy struct {
	mu      sync.Mutex
	cond    *sync.Cond
	parked  uint32
	pending uint32
}

func newBlockStrategy() *blockStrategy {
	b := &blockStrategy{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *blockStrategy) Idle() {
	b.mu.Lock()
	// parked must be visible before the pending check: a producer that
	// misses the parked flag is guaranteed to have stored pending first,
	// so the swap below observes it and the park is skipped. No ordering
	// lets a publish slip between the two unseen.
	atomic.StoreUint32(&b.parked, 1)
	if atomic.SwapUint32(&b.pending, 0) == 0 {
		b.cond.Wait()
	}
	atomic.StoreUint32(&b.parked, 0)
	b.mu.Unlock()
}

func (b *blockStrategy) Wake() {
	atomic.StoreUint32(&b.pending, 1)
	if atomic.LoadUint32(&b.parked) != 0 {
		b.mu.Lock()
		b.cond.Signal()
		b.mu.Unlock()
	}
}

// ─────────────────────────────── Sleep ─────────────────────────────────────

const (
	// sleepSpinBudget is the number of empty passes tolerated before the
	// Sleep discipline actually naps.
	sleepSpinBudget = 256

	// sleepDuration is the nap length once the budget is spent; wakeup
	// latency is bounded by it.
	sleepDuration = 50 * time.Microsecond
)

// sleepStrategy spins through a small miss budget, then naps for tens of
// microseconds. Wakeup latency is bounded by the nap length.
type sleepStrategy struct {
	miss int
}

func (s *sleepStrategy) Idle() {
	if s.miss++; s.miss < sleepSpinBudget {
		cpuRelax()
		return
	}
	s.miss = 0
	time.Sleep(sleepDuration)
}

func (s *sleepStrategy) Wake() {}

// ─────────────────────────────── Yield ─────────────────────────────────────

// yieldStrategy hands the thread back to the scheduler on every miss.
type yieldStrategy struct{}

func (yieldStrategy) Idle() { runtime.Gosched() }
func (yieldStrategy) Wake() {}

// ─────────────────────────────── Busy ──────────────────────────────────────

// busyStrategy spins. While the control layer reports producer activity
// the loop stays tight; once the feed cools down, cpuRelax backs the spin
// off to keep a quiet server from pinning a core at 100% heat.
type busyStrategy struct{}

func (busyStrategy) Idle() {
	control.PollCooldown()
	if control.Hot() {
		return // tight spin during bursts
	}
	cpuRelax()
}

func (busyStrategy) Wake() {}
