// ring.go
//
// Bounded multi-producer/single-consumer ring buffer carrying fixed-width
// nine-byte payloads between the connection workers and the journal
// consumer.  Producer and consumer cursors live on separate cache-lines to
// eliminate false-sharing, and each slot carries a sequence stamp so
// publish/consume need no locks: a producer claims a slot with one CAS on
// the tail cursor, copies its payload in, and releases the slot with a
// single atomic store.
//
// Slot ownership protocol (capacity C, slot index t&mask):
//
//	seq == t       slot free, claimable by the producer holding ticket t
//	seq == t+1     slot published, readable by the consumer at ticket t
//	seq == t+C     slot recycled, claimable again at ticket t+C
//
// The consumer owns the head cursor exclusively; producers contend only on
// the tail CAS, which bounds any producer's wait to the retry of a single
// instruction — no producer can be starved while the ring has space.

package ring

import (
	"sync/atomic"

	"main/constants"
)

// slot couples a payload with its sequence stamp. Payloads are copied in,
// never referenced, so producers retain nothing after publish.
type slot struct {
	seq  uint64
	data [constants.DigitCount]byte
}

// Ring is the fixed-capacity MPSC hand-off buffer. All payload storage is
// pre-allocated by New; steady-state operation performs zero allocations.
type Ring struct {
	_    [64]byte // tail isolated on its own cache-line
	tail uint64   // next ticket to be claimed by a producer
	//lint:ignore U1000 padding keeps tail & head on different cache-lines
	_pad1 [56]byte
	head  uint64 // next ticket to be consumed; consumer-owned
	//lint:ignore U1000 padding keeps hot cursors away from metadata
	_pad2 [56]byte
	mask  uint64
	buf   []slot
	wait  Strategy
}

// New allocates a ring of the given power-of-two capacity with the given
// consumer wait strategy. Panics on invalid sizes so the masking
// arithmetic stays valid.
func New(size int, wait Strategy) *Ring {
	if size <= 0 || size&(size-1) != 0 {
		panic("ring: size must be >0 and a power of two")
	}
	r := &Ring{
		mask: uint64(size - 1),
		buf:  make([]slot, size),
		wait: wait,
	}
	for i := range r.buf {
		r.buf[i].seq = uint64(i)
	}
	return r
}

// Cap returns the slot capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Len returns the number of published-but-unconsumed slots. Approximate
// under concurrent producers; exact when the producers are quiescent.
func (r *Ring) Len() int {
	return int(atomic.LoadUint64(&r.tail) - atomic.LoadUint64(&r.head))
}

// Push claims the next free slot, copies p into it, and publishes it.
// Returns false when the ring is full; the caller decides how to wait
// (journal producers spin-yield until space frees, which is the disk→
// network backpressure path).
//
//go:nosplit
func (r *Ring) Push(p *[constants.DigitCount]byte) bool {
	for {
		t := atomic.LoadUint64(&r.tail)
		s := &r.buf[t&r.mask]
		seq := atomic.LoadUint64(&s.seq)
		switch {
		case seq == t:
			// Slot free at our ticket: race other producers for it.
			if atomic.CompareAndSwapUint64(&r.tail, t, t+1) {
				s.data = *p
				atomic.StoreUint64(&s.seq, t+1) // release: payload visible first
				r.wait.Wake()
				return true
			}
			// Lost the CAS; another producer took ticket t. Retry with
			// the advanced tail.
		case seq < t:
			// Consumer has not recycled this slot yet: ring is full.
			return false
		default:
			// seq > t: tail moved between our load and the slot read.
			// Loop and reload.
		}
	}
}

// Consume drains every slot published at the moment the drain begins,
// invoking fn on each payload in ticket order, and returns the number of
// slots processed. The returned count is the batch size used by the
// journal consumer as its statistics boundary: it stops at the first
// unpublished slot, so slots published while the drain runs join the
// current batch.
//
// Single-consumer only; the head cursor is deliberately non-atomic on the
// read side because exactly one goroutine owns it.
//
//go:nosplit
func (r *Ring) Consume(fn func(*[constants.DigitCount]byte)) int {
	n := 0
	h := r.head
	for {
		s := &r.buf[h&r.mask]
		if atomic.LoadUint64(&s.seq) != h+1 {
			break // next slot not yet published — end of batch
		}
		fn(&s.data)
		atomic.StoreUint64(&s.seq, h+uint64(len(r.buf))) // recycle
		h++
		n++
	}
	if n != 0 {
		atomic.StoreUint64(&r.head, h)
	}
	return n
}

// Idle parks the consumer according to the configured wait strategy.
// Called by the journal consumer after an empty Consume; the strategy
// decides between blocking, sleeping, yielding, and spinning.
func (r *Ring) Idle() {
	r.wait.Idle()
}

// WakeConsumer forces a parked Block-strategy consumer to re-check its
// exit conditions. Called once during shutdown so a quiet ring never
// strands the drain loop.
func (r *Ring) WakeConsumer() {
	r.wait.Wake()
}
