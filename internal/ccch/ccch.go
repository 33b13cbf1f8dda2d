// Package ccch implements the CCCH scheduler: one service loop per
// downlink CCCH group draining a RACH queue, a paging queue, and a
// GPRS immediate-assignment queue against the 51-multiframe's
// precomputed paging-block positions, falling back to an idle filler
// frame when there is no work. Priority order is pages, then RACHes,
// then GPRS, then queued immediate-assignment rejects, then idle
// filler; each queue is a single mutex-protected
// FIFO, the same multi-producer/single-consumer shape internal/lapdm
// uses for its per-link event queue.
package ccch

import (
	"sync"
	"time"

	"github.com/openbts-go/btscore/internal/l3"
	"github.com/openbts-go/btscore/internal/rr"
)

// Page is one entry in the paging queue: an identity to page plus a
// retry flag.
type Page struct {
	Identity string
	SentOnce bool
}

// GprsAssign is a queued GPRS CCCH immediate-assignment, carrying the
// DRX window start step 4 checks against.
type GprsAssign struct {
	Payload      []byte
	DrxBeginTime time.Time
	Arrival      time.Time
}

// Work is what one scheduler tick decided to transmit.
type Work int

const (
	WorkIdleFiller Work = iota
	WorkPage
	WorkRach
	WorkGprsAssign
	WorkReject
)

// NMO is the GSM 04.08 Network Mode of Operation cell option: how
// tightly CS and GPRS signalling are coordinated on the CCCH. NMO III
// runs GPRS and CS mobiles on fully separate channels, so a GPRS
// immediate-assignment may never piggyback on a CS paging slot the way
// NMO I/II
// allow.
type NMO int

const (
	NMOI NMO = iota
	NMOII
	NMOIII
)

// RejectQueue batches congestion rejections into one GSM 04.08 §9.1.20
// ImmediateAssignmentReject carrying up to 4 (request reference, T3122)
// pairs per message, reducing CCCH occupancy under congestion rather
// than sending one reject message per rejected request.
type RejectQueue struct {
	mu              sync.Mutex
	pending         []l3.RequestReference
	congestionCount int
}

// NewRejectQueue constructs an empty RejectQueue.
func NewRejectQueue() *RejectQueue { return &RejectQueue{} }

// Reject enqueues ref (the RACH that could not be admitted) and bumps
// the congestion counter the T3122 backoff scales with.
func (q *RejectQueue) Reject(ref l3.RequestReference) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, ref)
	if q.congestionCount < 255 {
		q.congestionCount++
	}
}

// Drain returns a batch of up to 4 pending rejections as one message,
// or false if nothing is pending. The congestion counter decays by one
// on every successful drain, so a sustained idle period brings T3122
// back down over time.
func (q *RejectQueue) Drain() (*l3.ImmediateAssignmentReject, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, false
	}
	n := len(q.pending)
	if n > 4 {
		n = 4
	}
	batch := q.pending[:n]
	q.pending = q.pending[n:]

	wait := t3122Seconds(q.congestionCount)
	msg := &l3.ImmediateAssignmentReject{}
	for _, ref := range batch {
		msg.RequestReferences = append(msg.RequestReferences, ref)
		msg.WaitIndications = append(msg.WaitIndications, wait)
	}
	if q.congestionCount > 0 {
		q.congestionCount--
	}
	return msg, true
}

// t3122Seconds derives a GSM 04.08 §10.5.2.43-valid T3122 backoff
// (1-255s) from the observed congestion count, standing in for the
// removed GSM.Timer.T3122Min/Max config keys: the more rejections seen recently, the longer the
// backoff offered to the next rejected mobile.
func t3122Seconds(congestionCount int) byte {
	v := 2 + congestionCount*4
	if v > 255 {
		v = 255
	}
	if v < 1 {
		v = 1
	}
	return byte(v)
}

// Queues holds the three multi-producer/single-consumer work queues a
// CCCH group drains, each protected by its own mutex so that enqueuing
// from another goroutine never blocks on the scheduler's own tick.
type Queues struct {
	rachMu sync.Mutex
	rach   []*rr.Rach

	pageMu sync.Mutex
	page   []*Page

	gprsMu sync.Mutex
	gprs   []*GprsAssign
}

// NewQueues constructs an empty queue set.
func NewQueues() *Queues { return &Queues{} }

// EnqueueRach appends r to the RACH queue (FIFO).
func (q *Queues) EnqueueRach(r *rr.Rach) {
	q.rachMu.Lock()
	defer q.rachMu.Unlock()
	q.rach = append(q.rach, r)
}

// EnqueuePage appends p to the paging queue (FIFO on first insertion).
func (q *Queues) EnqueuePage(p *Page) {
	q.pageMu.Lock()
	defer q.pageMu.Unlock()
	q.page = append(q.page, p)
}

// EnqueueGprsAssign appends g to the GPRS immediate-assignment queue in
// arrival order.
func (q *Queues) EnqueueGprsAssign(g *GprsAssign) {
	q.gprsMu.Lock()
	defer q.gprsMu.Unlock()
	q.gprs = append(q.gprs, g)
}

// drainOnePage pops the front page. If it had already been sent once it
// is retired (removed); otherwise it resurfaces at the back of the
// queue, since each page entry is sent twice before being dropped.
func (q *Queues) drainOnePage() (*Page, bool) {
	q.pageMu.Lock()
	defer q.pageMu.Unlock()
	if len(q.page) == 0 {
		return nil, false
	}
	p := q.page[0]
	q.page = q.page[1:]
	if !p.SentOnce {
		p.SentOnce = true
		q.page = append(q.page, p)
	}
	return p, true
}

func (q *Queues) drainOneRach() (*rr.Rach, bool) {
	q.rachMu.Lock()
	defer q.rachMu.Unlock()
	if len(q.rach) == 0 {
		return nil, false
	}
	r := q.rach[0]
	q.rach = q.rach[1:]
	return r, true
}

// drainSendableGprs scans the GPRS queue in arrival order, moving
// entries already past their DRX-begin time to the paging queue and
// returning the first entry still eligible to send directly. Expired
// entries are collected under gprsMu and re-enqueued as pages only
// after it is released; no two queue mutexes are ever held at once.
func (q *Queues) drainSendableGprs(now time.Time) (*GprsAssign, bool) {
	q.gprsMu.Lock()
	var expired []*GprsAssign
	var out *GprsAssign
	for len(q.gprs) > 0 {
		g := q.gprs[0]
		q.gprs = q.gprs[1:]
		if now.After(g.DrxBeginTime) {
			expired = append(expired, g)
			continue
		}
		out = g
		break
	}
	q.gprsMu.Unlock()

	for _, g := range expired {
		q.EnqueuePage(&Page{Identity: string(g.Payload)})
	}
	return out, out != nil
}

// maxRachAgeFrames caps how stale an access request may still be
// answered: 5 * 51 * 4.2 TDMA frames (GSM 04.08 §3.3.1.1.2).
const maxRachAgeFrames = 1071

// DefaultSMaxAgeFrames is the maximum age (in TDMA frames) a RACH may
// sit in the queue before its preallocated channel is released and the
// RACH discarded, used as the fallback absent a configured TxInteger
// (SMaxAgeFrames derives the per-cell value).
const DefaultSMaxAgeFrames = maxRachAgeFrames - 6

// rachSpreadSlots maps GSM.RACH.TxInteger (0-15) to the T parameter of
// GSM 04.08 Table 3.1: the number of RACH slots retransmissions are
// spread over.
var rachSpreadSlots = [16]uint32{3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 14, 16, 20, 25, 32, 50}

// rachSParam returns the S parameter of GSM 04.08 §3.3.1.1.2 for a
// non-combined CCCH configuration, keyed by the T value.
func rachSParam(t uint32) uint32 {
	switch t {
	case 3, 8, 14, 50:
		return 55
	case 4, 9, 16:
		return 76
	case 5, 10, 20:
		return 109
	case 6, 11, 25:
		return 163
	default:
		return 217
	}
}

// SMaxAgeFrames derives the per-cell RACH age bound from
// GSM.RACH.TxInteger: min(T + 2S, 5*51*4.2) - 6 frames, the window
// within which the mobile is still listening for its assignment
// (GSM 04.08 §3.3.1.1.2). Out-of-range indices are clamped.
func SMaxAgeFrames(txInteger int) uint32 {
	if txInteger < 0 {
		txInteger = 0
	}
	if txInteger > 15 {
		txInteger = 15
	}
	t := rachSpreadSlots[txInteger]
	age := t + 2*rachSParam(t)
	if age > maxRachAgeFrames {
		age = maxRachAgeFrames
	}
	return age - 6
}

// Scheduler drives one CCCH group's service loop: on every CCCH-
// carrying 51-multiframe position it runs Tick, which implements
// five-step priority order.
type Scheduler struct {
	Queues *Queues

	// HoldOff reports whether the BTS is currently refusing new
	// allocations.
	HoldOff func() bool

	// IsPagingSlot reports whether frame fn (mod 51) is a paging-block
	// position, via the precomputed reverse index.
	IsPagingSlot func(fn uint32) bool

	// ReleasePreallocated is called when a RACH has aged past SMaxAge;
	// the caller must issue an L3_HARDRELEASE_REQUEST on the
	// preallocated channel.
	ReleasePreallocated func(r *rr.Rach)

	SMaxAgeFrames uint32

	// NMO gates whether a GPRS immediate-assignment may be drained
	// from a CS paging slot (NMO III: never).
	NMO NMO

	// Reject batches congestion rejections into
	// ImmediateAssignmentReject messages; nil disables reject
	// transmission (rejections are then simply discarded).
	Reject *RejectQueue
}

// NewScheduler constructs a Scheduler over q.
func NewScheduler(q *Queues) *Scheduler {
	return &Scheduler{Queues: q, SMaxAgeFrames: DefaultSMaxAgeFrames, Reject: NewRejectQueue()}
}

// Tick runs one ccch_service_queue pass for TDMA frame fn at time now,
// returning what kind of work (if any) was selected. The caller is
// responsible for actually encoding and transmitting the corresponding
// frame; Tick only performs queue bookkeeping and selection.
func (s *Scheduler) Tick(now time.Time, fn uint32) (Work, any) {
	if s.HoldOff != nil && s.HoldOff() {
		return WorkIdleFiller, nil
	}

	if s.IsPagingSlot != nil && s.IsPagingSlot(fn) {
		if p, ok := s.Queues.drainOnePage(); ok {
			return WorkPage, p
		}
		if s.NMO != NMOIII {
			if g, ok := s.Queues.drainSendableGprs(now); ok {
				return WorkGprsAssign, g
			}
		}
		return WorkIdleFiller, nil
	}

	for {
		r, ok := s.Queues.drainOneRach()
		if !ok {
			break
		}
		if s.tooOld(now, r) {
			if s.ReleasePreallocated != nil {
				s.ReleasePreallocated(r)
			}
			continue
		}
		return WorkRach, r
	}

	if g, ok := s.Queues.drainSendableGprs(now); ok {
		return WorkGprsAssign, g
	}

	if s.Reject != nil {
		if msg, ok := s.Reject.Drain(); ok {
			return WorkReject, msg
		}
	}

	return WorkIdleFiller, nil
}

// tdmaFramePeriod is the GSM TDMA frame duration, 120ms/26 (~4.615ms).
const tdmaFramePeriod = 120 * time.Millisecond / 26

func (s *Scheduler) tooOld(now time.Time, r *rr.Rach) bool {
	if r.ReadyTime.After(now) {
		return false
	}
	age := now.Sub(r.When)
	maxAge := time.Duration(s.SMaxAgeFrames) * tdmaFramePeriod
	return age > maxAge
}
