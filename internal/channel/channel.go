// Package channel implements the dedicated-channel lifecycle container:
// a logical channel wraps an L1 slot and the LAPDm entities that ride
// on it (SAPI0 always, SAPI3 for SDCCH/TCH-FACCH), plus the associated
// SACCH companion's own LAPDm link and measurement history, and
// carries the T3101/T3109/T3111/T3113 timer state that decides when it
// may be recycled by the allocator. Each timer is a one-shot deadline
// polled under a mutex by a supervisor tick rather than a dedicated
// per-timer goroutine.
package channel

import (
	"errors"
	"sync"
	"time"

	"github.com/openbts-go/btscore/internal/bitvector"
	"github.com/openbts-go/btscore/internal/l3"
	"github.com/openbts-go/btscore/internal/lapdm"
	"github.com/openbts-go/btscore/internal/measurement"
)

// sacchHistoryPoints bounds the per-channel SACCH measurement-history
// deques (serving and each neighbour); NewHistory derives its default
// age cutoff from this.
const sacchHistoryPoints = 10

// ErrNotRecyclable is returned by Release when called on a channel that
// is not currently assigned.
var ErrNotRecyclable = errors.New("channel: not assigned")

// Type is the logical channel type (GSM 04.03).
type Type int

const (
	TypeSDCCH Type = iota
	TypeTCHFACCH
	TypeSACCH
)

// Default timer durations. T3109 in particular is a cell-configurable
// value; DefaultT3109 is the fallback used absent explicit
// configuration: RADIO-LINK-TIMEOUT(15) * 0.48s * 4, rounded to the
// commonly deployed default.
const (
	DefaultT3101 = 4 * time.Second
	DefaultT3109 = 30 * time.Second
	DefaultT3113 = 7 * time.Second
)

// T3111 is fixed at twice T200; T200 for a dedicated
// channel's SAPI0 is 900ms, so T3111 defaults to 1.8s.
const DefaultT3111 = 2 * 900 * time.Millisecond

// RadioLinkTimeout is the default GSM.CellOptions.RADIO-LINK-TIMEOUT
// countdown (GSM 05.08 §5.2): consecutive bad SACCH periods tolerated
// before a radio-link failure is declared.
const RadioLinkTimeout = 15

// Params carries the per-cell timer/threshold configuration a channel
// is constructed with: the GSM.Timer.T3101/T3109/T3113 values,
// GSM.CellOptions.RADIO-LINK-TIMEOUT, and the
// GSM.Handover.RXLEV_DL.History deque bound for the SACCH companion's
// measurement engine. Zero fields fall back to the package defaults.
type Params struct {
	T3101            time.Duration
	T3109            time.Duration
	T3113            time.Duration
	RadioLinkTimeout int
	HandoverHistory  int
}

// DefaultParams returns the built-in timer/threshold set used when no
// cell configuration is supplied.
func DefaultParams() Params {
	return Params{
		T3101:            DefaultT3101,
		T3109:            DefaultT3109,
		T3113:            DefaultT3113,
		RadioLinkTimeout: RadioLinkTimeout,
		HandoverHistory:  sacchHistoryPoints,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.T3101 <= 0 {
		p.T3101 = d.T3101
	}
	if p.T3109 <= 0 {
		p.T3109 = d.T3109
	}
	if p.T3113 <= 0 {
		p.T3113 = d.T3113
	}
	if p.RadioLinkTimeout <= 0 {
		p.RadioLinkTimeout = d.RadioLinkTimeout
	}
	if p.HandoverHistory <= 0 {
		p.HandoverHistory = d.HandoverHistory
	}
	return p
}

// timer is a one-shot deadline armed relative to a caller-supplied
// "now", polled rather than driven by its own goroutine: this core's
// channel supervisor ticks all channels from one loop, so there is no
// need for a timer-per-channel goroutine.
type timer struct {
	armed    bool
	deadline time.Time
}

func (t *timer) arm(now time.Time, d time.Duration) {
	t.armed = true
	t.deadline = now.Add(d)
}

func (t *timer) disarm() { t.armed = false }

func (t *timer) expired(now time.Time) bool {
	return t.armed && !now.Before(t.deadline)
}

// Sacch is the SACCH companion implicitly carried by every SDCCH and
// TCH/FACCH: its own LAPDm link (SAPI0, N200=5 per GSM 04.08 §11.1.2)
// and the measurement-history deques fed by decoded uplink Measurement
// Reports.
type Sacch struct {
	Link    *lapdm.Link
	History *measurement.History
}

// Channel is one dedicated logical channel slot: an SDCCH or a
// TCH/FACCH, always paired with a SACCH companion once assigned.
type Channel struct {
	mu sync.Mutex

	typ      Type
	params   Params
	assigned bool
	released bool

	// SAPI0 carries RR/MM/CC signalling and is mandatory on every
	// dedicated channel (GSM 04.06 §3.2). SAPI3 carries point-to-point
	// SMS and is only meaningful on SDCCH/TCH-FACCH, never on the SACCH
	// itself (nil for a TypeSACCH channel, which has none of its own --
	// its SACCH field below is what the SDCCH/FACCH channel drives).
	SAPI0 *lapdm.Link
	SAPI3 *lapdm.Link

	// Sacch is nil for a TypeSACCH channel (it has no companion of its
	// own) and non-nil for SDCCH/TCH-FACCH.
	Sacch *Sacch

	stop chan struct{}

	t3101 timer
	t3109 timer
	t3111 timer
	t3113 timer

	radioLinkCounter int // counts down from RadioLinkTimeout; 0 => declare failure
}

// New constructs an unassigned channel of the given type with the
// package-default timers, ready to be handed out by an allocator.
func New(typ Type) *Channel { return NewWithParams(typ, DefaultParams()) }

// NewWithParams constructs an unassigned channel of the given type with
// a cell-specific timer/threshold set. SAPI0 (and, for SDCCH/TCH-FACCH,
// SAPI3 plus a SACCH companion) are constructed here so that the
// caller's allocator/uplink path has something to drive as soon as the
// channel is assigned; their Run loops are started by Assign and
// stopped by Recycle.
func NewWithParams(typ Type, p Params) *Channel {
	p = p.withDefaults()
	c := &Channel{typ: typ, params: p, radioLinkCounter: p.RadioLinkTimeout}
	c.SAPI0 = lapdm.NewLink(lapdm.Address{SAPI: lapdm.SAPIRR}, n200For(typ))
	if typ == TypeSDCCH || typ == TypeTCHFACCH {
		c.SAPI3 = lapdm.NewLink(lapdm.Address{SAPI: lapdm.SAPISMS}, n200For(typ))
		c.Sacch = &Sacch{
			Link:    lapdm.NewLink(lapdm.Address{SAPI: lapdm.SAPIRR}, lapdm.N200SACCH),
			History: measurement.NewHistory(p.HandoverHistory, 0),
		}
	}
	return c
}

func n200For(typ Type) int {
	switch typ {
	case TypeTCHFACCH:
		return lapdm.N200FACCH
	case TypeSACCH:
		return lapdm.N200SACCH
	default:
		return lapdm.N200SDCCH
	}
}

// Type reports the channel's logical type.
func (c *Channel) Type() Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typ
}

// Assign marks the channel in-use, arms T3101, resets both LAPDm
// entities and the SACCH companion to idle, and starts their Run
// loops for the lifetime of this assignment.
func (c *Channel) Assign(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assigned = true
	c.released = false
	c.radioLinkCounter = c.params.RadioLinkTimeout
	c.t3101.arm(now, c.params.T3101)
	c.t3109.disarm()
	c.t3111.disarm()
	c.t3113.disarm()

	c.SAPI0.Reset()
	if c.SAPI3 != nil {
		c.SAPI3.Reset()
	}
	if c.Sacch != nil {
		c.Sacch.Link.Reset()
	}

	if c.stop != nil {
		// Reclaimed straight from released state without an intervening
		// Sweep/Recycle: stop the previous assignment's Run loops first.
		close(c.stop)
	}
	c.stop = make(chan struct{})
	go c.SAPI0.Run(c.stop)
	if c.SAPI3 != nil {
		go c.SAPI3.Run(c.stop)
	}
	if c.Sacch != nil {
		go c.Sacch.Link.Run(c.stop)
	}
}

// GoodUplinkHeard disarms T3101 (first good uplink received) and resets
// the radio-link-failure counter toward its ceiling.
func (c *Channel) GoodUplinkHeard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t3101.disarm()
	if c.radioLinkCounter < c.params.RadioLinkTimeout {
		c.radioLinkCounter++
	}
}

// ArmPaging starts T3113 (paging response timeout, GSM.Timer.T3113).
func (c *Channel) ArmPaging(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t3113.arm(now, c.params.T3113)
}

// PagingAnswered disarms T3113.
func (c *Channel) PagingAnswered() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t3113.disarm()
}

// BadSACCHPeriod decrements the radio-link-failure counter by one
// (GSM 05.08 §5.2-5.3). It reports true once the counter reaches zero,
// at which point the caller must declare radio-link failure and arm
// T3109 via ArmRadioLinkFailure.
func (c *Channel) BadSACCHPeriod() (failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.radioLinkCounter > 0 {
		c.radioLinkCounter--
	}
	return c.radioLinkCounter == 0
}

// ArmRadioLinkFailure arms T3109 with the cell's configured
// GSM.Timer.T3109 (which must exceed RADIO-LINK-TIMEOUT*0.48s, enforced
// at config load).
func (c *Channel) ArmRadioLinkFailure(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t3109.arm(now, c.params.T3109)
}

// IngestSacchMeasurement decodes an uplink SACCH L3 payload and, if it
// is a Measurement Report, records it into the channel's SACCH
// measurement history. Any other SACCH L3 message (e.g. an RR
// Measurement Information downlink echo, or a decode failure) is
// ignored: this entry point only feeds the handover/radio-link-failure
// engine, it is not the general SACCH signalling path.
func (c *Channel) IngestSacchMeasurement(now uint32, payload []byte, freqIndexToARFCN func(int) (uint16, bool)) {
	if c.Sacch == nil {
		return
	}
	bv := bitvector.NewFromBytes(payload)
	msg, _, err := l3.Decode(bv)
	if err != nil {
		return
	}
	mr, ok := msg.(*l3.MeasurementReport)
	if !ok {
		return
	}
	c.Sacch.History.IngestMeasurementReport(now, *mr, freqIndexToARFCN)
}

// RunSacchIngest drains the SACCH link's Deliver channel, feeding every
// decoded payload to IngestSacchMeasurement, until stop is closed. The
// caller runs this as a goroutine per assigned SDCCH/TCH-FACCH channel.
func (c *Channel) RunSacchIngest(stop <-chan struct{}, nowFrame func() uint32, freqIndexToARFCN func(int) (uint16, bool)) {
	if c.Sacch == nil {
		return
	}
	for {
		select {
		case <-stop:
			return
		case payload := <-c.Sacch.Link.Deliver():
			c.IngestSacchMeasurement(nowFrame(), payload, freqIndexToARFCN)
		}
	}
}

// Release marks the channel released and arms T3111; the caller is
// responsible for silencing the SACCH and flushing queued downlink
// traffic before T3111 expires. Each LAPDm entity that is still
// established is disconnected, so its peer receives a DISC rather than
// silence.
func (c *Channel) Release(now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.assigned {
		return ErrNotRecyclable
	}
	c.released = true
	c.t3101.disarm()
	c.t3111.arm(now, DefaultT3111)
	if c.SAPI0.State() == lapdm.StateEstablished {
		c.SAPI0.Disconnect()
	}
	if c.SAPI3 != nil && c.SAPI3.State() == lapdm.StateEstablished {
		c.SAPI3.Disconnect()
	}
	return nil
}

// Recyclable reports whether the channel has been released and both
// T3111 and any armed T3109 have expired.
func (c *Channel) Recyclable(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.released {
		return false
	}
	if c.t3111.armed && !c.t3111.expired(now) {
		return false
	}
	if c.t3109.armed && !c.t3109.expired(now) {
		return false
	}
	return true
}

// Recycle returns the channel to the unassigned pool, stopping both
// LAPDm entities' Run loops and resetting their state.
func (c *Channel) Recycle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assigned = false
	c.released = false
	c.t3101.disarm()
	c.t3109.disarm()
	c.t3111.disarm()
	c.t3113.disarm()
	c.radioLinkCounter = c.params.RadioLinkTimeout
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.SAPI0.Reset()
	if c.SAPI3 != nil {
		c.SAPI3.Reset()
	}
	if c.Sacch != nil {
		c.Sacch.Link.Reset()
	}
}

// T3101Expired reports whether T3101 has fired without a disarm (no
// uplink ever heard), meaning the caller should release the channel.
func (c *Channel) T3101Expired(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t3101.expired(now)
}

// T3113Expired reports whether the paging-response timer fired.
func (c *Channel) T3113Expired(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t3113.expired(now)
}

// Assigned reports whether the channel is currently handed out.
func (c *Channel) Assigned() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.assigned
}
