// Package l1link implements the L1 collaborator surface: an opaque
// frontend the core only ever calls through WriteHighSide (enqueue a
// burst, block until its scheduled slot) and that delivers decoded
// uplink frames upward through a WriteLowSide callback. This package
// supplies two concrete transports for that interface: a real tty
// using github.com/pkg/term, and a loopback pty pair for local
// development and tests.
package l1link

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/pkg/term"
)

// ErrClosed is returned by WriteHighSide after Close has been called.
var ErrClosed = errors.New("l1link: link closed")

// Frame is one fixed-size L2 burst exchanged with L1 (23 octets for a
// LAPDm frame on a dedicated channel; this package treats it as an
// opaque byte slice, since framing is the lapdm package's concern).
type Frame []byte

// WriteLowSide is the upcall L1 uses to deliver a decoded uplink frame
// to its installed callback.
type WriteLowSide func(Frame)

// Link is the reference L1 collaborator. Its exported surface covers
// exactly the operations the core needs: write a frame for the next
// scheduled slot (blocking until that slot's start time), and receive
// decoded frames via an installed callback.
type Link struct {
	mu      sync.Mutex
	rw      io.ReadWriter
	closed  bool
	onFrame WriteLowSide

	slotPeriod time.Duration
	nextWrite  time.Time
}

// Option configures a Link at construction.
type Option func(*Link)

// WithSlotPeriod overrides the default TDMA frame period used to
// compute NextWriteTime.
func WithSlotPeriod(d time.Duration) Option {
	return func(l *Link) { l.slotPeriod = d }
}

const defaultSlotPeriod = 120 * time.Millisecond / 26 // GSM TDMA frame, ~4.615ms

// OpenTTY opens a real serial device as the L1 transport, using
// pkg/term for framed byte-stream radios.
func OpenTTY(device string, baud int, opts ...Option) (*Link, error) {
	t, err := term.Open(device, term.Speed(baud), term.RawMode)
	if err != nil {
		return nil, err
	}
	return newLink(t, opts...), nil
}

// LoopbackPair spawns a pty pair and returns a Link bound to the master
// side plus the slave side's device name and a function that closes
// both sides, so a test harness (or a bench-test
// "radio simulator" goroutine) can act as the peer for local
// development without real radio hardware.
func LoopbackPair(opts ...Option) (link *Link, slaveName string, closeFn func() error, err error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, "", nil, err
	}
	return newLink(master, opts...), slave.Name(), func() error {
		slave.Close()
		return master.Close()
	}, nil
}

func newLink(rw io.ReadWriter, opts ...Option) *Link {
	l := &Link{rw: rw, slotPeriod: defaultSlotPeriod, nextWrite: time.Now()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NextWriteTime reports the next scheduled TDMA slot boundary this link
// will release a blocked WriteHighSide call at.
func (l *Link) NextWriteTime() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextWrite
}

// WriteHighSide enqueues frame for transmission, blocking until the
// next scheduled slot start time. ctx allows the caller
// (the CCCH/LAPDm service loop) to abort the wait on shutdown.
func (l *Link) WriteHighSide(ctx context.Context, frame Frame) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	wait := time.Until(l.nextWrite)
	rw := l.rw
	l.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	if _, err := rw.Write(frame); err != nil {
		return err
	}

	l.mu.Lock()
	l.nextWrite = l.nextWrite.Add(l.slotPeriod)
	l.mu.Unlock()
	return nil
}

// SetWriteLowSide installs the callback invoked for each frame the
// receive loop decodes.
func (l *Link) SetWriteLowSide(fn WriteLowSide) {
	l.mu.Lock()
	l.onFrame = fn
	l.mu.Unlock()
}

// ReceiveLoop reads fixed-size frames of frameBytes length until ctx is
// cancelled or the underlying transport errors, delivering each via the
// installed WriteLowSide callback.
func (l *Link) ReceiveLoop(ctx context.Context, frameBytes int) error {
	buf := make([]byte, frameBytes)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := io.ReadFull(l.rw, buf)
		if err != nil {
			return err
		}
		l.mu.Lock()
		cb := l.onFrame
		l.mu.Unlock()
		if cb != nil {
			frame := make(Frame, n)
			copy(frame, buf[:n])
			cb(frame)
		}
	}
}

// Close releases the underlying transport.
func (l *Link) Close() error {
	l.mu.Lock()
	l.closed = true
	rw := l.rw
	l.mu.Unlock()
	if closer, ok := rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
