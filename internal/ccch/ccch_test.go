package ccch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbts-go/btscore/internal/l3"
	"github.com/openbts-go/btscore/internal/rr"
)

func TestTickPrefersPagingSlotOverRach(t *testing.T) {
	q := NewQueues()
	q.EnqueuePage(&Page{Identity: "IMSI1"})
	q.EnqueueRach(&rr.Rach{RA: 0x04})

	s := NewScheduler(q)
	s.IsPagingSlot = func(fn uint32) bool { return true }

	work, item := s.Tick(time.Now(), 12)
	assert.Equal(t, WorkPage, work)
	assert.Equal(t, "IMSI1", item.(*Page).Identity)
}

func TestPageResurfacesOnceThenRetires(t *testing.T) {
	q := NewQueues()
	q.EnqueuePage(&Page{Identity: "IMSI1"})

	p1, ok := q.drainOnePage()
	require.True(t, ok)
	assert.True(t, p1.SentOnce)

	p2, ok := q.drainOnePage()
	require.True(t, ok)
	assert.Same(t, p1, p2)

	_, ok = q.drainOnePage()
	assert.False(t, ok)
}

func TestTickDrainsRachWhenNotPagingSlot(t *testing.T) {
	q := NewQueues()
	r := &rr.Rach{RA: 0x04, When: time.Now(), ReadyTime: time.Now().Add(-time.Second)}
	q.EnqueueRach(r)

	s := NewScheduler(q)
	s.IsPagingSlot = func(fn uint32) bool { return false }

	work, item := s.Tick(time.Now(), 7)
	assert.Equal(t, WorkRach, work)
	assert.Same(t, r, item.(*rr.Rach))
}

func TestTickReleasesAgedRachAndContinues(t *testing.T) {
	q := NewQueues()
	old := &rr.Rach{RA: 0x04, When: time.Now().Add(-time.Hour), ReadyTime: time.Now().Add(-time.Minute)}
	fresh := &rr.Rach{RA: 0x05, When: time.Now(), ReadyTime: time.Now().Add(-time.Second)}
	q.EnqueueRach(old)
	q.EnqueueRach(fresh)

	var released *rr.Rach
	s := NewScheduler(q)
	s.IsPagingSlot = func(fn uint32) bool { return false }
	s.SMaxAgeFrames = 10
	s.ReleasePreallocated = func(r *rr.Rach) { released = r }

	work, item := s.Tick(time.Now(), 7)
	assert.Equal(t, WorkRach, work)
	assert.Same(t, fresh, item.(*rr.Rach))
	assert.Same(t, old, released)
}

func TestTickFallsBackToIdleFiller(t *testing.T) {
	q := NewQueues()
	s := NewScheduler(q)
	s.IsPagingSlot = func(fn uint32) bool { return false }

	work, _ := s.Tick(time.Now(), 1)
	assert.Equal(t, WorkIdleFiller, work)
}

func TestTickRespectsHoldOff(t *testing.T) {
	q := NewQueues()
	q.EnqueueRach(&rr.Rach{RA: 0x04, ReadyTime: time.Now().Add(-time.Second)})
	s := NewScheduler(q)
	s.HoldOff = func() bool { return true }

	work, _ := s.Tick(time.Now(), 1)
	assert.Equal(t, WorkIdleFiller, work)
}

func TestDrainSendableGprsMovesExpiredEntryToPagingAndSendsFutureOne(t *testing.T) {
	q := NewQueues()
	q.EnqueueGprsAssign(&GprsAssign{Payload: []byte("expired"), DrxBeginTime: time.Now().Add(-10 * time.Millisecond)})
	q.EnqueueGprsAssign(&GprsAssign{Payload: []byte("future"), DrxBeginTime: time.Now().Add(200 * time.Millisecond)})

	g, ok := q.drainSendableGprs(time.Now())
	require.True(t, ok)
	assert.Equal(t, "future", string(g.Payload))

	p, ok := q.drainOnePage()
	require.True(t, ok)
	assert.Equal(t, "expired", p.Identity)
}

func TestNMOIIISuppressesGprsPiggybackOnPagingSlot(t *testing.T) {
	q := NewQueues()
	q.EnqueueGprsAssign(&GprsAssign{Payload: []byte("a"), DrxBeginTime: time.Now().Add(200 * time.Millisecond)})

	s := NewScheduler(q)
	s.NMO = NMOIII
	s.IsPagingSlot = func(fn uint32) bool { return true }

	work, _ := s.Tick(time.Now(), 3)
	assert.Equal(t, WorkIdleFiller, work)

	// NMO I/II permit the same queue to drain from a paging slot.
	s.NMO = NMOI
	work, item := s.Tick(time.Now(), 3)
	assert.Equal(t, WorkGprsAssign, work)
	assert.Equal(t, "a", string(item.(*GprsAssign).Payload))
}

func TestRejectQueueBatchesUpToFourAndDecaysT3122(t *testing.T) {
	rq := NewRejectQueue()
	for i := byte(0); i < 6; i++ {
		rq.Reject(l3.RequestReference{RA: i})
	}

	first, ok := rq.Drain()
	require.True(t, ok)
	assert.Len(t, first.RequestReferences, 4)
	assert.Len(t, first.WaitIndications, 4)
	for _, w := range first.WaitIndications {
		assert.Equal(t, first.WaitIndications[0], w)
	}

	second, ok := rq.Drain()
	require.True(t, ok)
	assert.Len(t, second.RequestReferences, 2)
	// Congestion count decays by one per drain, so as the backlog
	// clears the offered backoff eases rather than growing further.
	assert.Less(t, second.WaitIndications[0], first.WaitIndications[0])

	_, ok = rq.Drain()
	assert.False(t, ok)
}

func TestSMaxAgeFramesDerivesFromTxInteger(t *testing.T) {
	// TxInteger 0 -> T=3 -> S=55: 3 + 2*55 - 6.
	assert.Equal(t, uint32(107), SMaxAgeFrames(0))
	// TxInteger 9 -> T=12 -> S=217: 12 + 2*217 - 6.
	assert.Equal(t, uint32(440), SMaxAgeFrames(9))
	// Out-of-range indices clamp to the table bounds.
	assert.Equal(t, SMaxAgeFrames(15), SMaxAgeFrames(99))
	assert.Equal(t, SMaxAgeFrames(0), SMaxAgeFrames(-1))
}

func TestTickFallsBackToRejectBeforeIdleFiller(t *testing.T) {
	q := NewQueues()
	s := NewScheduler(q)
	s.IsPagingSlot = func(fn uint32) bool { return false }
	s.Reject.Reject(l3.RequestReference{RA: 0x04})

	work, item := s.Tick(time.Now(), 1)
	assert.Equal(t, WorkReject, work)
	assert.Len(t, item.(*l3.ImmediateAssignmentReject).RequestReferences, 1)

	work, _ = s.Tick(time.Now(), 2)
	assert.Equal(t, WorkIdleFiller, work)
}
