package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbts-go/btscore/internal/lapdm"
)

func TestT3101ExpiresWithoutUplink(t *testing.T) {
	ch := New(TypeSDCCH)
	t0 := time.Now()
	ch.Assign(t0)
	assert.False(t, ch.T3101Expired(t0))
	assert.True(t, ch.T3101Expired(t0.Add(DefaultT3101+time.Millisecond)))
}

func TestGoodUplinkDisarmsT3101(t *testing.T) {
	ch := New(TypeSDCCH)
	t0 := time.Now()
	ch.Assign(t0)
	ch.GoodUplinkHeard()
	assert.False(t, ch.T3101Expired(t0.Add(DefaultT3101+time.Hour)))
}

func TestNotRecyclableUntilT3111Elapses(t *testing.T) {
	ch := New(TypeSDCCH)
	t0 := time.Now()
	ch.Assign(t0)
	require.NoError(t, ch.Release(t0))
	assert.False(t, ch.Recyclable(t0))
	assert.True(t, ch.Recyclable(t0.Add(DefaultT3111+time.Millisecond)))
}

func TestRecyclableWaitsOnArmedT3109(t *testing.T) {
	ch := New(TypeSDCCH)
	t0 := time.Now()
	ch.Assign(t0)
	ch.ArmRadioLinkFailure(t0)
	require.NoError(t, ch.Release(t0))
	assert.False(t, ch.Recyclable(t0.Add(DefaultT3111+time.Millisecond)))
	assert.True(t, ch.Recyclable(t0.Add(DefaultT3109+time.Millisecond)))
}

func TestParamsConfigureTimersCounterAndHistory(t *testing.T) {
	p := DefaultParams()
	p.T3101 = 100 * time.Millisecond
	p.T3109 = 2 * time.Second
	p.RadioLinkTimeout = 2
	p.HandoverHistory = 4
	ch := NewWithParams(TypeSDCCH, p)

	t0 := time.Now()
	ch.Assign(t0)
	assert.False(t, ch.T3101Expired(t0.Add(50*time.Millisecond)))
	assert.True(t, ch.T3101Expired(t0.Add(150*time.Millisecond)))

	assert.False(t, ch.BadSACCHPeriod())
	assert.True(t, ch.BadSACCHPeriod())

	ch.ArmRadioLinkFailure(t0)
	require.NoError(t, ch.Release(t0))
	assert.False(t, ch.Recyclable(t0.Add(DefaultT3111+time.Millisecond)))
	assert.True(t, ch.Recyclable(t0.Add(p.T3109+time.Millisecond)))

	require.NotNil(t, ch.Sacch)
	assert.Equal(t, 4, ch.Sacch.History.MaxPoints)
}

func TestNewWithParamsFillsZeroFieldsWithDefaults(t *testing.T) {
	ch := NewWithParams(TypeSDCCH, Params{})
	t0 := time.Now()
	ch.Assign(t0)
	assert.False(t, ch.T3101Expired(t0.Add(DefaultT3101-time.Millisecond)))
	assert.True(t, ch.T3101Expired(t0.Add(DefaultT3101+time.Millisecond)))
	assert.Equal(t, sacchHistoryPoints, ch.Sacch.History.MaxPoints)
}

func TestReleaseRequiresAssignment(t *testing.T) {
	ch := New(TypeSDCCH)
	assert.ErrorIs(t, ch.Release(time.Now()), ErrNotRecyclable)
}

func TestBadSACCHPeriodDeclaresFailureAfterTimeout(t *testing.T) {
	ch := New(TypeSDCCH)
	ch.Assign(time.Now())
	for i := 0; i < RadioLinkTimeout-1; i++ {
		assert.False(t, ch.BadSACCHPeriod())
	}
	assert.True(t, ch.BadSACCHPeriod())
}

func TestNewConstructsLapdmEntitiesAndSacchCompanion(t *testing.T) {
	sdcch := New(TypeSDCCH)
	require.NotNil(t, sdcch.SAPI0)
	require.NotNil(t, sdcch.SAPI3)
	require.NotNil(t, sdcch.Sacch)
	require.NotNil(t, sdcch.Sacch.Link)
	require.NotNil(t, sdcch.Sacch.History)

	sacch := New(TypeSACCH)
	require.NotNil(t, sacch.SAPI0)
	assert.Nil(t, sacch.SAPI3)
	assert.Nil(t, sacch.Sacch)
}

func TestAssignDrivesSAPI0FromUplinkSABM(t *testing.T) {
	ch := New(TypeSDCCH)
	ch.Assign(time.Now())
	ch.SAPI0.SetTransmit(func([lapdm.FrameBytes]byte) {})

	ch.SAPI0.Receive(lapdm.Frame{
		Address: lapdm.Address{SAPI: lapdm.SAPIRR},
		Control: lapdm.Control{Format: lapdm.FormatU, UType: lapdm.UFrameSABM},
	})

	require.Eventually(t, func() bool { return ch.SAPI0.State() == lapdm.StateEstablished }, time.Second, time.Millisecond)
}

func TestRecycleResetsLapdmEntitiesToIdle(t *testing.T) {
	ch := New(TypeSDCCH)
	ch.Assign(time.Now())
	ch.SAPI0.SetTransmit(func([lapdm.FrameBytes]byte) {})
	ch.SAPI0.Receive(lapdm.Frame{
		Address: lapdm.Address{SAPI: lapdm.SAPIRR},
		Control: lapdm.Control{Format: lapdm.FormatU, UType: lapdm.UFrameSABM},
	})
	require.Eventually(t, func() bool { return ch.SAPI0.State() == lapdm.StateEstablished }, time.Second, time.Millisecond)

	require.NoError(t, ch.Release(time.Now()))
	ch.Recycle()
	assert.Equal(t, lapdm.StateIdle, ch.SAPI0.State())
}

func TestIngestSacchMeasurementIgnoresUndecodable(t *testing.T) {
	ch := New(TypeSDCCH)
	ch.Assign(time.Now())
	// Garbage input must be ignored rather than panicking; it cannot
	// decode into a MeasurementReport.
	ch.IngestSacchMeasurement(0, make([]byte, 18), func(int) (uint16, bool) { return 0, false })
}

func TestPoolAllocateSkipsAssignedAndUnrecyclable(t *testing.T) {
	a := New(TypeSDCCH)
	b := New(TypeSDCCH)
	pool := NewPool([]*Channel{a, b})

	t0 := time.Now()
	got, err := pool.Allocate(t0, TypeSDCCH)
	require.NoError(t, err)
	assert.Same(t, a, got)

	_, err = pool.Allocate(t0, TypeSDCCH)
	require.NoError(t, err) // b is still free
	_, err = pool.Allocate(t0, TypeSDCCH)
	assert.ErrorIs(t, err, ErrNoChannel)
}

func TestPoolFreeTracksAllocationsAndReleases(t *testing.T) {
	a := New(TypeSDCCH)
	b := New(TypeSDCCH)
	pool := NewPool([]*Channel{a, b})
	t0 := time.Now()

	assert.Equal(t, 2, pool.Free(t0, TypeSDCCH))
	_, err := pool.Allocate(t0, TypeSDCCH)
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Free(t0, TypeSDCCH))

	require.NoError(t, a.Release(t0))
	assert.Equal(t, 1, pool.Free(t0, TypeSDCCH), "released channel still inside T3111 is not free")
	assert.Equal(t, 2, pool.Free(t0.Add(DefaultT3111+time.Millisecond), TypeSDCCH))
}

func TestPoolSweepReclaimsExpiredChannels(t *testing.T) {
	ch := New(TypeSDCCH)
	pool := NewPool([]*Channel{ch})
	t0 := time.Now()
	_, err := pool.Allocate(t0, TypeSDCCH)
	require.NoError(t, err)
	require.NoError(t, ch.Release(t0))

	assert.Equal(t, 0, pool.Sweep(t0))
	n := pool.Sweep(t0.Add(DefaultT3111 + time.Millisecond))
	assert.Equal(t, 1, n)

	got, err := pool.Allocate(t0.Add(DefaultT3111+time.Millisecond), TypeSDCCH)
	require.NoError(t, err)
	assert.Same(t, ch, got)
}
