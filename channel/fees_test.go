package channel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanAffordFeerate(t *testing.T) {
	t.Parallel()

	c, err := newTestChannel()
	require.NoError(t, err)

	require.True(t, c.CanAffordFeerate(253))

	// A huge feerate cannot be covered without breaching the funder's
	// own reserve.
	require.False(t, c.CanAffordFeerate(1_000_000))
}

// TestAdjustFeeAppliesUnconditionally checks that AdjustFee overwrites the
// view's feerate even when the funder couldn't actually afford it:
// affordability is the caller's policy, checked ahead of time with
// CanAffordFeerate.
func TestAdjustFeeAppliesUnconditionally(t *testing.T) {
	t.Parallel()

	c, err := newTestChannel()
	require.NoError(t, err)

	c.AdjustFee(Local, 500)
	require.Equal(t, uint64(500), c.View[Local].FeeratePerKw)

	require.False(t, c.CanAffordFeerate(10_000_000))
	c.AdjustFee(Local, 10_000_000)
	require.Equal(t, uint64(10_000_000), c.View[Local].FeeratePerKw)
}

// TestFeerateSqueezeRejectsAdmission drives the feerate-squeeze scenario:
// once an unaffordable feerate has been applied, the view is left in place
// but any subsequent HTLC admission fails its affordability check.
func TestFeerateSqueezeRejectsAdmission(t *testing.T) {
	t.Parallel()

	c, err := newTestChannel()
	require.NoError(t, err)

	squeeze := c.ApproxMaxFeerate(Local) * 2
	require.False(t, c.CanAffordFeerate(squeeze))

	c.AdjustFee(Local, squeeze)
	c.AdjustFee(Remote, squeeze)

	_, hash := testPreimage(1)
	err = c.AddHTLC(Local, 0, 100_000_000, 500, hash, testRouting)
	require.ErrorIs(t, err, ErrInsufficientCapacity)
	require.Empty(t, c.HTLCs)
}

// TestForceFeeSetsExactFee checks that ForceFee deducts the requested
// absolute fee, in full, from the funder's balance on the given view --
// unlike AdjustFee/CanAffordFeerate, it does not reason about a feerate or
// dust-filtered weight at all.
func TestForceFeeSetsExactFee(t *testing.T) {
	t.Parallel()

	c, err := newTestChannel()
	require.NoError(t, err)

	before := c.View[Local].OwedMsat[Local]

	require.NoError(t, c.ForceFee(Local, 10_000))
	require.Equal(t, before-NewMSatFromSatoshis(10_000), c.View[Local].OwedMsat[Local])
}

// TestForceFeeAtomicOnFailure checks that ForceFee never leaves the view
// partially updated when the funder's balance can't cover the fee in full.
func TestForceFeeAtomicOnFailure(t *testing.T) {
	t.Parallel()

	c, err := newTestChannel()
	require.NoError(t, err)

	before := c.View[Local].OwedMsat[Local]

	unaffordable := before.ToSatoshis() + 1
	err = c.ForceFee(Local, unaffordable)
	require.Error(t, err)
	require.Equal(t, before, c.View[Local].OwedMsat[Local])
}

// TestForceFeeIgnoresReserve checks that, unlike the ongoing-commitment fee
// operations, ForceFee doesn't require the funder's post-fee balance to
// clear its reserve: a cooperative-close fee is allowed to spend the
// funder down to (but not below) zero.
func TestForceFeeIgnoresReserve(t *testing.T) {
	t.Parallel()

	c, err := newTestChannel()
	require.NoError(t, err)

	funderBalance := c.View[Local].OwedMsat[Local].ToSatoshis()
	require.Greater(t, funderBalance, c.Configs[Remote].ChanReserve)

	// Spend the funder's balance all the way to zero, well past what
	// its reserve would otherwise require it to keep.
	require.NoError(t, c.ForceFee(Local, funderBalance))
	require.Equal(t, MilliSatoshi(0), c.View[Local].OwedMsat[Local])
}

func TestApproxMaxFeerateBoundsCanAfford(t *testing.T) {
	t.Parallel()

	c, err := newTestChannel()
	require.NoError(t, err)

	approx := c.ApproxMaxFeerate(Local)
	require.True(t, c.canAffordFeerateOnView(Local, approx))
}

func TestActualFeerateAccountsForWeightHint(t *testing.T) {
	t.Parallel()

	c, err := newTestChannel()
	require.NoError(t, err)

	base := c.ActualFeerate(Local, 0)
	withExtraWeight := c.ActualFeerate(Local, 200)
	require.Less(t, withExtraWeight, base)
}
