package channel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCommitRoundTrip checks that an add, driven through the full
// sending_commit/rcvd_commit/sending_rev/rcvd_rev cycle, ends up Committed
// on both sides with both commitment numbers at 1.
func TestCommitRoundTrip(t *testing.T) {
	t.Parallel()

	c, err := newTestChannel()
	require.NoError(t, err)

	localBefore := c.View[Local].OwedMsat[Local]
	remoteBefore := c.View[Remote].OwedMsat[Local]

	_, hash := testPreimage(1)
	require.NoError(t, c.AddHTLC(Local, 0, 100_000_000, 500, hash, testRouting))

	res, err := c.SendingCommit(Remote)
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.Len(t, res.Promoted, 1)
	require.Equal(t, uint64(1), c.View[Remote].CommitmentNumber)

	res, err = c.RcvdCommit(Local)
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.Equal(t, uint64(1), c.View[Local].CommitmentNumber)

	// An add-only cycle stages no removals, so the revoke steps find
	// nothing to finalize and report no state change; they only clear the
	// awaiting-revocation gate.
	res = c.SendingRevAndAck(Local)
	require.False(t, res.Changed)
	require.Empty(t, res.Removed)

	res = c.RcvdRevAndAck(Remote)
	require.False(t, res.Changed)
	require.Empty(t, res.Removed)

	h, ok := c.GetHTLC(Local, 0)
	require.True(t, ok)
	require.True(t, h.IrrevocablyCommitted())

	require.Equal(t, localBefore-100_000_000, c.View[Local].OwedMsat[Local])
	require.Equal(t, remoteBefore-100_000_000, c.View[Remote].OwedMsat[Local])
}

// TestAwaitingRevokeAndAckGate covers the ordering guarantee that
// sending_commit must not be invoked again for a side while that side's
// prior commitment is unrevoked.
func TestAwaitingRevokeAndAckGate(t *testing.T) {
	t.Parallel()

	c, err := newTestChannel()
	require.NoError(t, err)

	_, hash := testPreimage(1)
	require.NoError(t, c.AddHTLC(Local, 0, 100_000_000, 500, hash, testRouting))

	_, err = c.SendingCommit(Remote)
	require.NoError(t, err)
	require.True(t, c.AwaitingRevokeAndAck(Remote))

	_, err = c.SendingCommit(Remote)
	require.ErrorIs(t, err, ErrAwaitingRevokeAndAck)

	c.RcvdRevAndAck(Remote)
	require.False(t, c.AwaitingRevokeAndAck(Remote))

	_, err = c.SendingCommit(Remote)
	require.NoError(t, err)
}

// TestCommitWithNoChangesReportsUnchanged checks that an empty
// sending_commit reports Changed as false, even though the view's
// commitment number still advances; callers use Changed to avoid sending
// an empty commit.
func TestCommitWithNoChangesReportsUnchanged(t *testing.T) {
	t.Parallel()

	c, err := newTestChannel()
	require.NoError(t, err)

	res, err := c.SendingCommit(Remote)
	require.NoError(t, err)
	require.False(t, res.Changed)
	require.Empty(t, res.Promoted)
	require.Empty(t, res.Removed)
	require.Equal(t, uint64(1), c.View[Remote].CommitmentNumber)
}

func TestRcvdCommitNotGated(t *testing.T) {
	t.Parallel()

	c, err := newTestChannel()
	require.NoError(t, err)

	_, err = c.RcvdCommit(Local)
	require.NoError(t, err)
	_, err = c.RcvdCommit(Local)
	require.NoError(t, err)
}
