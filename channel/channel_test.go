package channel

import (
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

// TestNewChannelNoPush checks that opening a channel with no push amount
// leaves the entire capacity owed to the funder, both
// commitment numbers at zero, and an obscurer derived from both payment
// basepoints in funder-first order.
func TestNewChannelNoPush(t *testing.T) {
	t.Parallel()

	c, err := newTestChannel()
	require.NoError(t, err)

	require.Equal(t, MilliSatoshi(0), c.View[Local].OwedMsat[Remote])
	require.Equal(t, MilliSatoshi(0), c.View[Remote].OwedMsat[Remote])
	require.Equal(t, uint64(0), c.View[Local].CommitmentNumber)
	require.Equal(t, uint64(0), c.View[Remote].CommitmentNumber)
	require.Empty(t, c.HTLCs)

	fundingMsat := NewMSatFromSatoshis(1_000_000)
	require.Equal(t, fundingMsat, c.View[Local].OwedMsat[Local])
	require.Equal(t, fundingMsat, c.View[Remote].OwedMsat[Local])

	wantObscurer := func() uint64 {
		h := sha256.New()
		h.Write(c.Basepoints[Local].Payment.SerializeCompressed())
		h.Write(c.Basepoints[Remote].Payment.SerializeCompressed())
		sum := h.Sum(nil)
		var mask uint64
		for _, b := range sum[26:32] {
			mask = (mask << 8) | uint64(b)
		}
		return mask
	}()
	require.Equal(t, wantObscurer, c.CommitmentNumberObscurer)
	require.Less(t, c.CommitmentNumberObscurer, uint64(1)<<48)
}

func TestNewChannelWithPush(t *testing.T) {
	t.Parallel()

	var txid chainhash.Hash
	c, err := NewChannel(
		txid, 0, btcutil.Amount(1_000_000), NewMSatFromSatoshis(200_000), 253,
		testConfig(), testConfig(),
		testBasepoints(0), testBasepoints(100),
		Local,
	)
	require.NoError(t, err)

	fundingMsat := NewMSatFromSatoshis(1_000_000)
	require.Equal(t, fundingMsat-NewMSatFromSatoshis(200_000), c.View[Local].OwedMsat[Local])
	require.Equal(t, NewMSatFromSatoshis(200_000), c.View[Local].OwedMsat[Remote])
}

// TestNewChannelPushExceedsFunding rejects a push amount larger than the
// funding amount.
func TestNewChannelPushExceedsFunding(t *testing.T) {
	t.Parallel()

	var txid chainhash.Hash
	_, err := NewChannel(
		txid, 0, btcutil.Amount(1_000_000), NewMSatFromSatoshis(2_000_000), 253,
		testConfig(), testConfig(),
		testBasepoints(0), testBasepoints(100),
		Local,
	)
	require.Error(t, err)
}

// TestNewChannelUnaffordableFeerate rejects a feerate the funder cannot
// pay while keeping both reserves intact.
func TestNewChannelUnaffordableFeerate(t *testing.T) {
	t.Parallel()

	var txid chainhash.Hash
	_, err := NewChannel(
		txid, 0, btcutil.Amount(15_000), 0, 1_000_000,
		testConfig(), testConfig(),
		testBasepoints(0), testBasepoints(100),
		Local,
	)
	require.Error(t, err)
}

// TestNewChannelRejectsOversizedHtlcCap rejects a config whose
// max_accepted_htlcs exceeds the hard protocol ceiling.
func TestNewChannelRejectsOversizedHtlcCap(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxAcceptedHtlcs = MaxAcceptedHtlcsLimit + 1

	var txid chainhash.Hash
	_, err := NewChannel(
		txid, 0, btcutil.Amount(1_000_000), 0, 253,
		cfg, testConfig(),
		testBasepoints(0), testBasepoints(100),
		Local,
	)
	require.Error(t, err)
}

// TestCopyIndependent exercises the deep-copy contract: the copy is equal
// to the original, and mutating it never affects the original.
func TestCopyIndependent(t *testing.T) {
	t.Parallel()

	c, err := newTestChannel()
	require.NoError(t, err)

	_, hash := testPreimage(1)
	require.NoError(t, c.AddHTLC(Local, 0, 100_000_000, 500, hash, testRouting))

	cp := c.Copy()
	require.Equal(t, c.View, cp.View)
	require.Len(t, cp.HTLCs, len(c.HTLCs))

	h, ok := cp.GetHTLC(Local, 0)
	require.True(t, ok)
	h.AmountMsat = 1

	orig, ok := c.GetHTLC(Local, 0)
	require.True(t, ok)
	require.Equal(t, MilliSatoshi(100_000_000), orig.AmountMsat)

	cp.View[Local].OwedMsat[Local] = 1
	require.NotEqual(t, cp.View[Local].OwedMsat[Local], c.View[Local].OwedMsat[Local])
}

// TestBalanceInvariantHolds checks the owed/HTLC balance invariant across
// an add then a commit cycle.
func TestBalanceInvariantHolds(t *testing.T) {
	t.Parallel()

	c, err := newTestChannel()
	require.NoError(t, err)

	_, hash := testPreimage(1)
	require.NoError(t, c.AddHTLC(Local, 0, 100_000_000, 500, hash, testRouting))
	c.checkBalanceInvariant(Local)
	c.checkBalanceInvariant(Remote)

	_, err = c.SendingCommit(Remote)
	require.NoError(t, err)
	c.checkBalanceInvariant(Remote)

	_, err = c.RcvdCommit(Local)
	require.NoError(t, err)
	c.checkBalanceInvariant(Local)

	c.SendingRevAndAck(Local)
	c.checkBalanceInvariant(Local)

	c.RcvdRevAndAck(Remote)
	c.checkBalanceInvariant(Remote)
}

// TestBalanceInvariantHoldsThroughRemoval checks the balance invariant
// across a fulfill, where the two views' HTLC visibility diverges for a
// window: settleRemoval credits one side's view one handshake step before
// the other's, so checkBalanceInvariant must count the HTLC per-side,
// never double-counting it against a view that has already been credited.
func TestBalanceInvariantHoldsThroughRemoval(t *testing.T) {
	t.Parallel()

	c, err := newTestChannel()
	require.NoError(t, err)

	preimage, hash := testPreimage(1)
	require.NoError(t, c.AddHTLC(Local, 0, 100_000_000, 500, hash, testRouting))

	_, err = c.SendingCommit(Remote)
	require.NoError(t, err)
	_, err = c.RcvdCommit(Local)
	require.NoError(t, err)
	c.SendingRevAndAck(Local)
	c.RcvdRevAndAck(Remote)
	c.checkBalanceInvariant(Local)
	c.checkBalanceInvariant(Remote)

	require.NoError(t, c.FulfillHTLC(Local, 0, preimage))
	c.checkBalanceInvariant(Local)
	c.checkBalanceInvariant(Remote)

	// Remote's view credits the removal first; Local's view still
	// carries the HTLC as visible until its own commit/revoke catches
	// up.
	_, err = c.SendingCommit(Remote)
	require.NoError(t, err)
	c.checkBalanceInvariant(Remote)
	c.checkBalanceInvariant(Local)

	_, err = c.RcvdCommit(Local)
	require.NoError(t, err)
	c.checkBalanceInvariant(Local)

	c.SendingRevAndAck(Local)
	c.checkBalanceInvariant(Local)

	c.RcvdRevAndAck(Remote)
	c.checkBalanceInvariant(Remote)
}
