package channel

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// ChannelView is one side's snapshot of the channel: the feerate and
// commitment number that side's commitment transaction is built at, and
// what each party would receive were that commitment transaction published
// right now, including pending but unsettled changes from this view's
// perspective. Mirrors struct channel_view in channel.h.
type ChannelView struct {
	// FeeratePerKw is the feerate, in satoshis per 1000 weight units,
	// this view's commitment transaction pays.
	FeeratePerKw uint64

	// CommitmentNumber is this view's monotonically increasing
	// commitment counter. Bounded below 2^48 so it fits the obscured
	// locktime/sequence encoding.
	CommitmentNumber uint64

	// OwedMsat holds what LOCAL and REMOTE would each receive if this
	// view's commitment were published now.
	OwedMsat [2]MilliSatoshi
}

// Channel is the aggregate root: the funding output, both sides'
// configuration and basepoints, the obscurer mask, the HTLC table, and
// both sides' views. It is exclusively owned by its session driver; all
// operations are synchronous and unsuspending.
type Channel struct {
	// FundingTxid is the txid of the transaction that created the 2-of-2
	// funding output this channel spends.
	FundingTxid chainhash.Hash

	// FundingOutputIndex is the output index of the funding output
	// within FundingTxid.
	FundingOutputIndex uint32

	// FundingMsat is the total channel capacity, in millisatoshis.
	FundingMsat MilliSatoshi

	// Funder is the side responsible for paying commitment transaction
	// fees.
	Funder Side

	// Configs holds each side's immutable channel configuration, indexed
	// by Side.
	Configs [2]ChannelConfig

	// Basepoints holds each side's public basepoints, indexed by Side.
	Basepoints [2]Basepoints

	// CommitmentNumberObscurer is the 48-bit mask XOR-ed into each
	// commitment number before it's encoded into a commitment
	// transaction's locktime/sequence fields.
	CommitmentNumberObscurer uint64

	// HTLCs is the live HTLC table, keyed by (offerer, id).
	HTLCs map[HTLCKey]*HTLC

	// View holds each side's channel view, indexed by Side.
	View [2]ChannelView

	// awaitingRevoke tracks, per side, whether that side's view currently
	// holds an extended commitment not yet revoked by that side. While
	// true, SendingCommit for that side must not be called again.
	awaitingRevoke [2]bool
}

// obscurerMask derives the 48-bit commitment number obscurer: the lower 48
// bits of SHA-256 over the two parties' payment basepoints, funder-first.
// This is a normative BOLT-3 construction.
func obscurerMask(funderPayment, otherPayment *btcec.PublicKey) uint64 {
	h := sha256.New()
	h.Write(funderPayment.SerializeCompressed())
	h.Write(otherPayment.SerializeCompressed())
	sum := h.Sum(nil)

	var mask uint64
	for _, b := range sum[26:32] {
		mask = (mask << 8) | uint64(b)
	}
	return mask
}

// NewChannel initializes a fresh channel from a 2-of-2 funding output. Both
// commitment numbers start at 0, both views start at feeratePerKw, and the
// HTLC table is empty. It fails if pushMsat exceeds the funding amount, or
// if the funder cannot afford the initial commitment fee at feeratePerKw
// given both sides' reserves.
func NewChannel(fundingTxid chainhash.Hash, fundingOutputIndex uint32,
	fundingSat btcutil.Amount, pushMsat MilliSatoshi, feeratePerKw uint64,
	localCfg, remoteCfg ChannelConfig, localBp, remoteBp Basepoints,
	funder Side) (*Channel, error) {

	fundingMsat := NewMSatFromSatoshis(fundingSat)
	if pushMsat > fundingMsat {
		return nil, fmt.Errorf("push_msat %d exceeds funding_msat %d",
			pushMsat, fundingMsat)
	}
	if localCfg.MaxAcceptedHtlcs > MaxAcceptedHtlcsLimit ||
		remoteCfg.MaxAcceptedHtlcs > MaxAcceptedHtlcsLimit {

		return nil, fmt.Errorf("max_accepted_htlcs exceeds protocol "+
			"limit %d", MaxAcceptedHtlcsLimit)
	}

	funderPayment := localBp.Payment
	otherPayment := remoteBp.Payment
	if funder == Remote {
		funderPayment, otherPayment = remoteBp.Payment, localBp.Payment
	}

	c := &Channel{
		FundingTxid:              fundingTxid,
		FundingOutputIndex:       fundingOutputIndex,
		FundingMsat:              fundingMsat,
		Funder:                   funder,
		Configs:                  [2]ChannelConfig{localCfg, remoteCfg},
		Basepoints:               [2]Basepoints{localBp, remoteBp},
		CommitmentNumberObscurer: obscurerMask(funderPayment, otherPayment),
		HTLCs:                    make(map[HTLCKey]*HTLC),
	}

	owedFunder := fundingMsat - pushMsat
	owedOther := pushMsat

	for _, side := range []Side{Local, Remote} {
		view := ChannelView{FeeratePerKw: feeratePerKw}
		if funder == Local {
			view.OwedMsat[Local] = owedFunder
			view.OwedMsat[Remote] = owedOther
		} else {
			view.OwedMsat[Local] = owedOther
			view.OwedMsat[Remote] = owedFunder
		}
		c.View[side] = view
	}

	if !c.canAffordFeerateOnView(Local, feeratePerKw) ||
		!c.canAffordFeerateOnView(Remote, feeratePerKw) {

		return nil, fmt.Errorf("funder cannot afford initial commitment "+
			"fee at feerate %d sat/kw", feeratePerKw)
	}

	return c, nil
}

// Copy returns a deep copy of the channel: independent views and an
// independent HTLC table with independent HTLC objects. Mutating the copy
// never affects the original. Used to speculatively apply a prospective
// update (e.g. admission's affordability check) and discard it on
// rejection.
func (c *Channel) Copy() *Channel {
	cp := &Channel{
		FundingTxid:              c.FundingTxid,
		FundingOutputIndex:       c.FundingOutputIndex,
		FundingMsat:              c.FundingMsat,
		Funder:                   c.Funder,
		Configs:                  c.Configs,
		Basepoints:               c.Basepoints,
		CommitmentNumberObscurer: c.CommitmentNumberObscurer,
		View:                     c.View,
		awaitingRevoke:           c.awaitingRevoke,
		HTLCs:                    make(map[HTLCKey]*HTLC, len(c.HTLCs)),
	}
	for k, h := range c.HTLCs {
		cp.HTLCs[k] = h.clone()
	}
	return cp
}

// GetHTLC looks up an HTLC by its offerer and id. Mirrors channel_get_htlc
// in channel.h; used internally by admission/removal/handshake and exposed
// for callers (e.g. tests, or a session driver resolving a wire message to
// its HTLC).
func (c *Channel) GetHTLC(offerer Side, id uint64) (*HTLC, bool) {
	h, ok := c.HTLCs[HTLCKey{Offerer: offerer, ID: id}]
	return h, ok
}

// checkBalanceInvariant asserts that, for the given view, owed_msat[LOCAL] +
// owed_msat[REMOTE] + the sum of the amounts of HTLCs still visible on that
// view equals FundingMsat. Visibility is per side (visibleHTLCs): an HTLC
// settleRemoval has already credited on side's own view (side reached
// RemovedNew/RemovedCommitted) no longer counts there, even though it may
// still be globally live() pending the other side's revocation. A
// violation indicates a bug in the state machine, not a caller error, so it
// panics rather than returning an error — this is only ever invoked from
// test builds and internal assertions.
func (c *Channel) checkBalanceInvariant(side Side) {
	total := c.View[side].OwedMsat[Local] + c.View[side].OwedMsat[Remote]
	for _, h := range c.visibleHTLCs(side) {
		total += h.AmountMsat
	}
	if total != c.FundingMsat {
		panic(fmt.Sprintf("balance invariant violated on %s view: "+
			"owed(local)=%d owed(remote)=%d + live htlcs != funding_msat=%d "+
			"(got %d)", side, c.View[side].OwedMsat[Local],
			c.View[side].OwedMsat[Remote], c.FundingMsat, total))
	}
}

// fundingOutPoint reconstructs the wire.OutPoint for the 2-of-2 funding
// output, used by the transaction materializer.
func (c *Channel) fundingOutPoint() wire.OutPoint {
	return wire.OutPoint{Hash: c.FundingTxid, Index: c.FundingOutputIndex}
}
