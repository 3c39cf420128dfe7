package channel

import "github.com/btcsuite/btcd/btcutil"

// Weight and fee constants for a commitment transaction, grounded on
// lnwallet/size.go. HTLCWeight covers the HTLC output itself on the
// commitment transaction; HtlcTimeoutWeight/HtlcSuccessWeight
// size the second-stage transactions used by CanAffordFeerate to decide
// whether an HTLC output would itself be worth sweeping.
const (
	// BaseCommitmentTxWeight is the weight of a commitment transaction
	// with no HTLC outputs: version, locktime, the to_local and
	// to_remote outputs, and the 2-of-2 input spending the funding
	// output.
	BaseCommitmentTxWeight = 724

	// HTLCWeight is the marginal weight a single HTLC output adds to a
	// commitment transaction.
	HTLCWeight = 172

	// HtlcTimeoutWeight is the weight of the second-stage transaction
	// that times out an offered HTLC.
	HtlcTimeoutWeight = 663

	// HtlcSuccessWeight is the weight of the second-stage transaction
	// that claims an accepted HTLC with its preimage.
	HtlcSuccessWeight = 703
)

// htlcIsDust reports whether htlc's second-stage output would be trimmed
// from ourCommit's commitment transaction rather than materialized,
// because its value net of the second-stage transaction's own fee would
// fall below the recipient's dust limit. Mirrors htlcIsDust in
// lnwallet/channel.go.
//
// incoming is true when the HTLC is owed to the commitment's owner (i.e.
// the owner did not offer it); ourCommit is true when evaluating the
// local party's own commitment transaction, which determines which side's
// HTLC weight (timeout vs success) applies.
func htlcIsDust(incoming, ourCommit bool, feeratePerKw uint64,
	htlcAmt, dustLimit btcutil.Amount) bool {

	var weight int64
	switch {
	// An offered (outgoing, from the owner's perspective) HTLC on our
	// own commitment is swept with an HTLC-timeout transaction.
	case !incoming && ourCommit:
		weight = HtlcTimeoutWeight

	// An offered HTLC on the remote party's commitment is swept there
	// with an HTLC-success transaction, since they are its receiver.
	case !incoming && !ourCommit:
		weight = HtlcSuccessWeight

	// An accepted (incoming) HTLC on our own commitment is swept with an
	// HTLC-success transaction.
	case incoming && ourCommit:
		weight = HtlcSuccessWeight

	// An accepted HTLC on the remote party's commitment is swept there
	// with an HTLC-timeout transaction from their perspective.
	case incoming && !ourCommit:
		weight = HtlcTimeoutWeight
	}

	fee := feeratePerKw * uint64(weight) / 1000
	return htlcAmt < dustLimit+btcutil.Amount(fee)
}

// nondustHTLCs walks the HTLC table and reports how many live HTLCs would
// be materialized as outputs on side's commitment transaction at
// feeratePerKw (as opposed to trimmed for dust), along with their total
// value. The feerate is a parameter rather than read off the view because
// the dust set itself depends on the feerate being evaluated: an
// affordability probe at a candidate feerate must trim at that candidate
// rate, not at the view's current one. An HTLC counts if it is visible on
// that side's view: staged removals (PendingRemove) still count, since the
// view they affect hasn't committed yet; only once a side reaches
// RemovedNew/RemovedCommitted does its own view stop materializing the
// output. incoming is computed relative to side as the commitment's owner,
// so htlcIsDust is always consulted with ourCommit set.
func nondustHTLCs(c *Channel, side Side, feeratePerKw uint64) (count int, totalMsat MilliSatoshi) {
	dl := dustLimit(c.Configs, side)

	for _, h := range c.HTLCs {
		switch h.state[side] {
		case PendingAdd, Committed, PendingRemove:
			// still materialized on this side's view
		default:
			continue
		}

		incoming := h.Offerer != side
		if htlcIsDust(incoming, true, feeratePerKw, htlcAmtSat(h), dl) {
			continue
		}
		count++
		totalMsat += h.AmountMsat
	}
	return count, totalMsat
}

func htlcAmtSat(h *HTLC) btcutil.Amount {
	return h.AmountMsat.ToSatoshis()
}

// commitWeight returns the total weight of side's commitment transaction
// given nondust non-dust HTLC outputs.
func commitWeight(nondust int) int64 {
	return BaseCommitmentTxWeight + HTLCWeight*int64(nondust)
}

// commitFee returns the transaction fee, in satoshis, side's commitment
// transaction would pay at feeratePerKw given nondust non-dust HTLC
// outputs. Mirrors the CalcFee helper used throughout lnwallet/channel.go.
func commitFee(feeratePerKw uint64, nondust int) btcutil.Amount {
	weight := commitWeight(nondust)
	return btcutil.Amount(feeratePerKw * uint64(weight) / 1000)
}

// canAffordFeerateOnView reports whether the funder can pay feeratePerKw on
// side's current view without its own balance, after the fee is
// subtracted, dropping below its required channel reserve. This is the
// authoritative affordability check; ApproxMaxFeerate is a fast heuristic
// upper bound derived from it.
func (c *Channel) canAffordFeerateOnView(side Side, feeratePerKw uint64) bool {
	nondust, _ := nondustHTLCs(c, side, feeratePerKw)
	fee := commitFee(feeratePerKw, nondust)

	funderBalance := c.View[side].OwedMsat[c.Funder].ToSatoshis()
	funderReserve := reserve(c.Configs, c.Funder)

	return funderBalance-fee >= funderReserve
}

// CanAffordFeerate reports whether the funder could pay feeratePerKw on
// both sides' current views without breaching its own channel reserve
// requirement; the non-funder's balance is not checked. Mirrors validateFeeRate in lnwallet/channel.go,
// generalized to check both views rather than only the local one.
func (c *Channel) CanAffordFeerate(feeratePerKw uint64) bool {
	return c.canAffordFeerateOnView(Local, feeratePerKw) &&
		c.canAffordFeerateOnView(Remote, feeratePerKw)
}

// ApproxMaxFeerate returns a fast, slightly conservative upper bound on the
// feerate the funder could afford on side's view, computed directly rather
// than by search. It is a heuristic: because dust filtering is itself a
// function of feerate, the true maximum affordable feerate can only be
// found by search; callers that need an exact answer should use
// CanAffordFeerate to verify ApproxMaxFeerate's result before relying on
// it.
func (c *Channel) ApproxMaxFeerate(side Side) uint64 {
	nondust, _ := nondustHTLCs(c, side, c.View[side].FeeratePerKw)
	weight := commitWeight(nondust)

	funderBalance := c.View[side].OwedMsat[c.Funder].ToSatoshis()
	funderReserve := reserve(c.Configs, c.Funder)

	available := funderBalance - funderReserve
	if available <= 0 {
		return 0
	}
	return uint64(available) * 1000 / uint64(weight)
}

// AdjustFee overwrites side's view's feerate with feeratePerKw. It applies
// unconditionally: whether the funder can actually afford the new rate is
// policy the caller enforces up front via CanAffordFeerate, and only the
// funder may propose fee changes on the wire, but the state machine itself
// accepts changes on both views as the update_fee message ripples through
// the handshake. An unaffordable feerate left in place simply causes
// subsequent admissions to fail their affordability check. Mirrors
// adjust_fee in channel.h.
func (c *Channel) AdjustFee(side Side, feeratePerKw uint64) {
	view := c.View[side]
	view.FeeratePerKw = feeratePerKw
	c.View[side] = view
}

// ForceFee sets an exact, concrete fee of feeSat against side's view,
// deducting it from the funder's balance. Unlike AdjustFee/CanAffordFeerate,
// which gate an ongoing commitment's feerate against both sides' channel
// reserves, this is used only for the cooperative-close transaction, where
// a specific absolute fee has already been negotiated and the channel
// reserve no longer applies. It fails, leaving the view untouched, if the
// funder's balance cannot cover feeSat in full; see DESIGN.md's Open
// Question resolution for why this fails atomically rather than applying
// a partial, balance-zeroing fee.
func (c *Channel) ForceFee(side Side, feeSat btcutil.Amount) error {
	feeMsat := NewMSatFromSatoshis(feeSat)
	if c.View[side].OwedMsat[c.Funder] < feeMsat {
		return ErrInsufficientCapacity
	}

	view := c.View[side]
	view.OwedMsat[c.Funder] -= feeMsat
	c.View[side] = view
	return nil
}

// ActualFeerate returns the feerate implied by side's commitment
// transaction as it would actually be constructed, rather than the
// theoretical feerate stored in the view. The fee amount is fixed by the
// view's stored feerate over the template weight (base weight plus one
// HTLCWeight per non-dust HTLC); theirSigWeightHint lets the caller fold
// in the actual signature-size variance CreateCommitTx can't predict
// (DER signatures are 70-72 bytes, not a fixed size), so a receiver can
// verify the initiator's chosen feerate against policy even when dust
// filtering has shifted the weight away from the theoretical maximum.
// Mirrors the verification CommitmentSigMsg processing does against
// validateFeeRate in lnwallet/channel.go, generalized to take the weight
// hint explicitly instead of assuming a fixed signature size.
func (c *Channel) ActualFeerate(side Side, theirSigWeightHint int64) uint64 {
	nondust, _ := nondustHTLCs(c, side, c.View[side].FeeratePerKw)
	fee := commitFee(c.View[side].FeeratePerKw, nondust)

	weight := commitWeight(nondust) + theirSigWeightHint
	if weight <= 0 {
		return 0
	}
	return uint64(fee) * 1000 / uint64(weight)
}
