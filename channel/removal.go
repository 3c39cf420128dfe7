package channel

import "crypto/sha256"

// FailHTLC stages the HTLC offered by offerer with id for cancellation:
// once the removal commits on both sides, its value returns to offerer.
// Mirrors channel_fail_htlc in channel.h and the remove-entry half of
// lnwallet/channel.go's update log processing.
//
// The HTLC must exist, must not already be staged for removal, and must be
// Committed from the recipient's (offerer.Other()'s) point of view — an
// HTLC the recipient has not yet acknowledged in a signed commitment
// cannot be resolved, since the recipient has no record of it to reconcile
// against. Beyond that, it must be irrevocably committed on both sides: if
// the recipient has Committed it but the offerer's own view has not yet
// caught up, a revocation could still unwind the add underneath the
// removal, so ErrHTLCNotIrrevocable is returned instead.
func (c *Channel) FailHTLC(offerer Side, id uint64) error {
	h, ok := c.GetHTLC(offerer, id)
	if !ok {
		return &RemoveHTLCError{Cause: ErrNoSuchHTLC, Offerer: offerer, ID: id}
	}
	if h.removal != NoRemoval {
		return &RemoveHTLCError{Cause: ErrAlreadyFulfilled, Offerer: offerer, ID: id}
	}
	if h.state[offerer.Other()] != Committed {
		return &RemoveHTLCError{Cause: ErrHTLCUncommitted, Offerer: offerer, ID: id}
	}
	if !h.IrrevocablyCommitted() {
		return &RemoveHTLCError{Cause: ErrHTLCNotIrrevocable, Offerer: offerer, ID: id}
	}

	h.removal = Fail
	h.state[Local] = PendingRemove
	h.state[Remote] = PendingRemove
	return nil
}

// FulfillHTLC stages the HTLC offered by offerer with id for settlement
// with preimage: once the removal commits on both sides, its value moves
// to offerer.Other(). preimage must hash to the HTLC's payment_hash.
// Mirrors channel_fulfill_htlc in channel.h. Subject to the same
// irrevocable-commitment precondition as FailHTLC.
func (c *Channel) FulfillHTLC(offerer Side, id uint64, preimage [32]byte) error {
	h, ok := c.GetHTLC(offerer, id)
	if !ok {
		return &RemoveHTLCError{Cause: ErrNoSuchHTLC, Offerer: offerer, ID: id}
	}
	if h.removal != NoRemoval {
		return &RemoveHTLCError{Cause: ErrAlreadyFulfilled, Offerer: offerer, ID: id}
	}
	if h.state[offerer.Other()] != Committed {
		return &RemoveHTLCError{Cause: ErrHTLCUncommitted, Offerer: offerer, ID: id}
	}
	if !h.IrrevocablyCommitted() {
		return &RemoveHTLCError{Cause: ErrHTLCNotIrrevocable, Offerer: offerer, ID: id}
	}
	if sha256.Sum256(preimage[:]) != h.PaymentHash {
		return &RemoveHTLCError{Cause: ErrBadPreimage, Offerer: offerer, ID: id}
	}

	preimageCopy := preimage
	h.Preimage = &preimageCopy
	h.removal = Fulfill
	h.state[Local] = PendingRemove
	h.state[Remote] = PendingRemove
	return nil
}

// settleRemoval advances a staged removal on side's view. From
// PendingRemove it moves the HTLC's value to its new owner on that side's
// view and advances the state to RemovedNew (promoteView); from RemovedNew
// it advances the state to RemovedCommitted without moving any value
// (revokeView). Called only from those two handshake steps.
func (c *Channel) settleRemoval(side Side, h *HTLC) {
	switch h.state[side] {
	case PendingRemove:
		if h.removal == Fulfill {
			view := c.View[side]
			view.OwedMsat[h.Offerer.Other()] += h.AmountMsat
			c.View[side] = view
		} else {
			view := c.View[side]
			view.OwedMsat[h.Offerer] += h.AmountMsat
			c.View[side] = view
		}
		h.state[side] = RemovedNew
	case RemovedNew:
		h.state[side] = RemovedCommitted
	}
}
