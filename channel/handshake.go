package channel

// CommitResult reports what a commitment-handshake operation did, replacing
// the callback-closure style of the C original (channel_add_htlc_hook and
// friends in channel.h): rather than invoking a caller-supplied function
// once per transitioned HTLC, each handshake operation returns the set of
// HTLCs it moved and lets the caller act on them directly.
type CommitResult struct {
	// Changed reports whether any HTLC was actually promoted or removed
	// as a result of the call. The view's commitment number always
	// advances regardless; Changed lets the caller avoid sending an
	// empty commit.
	Changed bool

	// Promoted lists the HTLCs whose per-side state advanced to
	// Committed as part of this call.
	Promoted []*HTLC

	// Removed lists the HTLCs whose per-side state advanced to
	// RemovedNew or RemovedCommitted as part of this call.
	Removed []*HTLC
}

func (r *CommitResult) addPromoted(h *HTLC) {
	r.Changed = true
	r.Promoted = append(r.Promoted, h)
}

func (r *CommitResult) addRemoved(h *HTLC) {
	r.Changed = true
	r.Removed = append(r.Removed, h)
}

// AwaitingRevokeAndAck reports whether side's view currently holds an
// extended commitment that side has not yet revoked. SendingCommit for
// side must not be called again until side's revoke_and_ack is processed
// via SendingRevAndAck/RcvdRevAndAck.
func (c *Channel) AwaitingRevokeAndAck(side Side) bool {
	return c.awaitingRevoke[side]
}

// promoteView advances every HTLC staged for side's view (PendingAdd to
// Committed, PendingRemove to RemovedNew) and bumps side's commitment
// number. Shared by SendingCommit and RcvdCommit, which differ only in
// which party transmits the commitment_signed message the promotion
// corresponds to — the state transition itself is symmetric.
func promoteView(c *Channel, side Side) *CommitResult {
	res := &CommitResult{}

	for _, h := range c.HTLCs {
		switch h.state[side] {
		case PendingAdd:
			h.state[side] = Committed
			res.addPromoted(h)
		case PendingRemove:
			c.settleRemoval(side, h)
			res.addRemoved(h)
		}
	}

	view := c.View[side]
	view.CommitmentNumber++
	c.View[side] = view

	return res
}

// SendingCommit extends a new commitment transaction to side: every HTLC
// offered or staged for removal since side's last commitment is folded
// into side's view and side's commitment number advances. It fails with
// ErrAwaitingRevokeAndAck if side has not yet revoked the commitment it was
// last extended. Mirrors the sending half of channel_sending_commit in
// channel.h.
func (c *Channel) SendingCommit(side Side) (*CommitResult, error) {
	if c.awaitingRevoke[side] {
		return nil, ErrAwaitingRevokeAndAck
	}
	res := promoteView(c, side)
	c.awaitingRevoke[side] = true

	log.Tracef("extending commitment to %v, now at height %v: %d promoted, "+
		"%d removed", side, c.View[side].CommitmentNumber,
		len(res.Promoted), len(res.Removed))

	return res, nil
}

// RcvdCommit processes a commitment_signed received on behalf of side: it
// has the same effect on side's view as SendingCommit, but is not gated by
// AwaitingRevokeAndAck, since that rule binds only the transmitter of a new
// commitment, not its recipient. Mirrors channel_rcvd_commit in channel.h.
func (c *Channel) RcvdCommit(side Side) (*CommitResult, error) {
	res := promoteView(c, side)
	c.awaitingRevoke[side] = true

	log.Tracef("accepted commitment_signed for %v, now at height %v: "+
		"%d promoted, %d removed", side, c.View[side].CommitmentNumber,
		len(res.Promoted), len(res.Removed))

	return res, nil
}

// revokeView finalizes every HTLC side most recently promoted to
// RemovedNew, advancing it to RemovedCommitted, garbage collecting any
// HTLC now RemovedCommitted on both sides, and clearing side's
// awaiting-revocation flag.
func revokeView(c *Channel, side Side) *CommitResult {
	res := &CommitResult{}

	for _, h := range c.HTLCs {
		if h.state[side] == RemovedNew {
			c.settleRemoval(side, h)
			res.addRemoved(h)
		}
	}

	for k, h := range c.HTLCs {
		if h.FullyRemoved() {
			delete(c.HTLCs, k)
		}
	}

	c.awaitingRevoke[side] = false

	log.Tracef("revoking %v, %d htlcs finalized", side, len(res.Removed))

	return res
}

// SendingRevAndAck processes this node's own revoke_and_ack for the
// commitment most recently extended to side, retiring the HTLC transitions
// it staged. Mirrors channel_sending_revocation in channel.h.
func (c *Channel) SendingRevAndAck(side Side) *CommitResult {
	return revokeView(c, side)
}

// RcvdRevAndAck processes a revoke_and_ack received from side for the
// commitment most recently extended to it. Symmetric to SendingRevAndAck;
// mirrors channel_rcvd_revocation in channel.h.
func (c *Channel) RcvdRevAndAck(side Side) *CommitResult {
	return revokeView(c, side)
}
