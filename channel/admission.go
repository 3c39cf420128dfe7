package channel

// AddHTLC admits a new HTLC offered by sender, checking the ordered rules
// from lnwallet/channel.go's addHTLC/validateCommitmentSanity in sequence:
// a plausible expiry, no conflicting duplicate, not below the recipient's
// minimum, not past the recipient's count or value caps, and, finally,
// that the sender actually owns the offered amount clear of its reserve
// and that both parties' commitment transactions remain affordable with
// the HTLC added. Mirrors channel_add_htlc in channel.h.
//
// On success the HTLC is added to the table in PendingAdd state on both
// sides and amountMsat moves out of the offerer's owed_msat on both views
// into the HTLC itself, keeping owed_msat[LOCAL]+owed_msat[REMOTE]+the sum
// of live HTLC amounts equal to the channel capacity at all times.
//
// Re-adding an (offerer, id) pair already present with identical content
// is a no-op returning ErrDuplicateHTLC; re-use with different content
// returns ErrDuplicateIDMismatch. Both are reported via AddHTLCError so a
// caller can recover the rejected id.
func (c *Channel) AddHTLC(sender Side, id uint64, amountMsat MilliSatoshi,
	cltvExpiry uint32, paymentHash [32]byte,
	routingPacket [TotalPacketSize]byte) error {

	recipient := sender.Other()

	if cltvExpiry == 0 || cltvExpiry >= maxCltvExpiry {
		return &AddHTLCError{Cause: ErrInvalidExpiry, ID: id}
	}

	if existing, ok := c.GetHTLC(sender, id); ok {
		if existing.sameContent(amountMsat, cltvExpiry, paymentHash, routingPacket) {
			return &AddHTLCError{Cause: ErrDuplicateHTLC, ID: id}
		}
		return &AddHTLCError{Cause: ErrDuplicateIDMismatch, ID: id}
	}

	if amountMsat < minHTLC(c.Configs, recipient) {
		return &AddHTLCError{Cause: ErrHTLCBelowMinimum, ID: id}
	}

	liveCount, liveValue := c.liveOutboundFromOfferer(sender)
	if liveCount+1 > int(maxAcceptedHtlcs(c.Configs, recipient)) {
		return &AddHTLCError{Cause: ErrTooManyHTLCs, ID: id}
	}
	if liveValue+amountMsat > maxPendingAmount(c.Configs, recipient) {
		return &AddHTLCError{Cause: ErrMaxHTLCValueExceeded, ID: id}
	}

	if !c.offererCanCover(Local, sender, amountMsat) ||
		!c.offererCanCover(Remote, sender, amountMsat) {

		return &AddHTLCError{Cause: ErrInsufficientCapacity, ID: id}
	}

	candidate := &HTLC{
		Offerer:       sender,
		ID:            id,
		AmountMsat:    amountMsat,
		CltvExpiry:    cltvExpiry,
		PaymentHash:   paymentHash,
		RoutingPacket: routingPacket,
	}

	trial := c.Copy()
	trial.HTLCs[HTLCKey{Offerer: sender, ID: id}] = candidate.clone()
	trial.earmarkForAdd(sender, amountMsat)

	if !trial.canAffordFeerateOnView(Local, trial.View[Local].FeeratePerKw) ||
		!trial.canAffordFeerateOnView(Remote, trial.View[Remote].FeeratePerKw) {

		return &AddHTLCError{Cause: ErrInsufficientCapacity, ID: id}
	}

	c.HTLCs[HTLCKey{Offerer: sender, ID: id}] = candidate
	c.earmarkForAdd(sender, amountMsat)

	return nil
}

// offererCanCover reports whether sender actually owns amountMsat on side's
// view and, once it's deducted, stays at or above the reserve the other
// side imposes on it. Checked before any balance moves, since OwedMsat is
// unsigned and earmarkForAdd's deduction would otherwise wrap. The funder's
// reserve is additionally re-checked against its post-fee balance by the
// affordability probe below; this guard is what binds a non-funder, whose
// balance the commitment fee never touches.
func (c *Channel) offererCanCover(side, sender Side, amountMsat MilliSatoshi) bool {
	owed := c.View[side].OwedMsat[sender]
	if owed < amountMsat {
		return false
	}
	return (owed - amountMsat).ToSatoshis() >= reserve(c.Configs, sender)
}

// earmarkForAdd moves amountMsat out of offerer's owed_msat on both views
// into the HTLC table, preserving the balance invariant now that the HTLC
// itself carries that value.
func (c *Channel) earmarkForAdd(offerer Side, amountMsat MilliSatoshi) {
	for _, side := range []Side{Local, Remote} {
		view := c.View[side]
		view.OwedMsat[offerer] -= amountMsat
		c.View[side] = view
	}
}

// liveOutboundFromOfferer counts and sums the live HTLCs offerer has
// proposed that have not yet been fully removed, used to enforce the
// recipient's max_accepted_htlcs/max_htlc_value_in_flight_msat caps.
func (c *Channel) liveOutboundFromOfferer(offerer Side) (count int, valueMsat MilliSatoshi) {
	for _, h := range c.HTLCs {
		if h.Offerer != offerer {
			continue
		}
		if !h.live() {
			continue
		}
		count++
		valueMsat += h.AmountMsat
	}
	return count, valueMsat
}
