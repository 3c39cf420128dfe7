package channel

// TotalPacketSize is the fixed length of the opaque onion routing packet
// copied into each HTLC. Routing payload parsing is out of scope for the
// channel core; the packet is carried as opaque bytes.
const TotalPacketSize = 1366

// maxCltvExpiry is the largest value treated as a block height rather than a
// unix timestamp, following the historical nLockTime convention BOLT-2
// inherits.
const maxCltvExpiry = 500_000_000

// HTLCState is the per-side lifecycle stage of an HTLC. Each side of an
// HTLC advances through these states independently; an HTLC is
// "irrevocably committed" once both sides read Committed, and "fully
// removed" once both sides read RemovedCommitted.
type HTLCState uint8

const (
	// PendingAdd is the initial state: the HTLC has been offered but not
	// yet included in this side's committed commitment transaction.
	PendingAdd HTLCState = iota

	// Committed means this side's current commitment transaction
	// includes the HTLC output.
	Committed

	// PendingRemove means a fail or fulfill has been staged for this
	// HTLC but is not yet reflected in this side's committed
	// commitment.
	PendingRemove

	// RemovedNew means this side's most recently signed (but not yet
	// revoked) commitment no longer includes the HTLC, but the prior,
	// still-valid commitment might.
	RemovedNew

	// RemovedCommitted means this side's committed commitment no longer
	// includes the HTLC and the removal can no longer be undone. Once
	// both sides read RemovedCommitted the HTLC is garbage-collectible.
	RemovedCommitted
)

func (s HTLCState) String() string {
	switch s {
	case PendingAdd:
		return "PendingAdd"
	case Committed:
		return "Committed"
	case PendingRemove:
		return "PendingRemove"
	case RemovedNew:
		return "RemovedNew"
	case RemovedCommitted:
		return "RemovedCommitted"
	default:
		return "<unknown htlc state>"
	}
}

// RemovalType distinguishes the two ways a pending HTLC can be resolved.
type RemovalType uint8

const (
	// NoRemoval indicates the HTLC has not been staged for removal.
	NoRemoval RemovalType = iota

	// Fail indicates the HTLC is being cancelled; its value returns to
	// the offerer once the removal commits.
	Fail

	// Fulfill indicates the HTLC is being settled with a preimage; its
	// value moves to the non-offerer once the removal commits.
	Fulfill
)

func (r RemovalType) String() string {
	switch r {
	case NoRemoval:
		return "none"
	case Fail:
		return "fail"
	case Fulfill:
		return "fulfill"
	default:
		return "<unknown removal type>"
	}
}

// HTLCKey identifies an HTLC by the side that offered it and that side's
// per-offerer monotonic id.
type HTLCKey struct {
	Offerer Side
	ID      uint64
}

// HTLC represents a single Hashed Time-Locked Contract live within a
// channel. Its per-side state pair advances independently as the
// commitment handshake promotes staged changes on each side's view.
type HTLC struct {
	// Offerer is the side that proposed the HTLC; it is also the side
	// whose funds are earmarked until the HTLC is fulfilled or failed.
	Offerer Side

	// ID is the offerer's monotonically increasing identifier for this
	// HTLC.
	ID uint64

	// AmountMsat is the HTLC value.
	AmountMsat MilliSatoshi

	// CltvExpiry is the absolute block height after which the HTLC can
	// no longer be redeemed by its recipient.
	CltvExpiry uint32

	// PaymentHash is the hash whose preimage redeems the HTLC.
	PaymentHash [32]byte

	// RoutingPacket is the opaque onion packet copied in at admission
	// time. It is owned by the HTLC for its lifetime.
	RoutingPacket [TotalPacketSize]byte

	// Preimage is populated once known, after a successful fulfillment.
	Preimage *[32]byte

	// state holds the independent per-side lifecycle stage.
	state [2]HTLCState

	// removal is set once a removal has been staged; NoRemoval before
	// then.
	removal RemovalType
}

// State returns the HTLC's lifecycle stage as observed from side.
func (h *HTLC) State(side Side) HTLCState {
	return h.state[side]
}

// Removal returns how this HTLC is being (or was) resolved; NoRemoval if it
// hasn't been staged for removal.
func (h *HTLC) Removal() RemovalType {
	return h.removal
}

// IrrevocablyCommitted reports whether the HTLC is Committed on both sides.
func (h *HTLC) IrrevocablyCommitted() bool {
	return h.state[Local] == Committed && h.state[Remote] == Committed
}

// FullyRemoved reports whether the HTLC is RemovedCommitted on both sides
// and is therefore garbage-collectible.
func (h *HTLC) FullyRemoved() bool {
	return h.state[Local] == RemovedCommitted &&
		h.state[Remote] == RemovedCommitted
}

// live reports whether this HTLC still earmarks the offerer's funds: true
// from the moment it's offered until it's RemovedCommitted on both sides.
func (h *HTLC) live() bool {
	return !h.FullyRemoved()
}

// sameContent reports whether a candidate re-add of the same (offerer, id)
// is byte-identical to this HTLC's original terms.
func (h *HTLC) sameContent(msat MilliSatoshi, cltvExpiry uint32,
	paymentHash [32]byte, routing [TotalPacketSize]byte) bool {

	return h.AmountMsat == msat &&
		h.CltvExpiry == cltvExpiry &&
		h.PaymentHash == paymentHash &&
		h.RoutingPacket == routing
}

// clone returns a deep copy of the HTLC, used by Channel.Copy.
func (h *HTLC) clone() *HTLC {
	cp := *h
	if h.Preimage != nil {
		preimage := *h.Preimage
		cp.Preimage = &preimage
	}
	return &cp
}
