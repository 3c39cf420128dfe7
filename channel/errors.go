package channel

import "errors"

// Sentinel errors returned by AddHTLC. Mirrors the Err* var block at the top
// of lnwallet/channel.go and the channel_add_err enum in channel.h.
var (
	// ErrInvalidExpiry is returned when a proposed HTLC's cltv_expiry is
	// not a plausible block height.
	ErrInvalidExpiry = errors.New("htlc cltv_expiry is not a valid block height")

	// ErrDuplicateHTLC is returned when an HTLC with the same
	// (offerer, id) and identical content is re-added. The HTLC table is
	// left unmodified; the caller should treat this as benign.
	ErrDuplicateHTLC = errors.New("htlc with this id already present with identical content")

	// ErrDuplicateIDMismatch is returned when an HTLC with the same
	// (offerer, id) but different content is re-added.
	ErrDuplicateIDMismatch = errors.New("htlc id reused with different content")

	// ErrHTLCBelowMinimum is returned when a proposed HTLC's value is
	// below the recipient's htlc_minimum_msat.
	ErrHTLCBelowMinimum = errors.New("htlc value below htlc_minimum_msat")

	// ErrTooManyHTLCs is returned when admitting the HTLC would push the
	// sender's live outbound count past the recipient's
	// max_accepted_htlcs.
	ErrTooManyHTLCs = errors.New("htlc would exceed max_accepted_htlcs")

	// ErrMaxHTLCValueExceeded is returned when admitting the HTLC would
	// push the sender's live outbound value past the recipient's
	// max_htlc_value_in_flight_msat.
	ErrMaxHTLCValueExceeded = errors.New("htlc would exceed max_htlc_value_in_flight_msat")

	// ErrInsufficientCapacity is returned when either side's hypothetical
	// commitment transaction, after admitting the HTLC, would violate
	// the fee/reserve affordability rule.
	ErrInsufficientCapacity = errors.New("channel capacity exceeded by htlc")
)

// Sentinel errors returned by FailHTLC/FulfillHTLC. Mirrors
// channel_remove_err in channel.h.
var (
	// ErrNoSuchHTLC is returned when the (offerer, id) pair names no
	// HTLC in the table.
	ErrNoSuchHTLC = errors.New("no htlc with that id")

	// ErrAlreadyFulfilled is returned when the HTLC has already moved
	// into a removed state.
	ErrAlreadyFulfilled = errors.New("htlc is already being removed")

	// ErrBadPreimage is returned when a fulfillment's preimage does not
	// hash to the HTLC's payment_hash.
	ErrBadPreimage = errors.New("preimage does not match payment hash")

	// ErrHTLCUncommitted is returned when a removal is attempted on an
	// HTLC that is not yet Committed at the recipient.
	ErrHTLCUncommitted = errors.New("htlc is not committed at the recipient")

	// ErrHTLCNotIrrevocable is returned when a removal is attempted on an
	// HTLC that is Committed at the recipient but not yet irrevocably
	// committed on both sides: the offerer's own view hasn't caught up
	// to Committed yet, so a revocation could still unwind the add.
	ErrHTLCNotIrrevocable = errors.New("htlc is not yet irrevocably committed on both sides")
)

// ErrAwaitingRevokeAndAck is returned by SendingCommit when the channel
// already has an outstanding, unrevoked commitment extended to the target
// side.
var ErrAwaitingRevokeAndAck = errors.New("cannot send commit while awaiting revoke_and_ack")

// ErrKeyDerivationFailed is the distinguished materializer failure: the
// caller should treat it as a protocol abort.
var ErrKeyDerivationFailed = errors.New("commitment key derivation failed")

// AddHTLCError wraps one of the admission sentinel errors above with the
// (offerer, id) that was rejected, following the pattern of
// InvalidCommitSigError in lnwallet/channel.go: a typed error a caller can
// still compare against the sentinel with errors.Is.
type AddHTLCError struct {
	Cause error
	ID    uint64
}

func (e *AddHTLCError) Error() string {
	return e.Cause.Error()
}

func (e *AddHTLCError) Unwrap() error {
	return e.Cause
}

// RemoveHTLCError wraps one of the removal sentinel errors above with the
// (offerer, id) that was rejected.
type RemoveHTLCError struct {
	Cause   error
	Offerer Side
	ID      uint64
}

func (e *RemoveHTLCError) Error() string {
	return e.Cause.Error()
}

func (e *RemoveHTLCError) Unwrap() error {
	return e.Cause
}
