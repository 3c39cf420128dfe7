// Package channel implements the bidirectional commitment-state machine for
// a two-party Lightning-style payment channel funded by a 2-of-2 Bitcoin
// output. It tracks the mutually agreed balance of the channel and the set
// of in-flight HTLCs, and exposes the four-message commit/revoke_and_ack
// handshake by which the two sides advance their commitments atomically
// despite asynchronous message flight.
//
// The package does not sign or broadcast transactions, negotiate channel
// funding or mutual close, or perform onion routing; those are the
// responsibility of the peer-session driver that owns a *Channel.
package channel
