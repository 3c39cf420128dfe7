package channel

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
)

// ChannelConfig holds the channel parameters self-imposed or imposed on the
// counterparty by one side of a channel. It is immutable once the channel is
// open. Field names and the constraint/config split follow
// channeldb.ChannelConfig/ChannelConstraints in lnd's lnwallet.
type ChannelConfig struct {
	// DustLimit is the threshold, in satoshis, below which an output is
	// trimmed from that side's commitment rather than materialized.
	DustLimit btcutil.Amount

	// MaxPendingAmount is the cap on the total value of in-flight HTLCs
	// this config's owner will accept from the other side
	// (max_htlc_value_in_flight_msat).
	MaxPendingAmount MilliSatoshi

	// MaxAcceptedHtlcs is the cap on the number of in-flight HTLCs this
	// config's owner will accept from the other side. Must never exceed
	// MaxAcceptedHtlcsLimit.
	MaxAcceptedHtlcs uint16

	// ChanReserve is the minimum balance, in satoshis, that this config's
	// owner requires the *other* side keep unencumbered in the channel.
	ChanReserve btcutil.Amount

	// MinHTLC is the smallest HTLC value this config's owner will accept.
	MinHTLC MilliSatoshi

	// CsvDelay is the relative locktime, in blocks, that this config's
	// owner imposes on the *other* side's to_local output
	// (to_self_delay).
	CsvDelay uint16
}

// MaxAcceptedHtlcsLimit is the hard protocol ceiling on MaxAcceptedHtlcs,
// chosen so that a penalty transaction sweeping every HTLC output from a
// breached commitment stays under the standard transaction weight policy
// limit.
const MaxAcceptedHtlcsLimit = 483

// Basepoints holds the five public basepoints a party reveals at channel
// open. Combined with a per-commitment point, they derive the commitment-
// specific keys used on that party's commitment transaction (BOLT-3).
type Basepoints struct {
	// Revocation is the basepoint used to derive the revocation key the
	// counterparty can use to punish a revoked commitment broadcast by
	// this party.
	Revocation *btcec.PublicKey

	// Payment is the basepoint used to derive the key behind this
	// party's non-delayed commitment output, as observed by the
	// counterparty.
	Payment *btcec.PublicKey

	// Htlc is the basepoint used to derive this party's key within HTLC
	// scripts.
	Htlc *btcec.PublicKey

	// DelayedPayment is the basepoint used to derive the key behind this
	// party's delayed to_local commitment output.
	DelayedPayment *btcec.PublicKey

	// FundingKey is the public key this party contributes to the 2-of-2
	// funding output.
	FundingKey *btcec.PublicKey
}

// dustLimit returns the dust limit that applies to outputs paid to
// recipient on the commitment transaction owned by recipient's observer.
// Per BOLT-2, dust_limit is self-imposed: it always comes from the
// recipient's own config.
func dustLimit(cfgs [2]ChannelConfig, recipient Side) btcutil.Amount {
	return cfgs[recipient].DustLimit
}

// maxPendingAmount returns the in-flight value cap that the recipient
// imposes on HTLCs offered to it.
func maxPendingAmount(cfgs [2]ChannelConfig, recipient Side) MilliSatoshi {
	return cfgs[recipient].MaxPendingAmount
}

// maxAcceptedHtlcs returns the count cap that the recipient imposes on
// HTLCs offered to it.
func maxAcceptedHtlcs(cfgs [2]ChannelConfig, recipient Side) uint16 {
	return cfgs[recipient].MaxAcceptedHtlcs
}

// minHTLC returns the smallest HTLC value the recipient will accept.
func minHTLC(cfgs [2]ChannelConfig, recipient Side) MilliSatoshi {
	return cfgs[recipient].MinHTLC
}

// reserve returns the reserve that side must maintain, which per BOLT-2 is
// imposed by the *other* side's config.
func reserve(cfgs [2]ChannelConfig, side Side) btcutil.Amount {
	return cfgs[side.Other()].ChanReserve
}

// toSelfDelay returns the relative locktime that side's to_local output
// must honor, which is imposed by the *other* side's config.
func toSelfDelay(cfgs [2]ChannelConfig, side Side) uint16 {
	return cfgs[side.Other()].CsvDelay
}
