package channel

import "github.com/btcsuite/btcd/btcutil"

// MilliSatoshi represents a thousandth of a satoshi. Balances and HTLC
// amounts within the channel are tracked at this resolution so that
// per-HTLC fee shares never need to round to whole satoshis internally.
type MilliSatoshi uint64

// NewMSatFromSatoshis creates a new MilliSatoshi instance from a regular
// satoshi amount.
func NewMSatFromSatoshis(sat btcutil.Amount) MilliSatoshi {
	return MilliSatoshi(sat * 1000)
}

// ToSatoshis converts a MilliSatoshi amount to its corresponding value in
// satoshis, truncating any fractional satoshi amount.
func (m MilliSatoshi) ToSatoshis() btcutil.Amount {
	return btcutil.Amount(m / 1000)
}

// Side represents one of the two parties to a channel.
type Side uint8

const (
	// Local is the side of the channel owned by the node running this
	// code.
	Local Side = iota

	// Remote is the other channel party.
	Remote
)

// Other returns the opposite side. It is a pure involution: Other(Other(s))
// == s.
func (s Side) Other() Side {
	if s == Local {
		return Remote
	}
	return Local
}

func (s Side) String() string {
	switch s {
	case Local:
		return "local"
	case Remote:
		return "remote"
	default:
		return "unknown"
	}
}
