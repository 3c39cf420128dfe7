package channel

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// testKeySeed derives a deterministic private/public keypair from seed, so
// fixtures are reproducible across runs without needing real randomness.
// Mirrors the deterministic testWalletPrivKey/bobsPrivKey fixtures in
// lnwallet/script_utils_test.go.
func testKeySeed(seed byte) (*btcec.PrivateKey, *btcec.PublicKey) {
	var b [32]byte
	b[31] = seed
	priv, pub := btcec.PrivKeyFromBytes(b[:])
	return priv, pub
}

// testBasepoints builds a full Basepoints set from a single seed byte,
// deriving each of the five points from a distinct seed offset so they're
// never accidentally equal to one another.
func testBasepoints(seed byte) Basepoints {
	_, revocation := testKeySeed(seed + 1)
	_, payment := testKeySeed(seed + 2)
	_, htlc := testKeySeed(seed + 3)
	_, delayed := testKeySeed(seed + 4)
	_, funding := testKeySeed(seed + 5)

	return Basepoints{
		Revocation:     revocation,
		Payment:        payment,
		Htlc:           htlc,
		DelayedPayment: delayed,
		FundingKey:     funding,
	}
}

// testConfig returns a permissive ChannelConfig suitable for most tests;
// individual tests override the fields they're exercising.
func testConfig() ChannelConfig {
	return ChannelConfig{
		DustLimit:        btcutil.Amount(573),
		MaxPendingAmount: NewMSatFromSatoshis(10_000_000),
		MaxAcceptedHtlcs: 483,
		ChanReserve:      btcutil.Amount(10_000),
		MinHTLC:          1000,
		CsvDelay:         144,
	}
}

// newTestChannel opens a channel with 1,000,000 sat of capacity, no push,
// LOCAL as funder, at a low feerate, using permissive configs on both
// sides.
func newTestChannel() (*Channel, error) {
	var txid chainhash.Hash
	txid[0] = 1

	return NewChannel(
		txid, 0, btcutil.Amount(1_000_000), 0, 253,
		testConfig(), testConfig(),
		testBasepoints(0), testBasepoints(100),
		Local,
	)
}

func testPreimage(b byte) (preimage [32]byte, hash [32]byte) {
	preimage[0] = b
	hash = sha256.Sum256(preimage[:])
	return preimage, hash
}

var testRouting [TotalPacketSize]byte
