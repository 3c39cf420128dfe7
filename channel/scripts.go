package channel

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"golang.org/x/crypto/ripemd160"
)

// btcutilHash160 is HASH160 (RIPEMD160(SHA256(data))), the standard
// pubkey-hashing operator used throughout these scripts.
func btcutilHash160(data []byte) []byte {
	return btcutil.Hash160(data)
}

// ripemd160H returns RIPEMD160(paymentHash). Since paymentHash is itself
// SHA256(preimage), this equals HASH160(preimage) — the value these
// scripts compare the preimage's hash against, per BOLT-3.
func ripemd160H(paymentHash [32]byte) []byte {
	h := ripemd160.New()
	h.Write(paymentHash[:])
	return h.Sum(nil)
}

// commitScriptToSelf constructs the witness script backing a commitment
// owner's to_local output: spendable immediately by the counterparty with
// the revocation key, or by the owner after csvDelay blocks via
// selfKey. Mirrors commitScriptToSelf in lnwallet/script_utils.go.
func commitScriptToSelf(csvDelay uint16, selfKey,
	revocationKey *btcec.PublicKey) ([]byte, error) {

	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_IF)
	builder.AddData(revocationKey.SerializeCompressed())
	builder.AddOp(txscript.OP_ELSE)
	builder.AddInt64(int64(csvDelay))
	builder.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(selfKey.SerializeCompressed())
	builder.AddOp(txscript.OP_ENDIF)
	builder.AddOp(txscript.OP_CHECKSIG)

	return builder.Script()
}

// witnessScriptHash returns the P2WSH scriptPubKey paying to witnessScript.
func witnessScriptHash(witnessScript []byte) ([]byte, error) {
	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_0)
	scriptHash := chainhash.HashB(witnessScript)
	bldr.AddData(scriptHash)
	return bldr.Script()
}

// senderHTLCScript constructs the witness script for an HTLC offered by
// the commitment owner: the recipient can claim it with the preimage
// before cltvExpiry, the revocation key can sweep it unconditionally after
// a breach, and the offerer can reclaim it after cltvExpiry. Mirrors
// senderHTLCScript in lnwallet/script_utils.go.
func senderHTLCScript(senderHtlcKey, receiverHtlcKey,
	revocationKey *btcec.PublicKey, paymentHash [32]byte,
	cltvExpiry uint32) ([]byte, error) {

	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_DUP)
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(btcutilHash160(revocationKey.SerializeCompressed()))
	builder.AddOp(txscript.OP_EQUAL)
	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ELSE)
	builder.AddData(receiverHtlcKey.SerializeCompressed())
	builder.AddOp(txscript.OP_SWAP)
	builder.AddOp(txscript.OP_SIZE)
	builder.AddInt64(32)
	builder.AddOp(txscript.OP_EQUAL)
	builder.AddOp(txscript.OP_NOTIF)
	builder.AddOp(txscript.OP_DROP)
	builder.AddInt64(2)
	builder.AddOp(txscript.OP_SWAP)
	builder.AddData(senderHtlcKey.SerializeCompressed())
	builder.AddInt64(2)
	builder.AddOp(txscript.OP_CHECKMULTISIG)
	builder.AddOp(txscript.OP_ELSE)
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(ripemd160H(paymentHash))
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ENDIF)
	builder.AddOp(txscript.OP_ENDIF)

	return builder.Script()
}

// receiverHTLCScript constructs the witness script for an HTLC accepted by
// the commitment owner: claimable immediately with the preimage, by the
// revocation key after a breach, or by the offerer after cltvExpiry.
// Mirrors receiverHTLCScript in lnwallet/script_utils.go.
func receiverHTLCScript(cltvExpiry uint32, senderHtlcKey, receiverHtlcKey,
	revocationKey *btcec.PublicKey, paymentHash [32]byte) ([]byte, error) {

	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_DUP)
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(btcutilHash160(revocationKey.SerializeCompressed()))
	builder.AddOp(txscript.OP_EQUAL)
	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ELSE)
	builder.AddData(senderHtlcKey.SerializeCompressed())
	builder.AddOp(txscript.OP_SWAP)
	builder.AddOp(txscript.OP_SIZE)
	builder.AddInt64(32)
	builder.AddOp(txscript.OP_EQUAL)
	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(ripemd160H(paymentHash))
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddInt64(2)
	builder.AddOp(txscript.OP_SWAP)
	builder.AddData(receiverHtlcKey.SerializeCompressed())
	builder.AddInt64(2)
	builder.AddOp(txscript.OP_CHECKMULTISIG)
	builder.AddOp(txscript.OP_ELSE)
	builder.AddOp(txscript.OP_DROP)
	builder.AddInt64(int64(cltvExpiry))
	builder.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ENDIF)
	builder.AddOp(txscript.OP_ENDIF)

	return builder.Script()
}
