package channel

import (
	"bytes"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
)

// HTLCOutput pairs a commitment transaction output with the HTLC it
// represents, so a caller can go on to build the matching second-stage
// HTLC-success/HTLC-timeout transaction.
type HTLCOutput struct {
	HTLC   *HTLC
	Output *wire.TxOut
}

// setStateHint encodes obscured into txIn's sequence and tx's locktime per
// BOLT-3: a fixed marker in the top byte of each field, the upper 24 of
// the obscured commitment number's 48 bits in the sequence, and the lower
// 24 bits in the locktime.
func setStateHint(tx *wire.MsgTx, txIn *wire.TxIn, obscured uint64) {
	txIn.Sequence = 0x80000000 | uint32((obscured>>24)&0xffffff)
	tx.LockTime = 0x20000000 | uint32(obscured&0xffffff)
}

// visibleHTLCs returns the HTLCs still materialized on side's view: those
// not yet past PendingRemove, i.e. not yet RemovedNew/RemovedCommitted on
// side.
func (c *Channel) visibleHTLCs(side Side) []*HTLC {
	var out []*HTLC
	for _, h := range c.HTLCs {
		switch h.state[side] {
		case PendingAdd, Committed, PendingRemove:
			out = append(out, h)
		}
	}
	return out
}

// htlcKeysFor returns the sender (offerer) and receiver HTLC keys for h as
// seen in keyRing, where keyRing was derived for the commitment owned by
// owner.
func htlcKeysFor(h *HTLC, owner Side, keyRing *CommitmentKeyRing) (sender, receiver *btcec.PublicKey) {
	if h.Offerer == owner {
		return keyRing.LocalHtlcKey, keyRing.RemoteHtlcKey
	}
	return keyRing.RemoteHtlcKey, keyRing.LocalHtlcKey
}

// CreateCommitTx materializes side's current commitment transaction: the
// to_local/to_remote outputs, dust-filtered and fee-adjusted per side's
// view, one output per non-dust HTLC scripted as offered or accepted
// depending on whether side is its offerer, all canonically (BIP-69)
// sorted, spending the channel's 2-of-2 funding output with the
// commitment number obscured into locktime/sequence. Mirrors
// CreateCommitTx in lnwallet/channel.go.
//
// perCommitmentPoint and deriver together stand in for the per-commitment
// secret chain, which the channel core does not own; a failure to derive
// keys is reported as ErrKeyDerivationFailed.
func (c *Channel) CreateCommitTx(side Side, perCommitmentPoint *btcec.PublicKey,
	deriver KeyDeriver) (*wire.MsgTx, []HTLCOutput, error) {

	keyRing, err := deriver.DeriveCommitmentKeys(perCommitmentPoint, side, c.Basepoints)
	if err != nil || keyRing == nil {
		return nil, nil, ErrKeyDerivationFailed
	}

	dl := dustLimit(c.Configs, side)
	feerate := c.View[side].FeeratePerKw

	var nondust []*HTLC
	for _, h := range c.visibleHTLCs(side) {
		incoming := h.Offerer != side
		if htlcIsDust(incoming, true, feerate, h.AmountMsat.ToSatoshis(), dl) {
			continue
		}
		nondust = append(nondust, h)
	}

	fee := commitFee(feerate, len(nondust))

	toLocalAmt := c.View[side].OwedMsat[side].ToSatoshis()
	toRemoteAmt := c.View[side].OwedMsat[side.Other()].ToSatoshis()
	if side == c.Funder {
		toLocalAmt -= fee
	} else {
		toRemoteAmt -= fee
	}

	tx := wire.NewMsgTx(2)

	if toLocalAmt >= dl {
		script, err := commitScriptToSelf(toSelfDelay(c.Configs, side),
			keyRing.ToLocalKey, keyRing.RevocationKey)
		if err != nil {
			return nil, nil, err
		}
		pkScript, err := witnessScriptHash(script)
		if err != nil {
			return nil, nil, err
		}
		tx.AddTxOut(wire.NewTxOut(int64(toLocalAmt), pkScript))
	}

	if toRemoteAmt >= dl {
		// to_remote pays directly to the counterparty's payment key as
		// a plain P2WKH output.
		builder := txscript.NewScriptBuilder()
		builder.AddOp(txscript.OP_0)
		builder.AddData(btcutilHash160(keyRing.ToRemoteKey.SerializeCompressed()))
		script, err := builder.Script()
		if err != nil {
			return nil, nil, err
		}
		tx.AddTxOut(wire.NewTxOut(int64(toRemoteAmt), script))
	}

	var htlcOutputs []HTLCOutput
	for _, h := range nondust {
		senderKey, receiverKey := htlcKeysFor(h, side, keyRing)

		var script []byte
		var err error
		if h.Offerer == side {
			script, err = senderHTLCScript(senderKey, receiverKey,
				keyRing.RevocationKey, h.PaymentHash, h.CltvExpiry)
		} else {
			script, err = receiverHTLCScript(h.CltvExpiry, senderKey,
				receiverKey, keyRing.RevocationKey, h.PaymentHash)
		}
		if err != nil {
			return nil, nil, err
		}

		pkScript, err := witnessScriptHash(script)
		if err != nil {
			return nil, nil, err
		}

		out := wire.NewTxOut(int64(h.AmountMsat.ToSatoshis()), pkScript)
		tx.AddTxOut(out)
		htlcOutputs = append(htlcOutputs, HTLCOutput{HTLC: h, Output: out})
	}

	sortOutputs(tx, htlcOutputs)

	txIn := wire.NewTxIn(&wire.OutPoint{
		Hash:  c.FundingTxid,
		Index: c.FundingOutputIndex,
	}, nil, nil)
	tx.AddTxIn(txIn)

	setStateHint(tx, txIn, c.obscuredCommitmentNumber(side))

	return tx, htlcOutputs, nil
}

// obscuredCommitmentNumber returns side's view's current commitment number
// XOR-ed with the channel's obscurer mask.
func (c *Channel) obscuredCommitmentNumber(side Side) uint64 {
	return c.View[side].CommitmentNumber ^ c.CommitmentNumberObscurer
}

// sortOutputs applies BIP-69 canonical ordering (ascending value, then
// ascending pkScript, with HTLC outputs that still tie broken by ascending
// CltvExpiry per BOLT-3) to tx's outputs, keeping htlcOutputs' Output
// pointers valid since wire.TxOut values are reordered in place, not
// copied afresh. See DESIGN.md's dependency audit for why this sorts
// in place rather than calling out to a txsort package.
func sortOutputs(tx *wire.MsgTx, htlcOutputs []HTLCOutput) {
	cltvOf := make(map[*wire.TxOut]uint32, len(htlcOutputs))
	for _, ho := range htlcOutputs {
		cltvOf[ho.Output] = ho.HTLC.CltvExpiry
	}

	sort.SliceStable(tx.TxOut, func(i, j int) bool {
		a, b := tx.TxOut[i], tx.TxOut[j]
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		if cmp := bytes.Compare(a.PkScript, b.PkScript); cmp != 0 {
			return cmp < 0
		}
		return cltvOf[a] < cltvOf[b]
	})
}

// htlcTimeoutFee and htlcSuccessFee return the fee, in satoshis, the
// matching second-stage transaction pays at feeratePerKw.
func htlcTimeoutFee(feeratePerKw uint64) btcutil.Amount {
	return btcutil.Amount(feeratePerKw * HtlcTimeoutWeight / 1000)
}

func htlcSuccessFee(feeratePerKw uint64) btcutil.Amount {
	return btcutil.Amount(feeratePerKw * HtlcSuccessWeight / 1000)
}

// createHtlcTimeoutTx builds the second-stage transaction that lets the
// offerer of an HTLC reclaim it after cltvExpiry once the commitment
// transaction containing its output has confirmed: a single input
// spending htlcOutput, nLockTime set to cltvExpiry, paying a single
// to_local-style output revocable by revocationKey or spendable by
// delayKey after csvDelay blocks. Mirrors createHtlcTimeoutTx in
// lnwallet/script_utils.go.
func createHtlcTimeoutTx(htlcOutput wire.OutPoint, outputAmt btcutil.Amount,
	cltvExpiry, csvDelay uint32, revocationKey,
	delayKey *btcec.PublicKey) (*wire.MsgTx, error) {

	txIn := wire.NewTxIn(&htlcOutput, nil, nil)
	txIn.Sequence = 0

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(txIn)
	tx.LockTime = cltvExpiry

	script, err := commitScriptToSelf(uint16(csvDelay), delayKey, revocationKey)
	if err != nil {
		return nil, err
	}
	pkScript, err := witnessScriptHash(script)
	if err != nil {
		return nil, err
	}
	tx.AddTxOut(wire.NewTxOut(int64(outputAmt), pkScript))

	return tx, nil
}

// createHtlcSuccessTx builds the second-stage transaction that lets the
// recipient of an HTLC claim it with the preimage once the commitment
// transaction containing its output has confirmed: a single input
// spending htlcOutput, paying a single to_local-style output revocable by
// revocationKey or spendable by delayKey after csvDelay blocks. Unlike the
// timeout transaction it carries no locktime, since the preimage alone
// authorizes the spend. Mirrors createHtlcSuccessTx in
// lnwallet/script_utils.go.
func createHtlcSuccessTx(htlcOutput wire.OutPoint, outputAmt btcutil.Amount,
	csvDelay uint32, revocationKey,
	delayKey *btcec.PublicKey) (*wire.MsgTx, error) {

	txIn := wire.NewTxIn(&htlcOutput, nil, nil)
	txIn.Sequence = 0

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(txIn)

	script, err := commitScriptToSelf(uint16(csvDelay), delayKey, revocationKey)
	if err != nil {
		return nil, err
	}
	pkScript, err := witnessScriptHash(script)
	if err != nil {
		return nil, err
	}
	tx.AddTxOut(wire.NewTxOut(int64(outputAmt), pkScript))

	return tx, nil
}

// HtlcResolutionTx pairs a non-dust HTLC output on a commitment transaction
// with the second-stage transaction that sweeps it: an HTLC-timeout
// transaction if the commitment owner offered the HTLC, an HTLC-success
// transaction if they accepted it. Signing is left to the caller, which
// owns the signing collaborator; WitnessScript is the script the
// second-stage input must satisfy.
type HtlcResolutionTx struct {
	HTLC           *HTLC
	CommitOutpoint wire.OutPoint
	Tx             *wire.MsgTx
	WitnessScript  []byte
}

// ChannelTxs deterministically builds side's unsigned commitment
// transaction together with the array of second-stage HTLC-success/
// HTLC-timeout transactions for every non-dust HTLC it carries, at side's
// currently committed state. Mirrors channel_txs in channel.h and the
// combined CreateCommitTx + per-HTLC createHtlcTimeoutTx/createHtlcSuccessTx
// construction in lnwallet/channel.go's force-close/sign-next-commitment
// paths. A key derivation failure is reported as ErrKeyDerivationFailed;
// the caller should treat that as a protocol abort.
func (c *Channel) ChannelTxs(side Side, perCommitmentPoint *btcec.PublicKey,
	deriver KeyDeriver) (*wire.MsgTx, []HtlcResolutionTx, error) {

	keyRing, err := deriver.DeriveCommitmentKeys(perCommitmentPoint, side, c.Basepoints)
	if err != nil || keyRing == nil {
		return nil, nil, ErrKeyDerivationFailed
	}

	commitTx, htlcOutputs, err := c.CreateCommitTx(side, perCommitmentPoint, deriver)
	if err != nil {
		return nil, nil, err
	}

	commitTxHash := commitTx.TxHash()
	csvDelay := uint32(toSelfDelay(c.Configs, side))
	feerate := c.View[side].FeeratePerKw

	var resolutions []HtlcResolutionTx
	for _, ho := range htlcOutputs {
		h := ho.HTLC

		outIdx := indexOfOutput(commitTx, ho.Output)
		op := wire.OutPoint{Hash: commitTxHash, Index: outIdx}

		var (
			secondStage   *wire.MsgTx
			witnessScript []byte
		)
		senderKey, receiverKey := htlcKeysFor(h, side, keyRing)

		if h.Offerer == side {
			fee := htlcTimeoutFee(feerate)
			outAmt := h.AmountMsat.ToSatoshis() - fee
			secondStage, err = createHtlcTimeoutTx(op, outAmt, h.CltvExpiry,
				csvDelay, keyRing.RevocationKey, keyRing.ToLocalKey)
			if err != nil {
				return nil, nil, err
			}
			witnessScript, err = senderHTLCScript(senderKey, receiverKey,
				keyRing.RevocationKey, h.PaymentHash, h.CltvExpiry)
		} else {
			fee := htlcSuccessFee(feerate)
			outAmt := h.AmountMsat.ToSatoshis() - fee
			secondStage, err = createHtlcSuccessTx(op, outAmt, csvDelay,
				keyRing.RevocationKey, keyRing.ToLocalKey)
			if err != nil {
				return nil, nil, err
			}
			witnessScript, err = receiverHTLCScript(h.CltvExpiry, senderKey,
				receiverKey, keyRing.RevocationKey, h.PaymentHash)
		}
		if err != nil {
			return nil, nil, err
		}

		resolutions = append(resolutions, HtlcResolutionTx{
			HTLC:           h,
			CommitOutpoint: op,
			Tx:             secondStage,
			WitnessScript:  witnessScript,
		})
	}

	log.Tracef("built %v commitment at height %v with %d htlc resolutions: %v",
		side, c.View[side].CommitmentNumber, len(resolutions),
		newLogClosure(func() string {
			return spew.Sdump(commitTx)
		}))

	return commitTx, resolutions, nil
}

// indexOfOutput returns target's index within tx.TxOut. The materializer
// always builds resolutions from outputs it itself just added to tx, so a
// miss here indicates an internal bug.
func indexOfOutput(tx *wire.MsgTx, target *wire.TxOut) uint32 {
	for i, out := range tx.TxOut {
		if out == target {
			return uint32(i)
		}
	}
	panic("channel: htlc output not found on its own commitment transaction")
}
