package channel

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
)

// CommitmentKeyRing holds the five keys actually used in one side's
// commitment transaction's scripts, derived from that side's basepoints
// and the per-commitment point in effect for the commitment being built.
// Mirrors commitmentKeyRing in lnwallet/channel.go.
type CommitmentKeyRing struct {
	// CommitPoint is the per-commitment point this ring was derived
	// from.
	CommitPoint *btcec.PublicKey

	// LocalHtlcKey and RemoteHtlcKey are the HTLC-script keys for the
	// commitment owner and counterparty respectively.
	LocalHtlcKey  *btcec.PublicKey
	RemoteHtlcKey *btcec.PublicKey

	// ToLocalKey is the delayed key behind the commitment owner's
	// to_local output.
	ToLocalKey *btcec.PublicKey

	// ToRemoteKey is the per-commitment tweaked key behind the
	// counterparty's to_remote output, as observed on this commitment.
	ToRemoteKey *btcec.PublicKey

	// RevocationKey is the key the counterparty could use to sweep the
	// commitment owner's to_local output, were this commitment revoked.
	RevocationKey *btcec.PublicKey
}

// KeyDeriver derives the per-commitment keys used to build one side's
// commitment transaction. It is a collaborator supplied by the caller
// rather than something the channel core implements internally, since key
// derivation depends on a per-commitment secret chain the channel core
// does not own. DefaultKeyDeriver implements the standard BOLT-3
// derivation from public basepoints and a per-commitment point.
type KeyDeriver interface {
	DeriveCommitmentKeys(commitPoint *btcec.PublicKey, forParty Side,
		basepoints [2]Basepoints) (*CommitmentKeyRing, error)
}

// DefaultKeyDeriver implements the standard BOLT-3 commitment key
// derivation, generalizing deriveCommitmentKeys in lnwallet/channel.go to
// an explicit Side parameter rather than an isOurCommit bool.
type DefaultKeyDeriver struct{}

// DeriveCommitmentKeys derives forParty's commitment key ring at
// commitPoint from both sides' basepoints.
func (DefaultKeyDeriver) DeriveCommitmentKeys(commitPoint *btcec.PublicKey,
	forParty Side, basepoints [2]Basepoints) (*CommitmentKeyRing, error) {

	owner := basepoints[forParty]
	other := basepoints[forParty.Other()]

	return &CommitmentKeyRing{
		CommitPoint:   commitPoint,
		LocalHtlcKey:  TweakPubKey(owner.Htlc, commitPoint),
		RemoteHtlcKey: TweakPubKey(other.Htlc, commitPoint),
		ToLocalKey:    TweakPubKey(owner.DelayedPayment, commitPoint),
		ToRemoteKey:   TweakPubKey(other.Payment, commitPoint),
		RevocationKey: DeriveRevocationPubkey(other.Revocation, commitPoint),
	}, nil
}

// SingleTweakBytes computes the tweak scalar, as a 32-byte big-endian
// integer, used to derive a party's per-commitment htlc/payment/
// delayed_payment key from its basepoint: SHA256(per_commitment_point ||
// basepoint). Mirrors SingleTweakBytes in lnwallet/script_utils.go.
func SingleTweakBytes(commitPoint, basePoint *btcec.PublicKey) []byte {
	h := sha256.New()
	h.Write(commitPoint.SerializeCompressed())
	h.Write(basePoint.SerializeCompressed())
	return h.Sum(nil)
}

// TweakPubKey derives a per-commitment public key from basePoint and
// commitPoint: basePoint + SHA256(commitPoint || basePoint)*G. Mirrors
// TweakPubKey in lnwallet/script_utils.go.
func TweakPubKey(basePoint, commitPoint *btcec.PublicKey) *btcec.PublicKey {
	tweakBytes := SingleTweakBytes(commitPoint, basePoint)

	var tweakScalar btcec.ModNScalar
	tweakScalar.SetByteSlice(tweakBytes)

	var tweakPoint btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&tweakScalar, &tweakPoint)

	var baseJ btcec.JacobianPoint
	basePoint.AsJacobian(&baseJ)

	var resultJ btcec.JacobianPoint
	btcec.AddNonConst(&baseJ, &tweakPoint, &resultJ)
	resultJ.ToAffine()

	return btcec.NewPublicKey(&resultJ.X, &resultJ.Y)
}

// DeriveRevocationPubkey derives the key the counterparty can use to sweep
// a revoked commitment's to_local output:
//
//	revocationBasePoint*SHA256(revocationBasePoint||commitPoint) +
//	commitPoint*SHA256(commitPoint||revocationBasePoint)
//
// Mirrors deriveRevocationPubkey in lnwallet/script_utils.go.
func DeriveRevocationPubkey(revocationBase, commitPoint *btcec.PublicKey) *btcec.PublicKey {
	revokeTweak := SingleTweakBytes(revocationBase, commitPoint)
	commitTweak := SingleTweakBytes(commitPoint, revocationBase)

	var revokeScalar, commitScalar btcec.ModNScalar
	revokeScalar.SetByteSlice(revokeTweak)
	commitScalar.SetByteSlice(commitTweak)

	var baseJ, commitJ btcec.JacobianPoint
	revocationBase.AsJacobian(&baseJ)
	commitPoint.AsJacobian(&commitJ)

	var baseTerm, commitTerm btcec.JacobianPoint
	btcec.ScalarMultNonConst(&revokeScalar, &baseJ, &baseTerm)
	btcec.ScalarMultNonConst(&commitScalar, &commitJ, &commitTerm)

	var sum btcec.JacobianPoint
	btcec.AddNonConst(&baseTerm, &commitTerm, &sum)
	sum.ToAffine()

	return btcec.NewPublicKey(&sum.X, &sum.Y)
}
