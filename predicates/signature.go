package predicates

import (
	"errors"
	"fmt"

	"github.com/alphabill-org/guild/crypto"
	"github.com/alphabill-org/guild/types"
)

var ErrEmptyProof = errors.New("empty owner proof as input")

/*
P2pkh256Signature is a signature and public key pair, used as owner proof of a
transaction: the public key verifies the signature and the SHA-256 hash of the
public key is the identity which authorized the transaction.
*/
type P2pkh256Signature struct {
	_      struct{} `cbor:",toarray"`
	Sig    []byte
	PubKey []byte
}

type Signer interface {
	SignBytes([]byte) ([]byte, error)
	Verifier() (crypto.Verifier, error)
}

func EncodeSignature(sig, pubKey []byte) ([]byte, error) {
	return types.Cbor.Marshal(P2pkh256Signature{Sig: sig, PubKey: pubKey})
}

func decodeSignature(ownerProof []byte) (*P2pkh256Signature, error) {
	if len(ownerProof) == 0 {
		return nil, ErrEmptyProof
	}
	sig := &P2pkh256Signature{}
	if err := types.Cbor.Unmarshal(ownerProof, sig); err != nil {
		return nil, fmt.Errorf("decoding owner proof as Signature: %w", err)
	}
	return sig, nil
}

func ExtractPubKey(ownerProof []byte) ([]byte, error) {
	sig, err := decodeSignature(ownerProof)
	if err != nil {
		return nil, err
	}
	return sig.PubKey, nil
}

/*
VerifyOwnerProof checks that the owner proof is a valid signature of the sigData
and returns the identity of the signer.
*/
func VerifyOwnerProof(ownerProof, sigData []byte) (types.Identity, error) {
	sig, err := decodeSignature(ownerProof)
	if err != nil {
		return types.Identity{}, err
	}
	verifier, err := crypto.NewVerifierSecp256k1(sig.PubKey)
	if err != nil {
		return types.Identity{}, fmt.Errorf("invalid public key: %w", err)
	}
	if err := verifier.VerifyBytes(sig.Sig, sigData); err != nil {
		return types.Identity{}, fmt.Errorf("verifying owner proof: %w", err)
	}
	return types.IdentityFromPubKey(sig.PubKey), nil
}

/*
OwnerProofer returns function which can be used as OwnerProof generator.
"pubKey" must be the public key of the "signer".
The generator function takes "bytes to sign" as a parameter and returns serialized
owner proof (CBOR encoded Signature struct).
*/
func OwnerProofer(signer Signer, pubKey []byte) types.ProofGenerator {
	return func(data []byte) ([]byte, error) {
		sig, err := signer.SignBytes(data)
		if err != nil {
			return nil, fmt.Errorf("signing payload: %w", err)
		}
		return EncodeSignature(sig, pubKey)
	}
}

/*
OwnerProoferForSigner returns OwnerProof generator for the signer.
Prefer OwnerProofer(signer, pubKey) variation when pubKey of the signer
is also already available.
*/
func OwnerProoferForSigner(signer Signer) types.ProofGenerator {
	verifier, err := signer.Verifier()
	if err != nil {
		return func([]byte) ([]byte, error) { return nil, fmt.Errorf("requesting verifier of the signer: %w", err) }
	}
	pubKey, err := verifier.MarshalPublicKey()
	if err != nil {
		return func([]byte) ([]byte, error) { return nil, fmt.Errorf("serializing public key of the signer: %w", err) }
	}
	return OwnerProofer(signer, pubKey)
}

// SignerIdentity returns the identity controlled by the signer.
func SignerIdentity(signer Signer) (types.Identity, error) {
	verifier, err := signer.Verifier()
	if err != nil {
		return types.Identity{}, fmt.Errorf("requesting verifier of the signer: %w", err)
	}
	pubKey, err := verifier.MarshalPublicKey()
	if err != nil {
		return types.Identity{}, fmt.Errorf("serializing public key of the signer: %w", err)
	}
	return types.IdentityFromPubKey(pubKey), nil
}
