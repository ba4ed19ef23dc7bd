package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	// CompressedSecp256K1PublicKeySize is size of public key in compressed format
	CompressedSecp256K1PublicKeySize = 33
	// PrivateKeySecp256K1Size is the size of the private key in bytes
	PrivateKeySecp256K1Size = 32
	// SignatureSize is the size of the signature: R || S || V
	SignatureSize = 65
)

var (
	ErrInvalidSignature = errors.New("signature verification failed")
	errNilSigner        = errors.New("signer is nil")
)

type (
	// InMemorySecp256K1Signer keeps the private key in memory, for tests and development nodes.
	InMemorySecp256K1Signer struct {
		privKey *ecdsa.PrivateKey
	}

	verifierSecp256k1 struct {
		pubKey *ecdsa.PublicKey
	}
)

// NewInMemorySecp256K1Signer generates new key pair.
func NewInMemorySecp256K1Signer() (*InMemorySecp256K1Signer, error) {
	privKey, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating secp256k1 key: %w", err)
	}
	return &InMemorySecp256K1Signer{privKey: privKey}, nil
}

// NewInMemorySecp256K1SignerFromKey creates signer from the 32 byte private key.
func NewInMemorySecp256K1SignerFromKey(privKey []byte) (*InMemorySecp256K1Signer, error) {
	if len(privKey) != PrivateKeySecp256K1Size {
		return nil, fmt.Errorf("invalid private key length %d, expected %d", len(privKey), PrivateKeySecp256K1Size)
	}
	key, err := ethcrypto.ToECDSA(privKey)
	if err != nil {
		return nil, fmt.Errorf("decoding private key: %w", err)
	}
	return &InMemorySecp256K1Signer{privKey: key}, nil
}

// SignBytes signs the SHA-256 hash of the data.
func (s *InMemorySecp256K1Signer) SignBytes(data []byte) ([]byte, error) {
	if s == nil {
		return nil, errNilSigner
	}
	digest := sha256.Sum256(data)
	return ethcrypto.Sign(digest[:], s.privKey)
}

func (s *InMemorySecp256K1Signer) MarshalPrivateKey() ([]byte, error) {
	if s == nil {
		return nil, errNilSigner
	}
	return ethcrypto.FromECDSA(s.privKey), nil
}

func (s *InMemorySecp256K1Signer) Verifier() (Verifier, error) {
	if s == nil {
		return nil, errNilSigner
	}
	return &verifierSecp256k1{pubKey: &s.privKey.PublicKey}, nil
}

// NewVerifierSecp256k1 creates verifier from the compressed public key.
func NewVerifierSecp256k1(compressedPubKey []byte) (Verifier, error) {
	if len(compressedPubKey) != CompressedSecp256K1PublicKeySize {
		return nil, fmt.Errorf("pubkey must be %d bytes long, but is %d", CompressedSecp256K1PublicKeySize, len(compressedPubKey))
	}
	key, err := ethcrypto.DecompressPubkey(compressedPubKey)
	if err != nil {
		return nil, fmt.Errorf("decompressing public key: %w", err)
	}
	return &verifierSecp256k1{pubKey: key}, nil
}

func (v *verifierSecp256k1) VerifyBytes(sig []byte, data []byte) error {
	if len(sig) != SignatureSize {
		return fmt.Errorf("signature length is %d b (expected %d b)", len(sig), SignatureSize)
	}
	digest := sha256.Sum256(data)
	// the recovery byte is not used for verification
	if !ethcrypto.VerifySignature(ethcrypto.CompressPubkey(v.pubKey), digest[:], sig[:SignatureSize-1]) {
		return ErrInvalidSignature
	}
	return nil
}

func (v *verifierSecp256k1) MarshalPublicKey() ([]byte, error) {
	return ethcrypto.CompressPubkey(v.pubKey), nil
}
