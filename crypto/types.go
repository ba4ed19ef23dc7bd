package crypto

type (
	// Signer holds the private authority key of an identity.
	Signer interface {
		// SignBytes signs the SHA-256 digest of the data.
		SignBytes(data []byte) ([]byte, error)
		MarshalPrivateKey() ([]byte, error)
		Verifier() (Verifier, error)
	}

	// Verifier checks signatures against a public authority key.
	Verifier interface {
		// VerifyBytes returns ErrInvalidSignature when sig is not a signature of the data.
		VerifyBytes(sig []byte, data []byte) error
		// MarshalPublicKey returns the key in 33 byte compressed form, identity
		// of the key owner is the SHA-256 hash of it.
		MarshalPublicKey() ([]byte, error)
	}
)
