package testsig

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/guild/crypto"
	"github.com/alphabill-org/guild/types"
)

func CreateSignerAndVerifier(t testing.TB) (crypto.Signer, crypto.Verifier) {
	t.Helper()
	signer, err := crypto.NewInMemorySecp256K1Signer()
	require.NoError(t, err)

	verifier, err := signer.Verifier()
	require.NoError(t, err)
	return signer, verifier
}

// CreateSignerAndIdentity returns new random signer and the identity it controls.
func CreateSignerAndIdentity(t testing.TB) (crypto.Signer, types.Identity) {
	t.Helper()
	signer, verifier := CreateSignerAndVerifier(t)
	pubKey, err := verifier.MarshalPublicKey()
	require.NoError(t, err)
	return signer, types.IdentityFromPubKey(pubKey)
}
