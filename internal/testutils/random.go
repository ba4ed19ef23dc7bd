package test

import (
	"crypto/rand"

	"github.com/alphabill-org/guild/types"
)

func RandomBytes(len int) []byte {
	bytes := make([]byte, len)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return bytes
}

// RandomIdentity returns identity which is not derived from any key, useful
// as an outsider that has no key in the test.
func RandomIdentity() types.Identity {
	var id types.Identity
	copy(id[:], RandomBytes(len(id)))
	return id
}
