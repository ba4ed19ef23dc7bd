package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
)

const (
	PartitionIDLength = 4
	UnitIDLength      = 9
	IdentityLength    = sha256.Size
)

type (
	PartitionID uint32

	// UnitID is the unit key followed by a single unit type byte. For most
	// unit types the key is 8 byte big endian sequence number.
	UnitID []byte

	// Identity is an authority address: SHA-256 hash of the compressed public key
	// of the key pair controlling it. Zero value means "no identity".
	Identity [IdentityLength]byte
)

func NewUnitID(typ byte, n uint64) UnitID {
	id := make([]byte, UnitIDLength)
	binary.BigEndian.PutUint64(id, n)
	id[UnitIDLength-1] = typ
	return id
}

// NewUnitIDFromBytes creates unit ID with arbitrary key, ie identity or
// concatenation of other IDs.
func NewUnitIDFromBytes(typ byte, key ...[]byte) UnitID {
	var id []byte
	for _, k := range key {
		id = append(id, k...)
	}
	return append(id, typ)
}

func (uid UnitID) Compare(key UnitID) int {
	return bytes.Compare(uid, key)
}

func (uid UnitID) String() string {
	return fmt.Sprintf("%X", []byte(uid))
}

func (uid UnitID) Eq(id UnitID) bool {
	return bytes.Equal(uid, id)
}

func (uid UnitID) TypeByte() byte {
	if len(uid) == 0 {
		return 0
	}
	return uid[len(uid)-1]
}

func (uid UnitID) HasType(typ byte) bool {
	return len(uid) > 1 && uid[len(uid)-1] == typ
}

// Key returns the ID without the type byte.
func (uid UnitID) Key() []byte {
	if len(uid) == 0 {
		return nil
	}
	return uid[:len(uid)-1]
}

// Number returns the sequence number part of the ID, zero when the ID is not
// a sequence number based ID.
func (uid UnitID) Number() uint64 {
	if len(uid) != UnitIDLength {
		return 0
	}
	return binary.BigEndian.Uint64(uid)
}

func (uid UnitID) MarshalText() ([]byte, error) {
	return Bytes(uid).MarshalText()
}

func (uid *UnitID) UnmarshalText(src []byte) error {
	return (*Bytes)(uid).UnmarshalText(src)
}

func BytesToPartitionID(b []byte) (PartitionID, error) {
	if len(b) != PartitionIDLength {
		return 0, fmt.Errorf("partition ID length must be %d bytes, got %d bytes", PartitionIDLength, len(b))
	}
	return PartitionID(binary.BigEndian.Uint32(b)), nil
}

func (pid PartitionID) Bytes() []byte {
	b := make([]byte, PartitionIDLength)
	binary.BigEndian.PutUint32(b, uint32(pid))
	return b
}

func (pid PartitionID) String() string {
	return fmt.Sprintf("%08X", uint32(pid))
}

// IdentityFromPubKey returns identity controlled by the (compressed) public key.
func IdentityFromPubKey(pubKey []byte) Identity {
	return sha256.Sum256(pubKey)
}

func (id Identity) IsZero() bool {
	return id == Identity{}
}

func (id Identity) String() string {
	return base58.Encode(id[:])
}

func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *Identity) UnmarshalText(src []byte) error {
	b := base58.Decode(string(src))
	if len(b) != IdentityLength {
		return errors.New("invalid identity encoding")
	}
	copy(id[:], b)
	return nil
}
