package types

import (
	"crypto"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type testAttributes struct {
	_     struct{} `cbor:",toarray"`
	Name  string
	Value uint64
}

func newTxOrder(t *testing.T) *TransactionOrder {
	t.Helper()
	tx := &TransactionOrder{
		Payload: &Payload{
			PartitionID:    7,
			Type:           "vote",
			UnitID:         NewUnitID(3, 12),
			ClientMetadata: &ClientMetadata{Timeout: 10},
		},
	}
	require.NoError(t, tx.Payload.SetAttributes(&testAttributes{Name: "foo", Value: 30}))
	return tx
}

func TestTransactionOrder_Getters(t *testing.T) {
	tx := newTxOrder(t)
	require.EqualValues(t, 7, tx.PartitionID())
	require.Equal(t, "vote", tx.PayloadType())
	require.EqualValues(t, 10, tx.Timeout())
	require.EqualValues(t, 12, tx.UnitID().Number())
	require.EqualValues(t, 3, tx.UnitID().TypeByte())

	var attr testAttributes
	require.NoError(t, tx.UnmarshalAttributes(&attr))
	require.Equal(t, "foo", attr.Name)
	require.EqualValues(t, 30, attr.Value)

	empty := &TransactionOrder{}
	require.Nil(t, empty.UnitID())
	require.Zero(t, empty.Timeout())
	require.Empty(t, empty.PayloadType())
	require.ErrorContains(t, empty.UnmarshalAttributes(&attr), "payload is nil")
}

func TestTransactionOrder_SetOwnerProof(t *testing.T) {
	tx := newTxOrder(t)
	var signed []byte
	require.NoError(t, tx.SetOwnerProof(func(b []byte) ([]byte, error) {
		signed = b
		return []byte{1, 2, 3}, nil
	}))
	payload, err := tx.PayloadBytes()
	require.NoError(t, err)
	require.Equal(t, payload, signed)
	require.EqualValues(t, []byte{1, 2, 3}, tx.OwnerProof)

	expErr := errors.New("no key")
	err = tx.SetOwnerProof(func(b []byte) ([]byte, error) { return nil, expErr })
	require.ErrorIs(t, err, expErr)
}

func TestTransactionOrder_HashChangesWithProof(t *testing.T) {
	tx := newTxOrder(t)
	h1, err := tx.Hash(crypto.SHA256)
	require.NoError(t, err)
	tx.OwnerProof = []byte{9}
	h2, err := tx.Hash(crypto.SHA256)
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}

func TestRawCBOR_Nil(t *testing.T) {
	b, err := RawCBOR(nil).MarshalCBOR()
	require.NoError(t, err)
	require.Equal(t, cborNil, b)

	var r RawCBOR
	require.NoError(t, r.UnmarshalCBOR(cborNil))
	require.Nil(t, r)
	require.NoError(t, r.UnmarshalCBOR([]byte{0x01}))
	require.EqualValues(t, []byte{0x01}, r)
}

func TestCbor_UnmarshalEmptyInput(t *testing.T) {
	var attr testAttributes
	require.ErrorContains(t, Cbor.Unmarshal(nil, &attr), "EOF")
}
