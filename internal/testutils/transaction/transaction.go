package testtransaction

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/guild/crypto"
	"github.com/alphabill-org/guild/predicates"
	"github.com/alphabill-org/guild/types"
)

const DefaultPartitionID types.PartitionID = 0x00000007

func defaultTx() *types.TransactionOrder {
	return &types.TransactionOrder{
		Payload: &types.Payload{
			PartitionID:    DefaultPartitionID,
			Type:           "test",
			UnitID:         types.NewUnitID(0xFF, 1),
			ClientMetadata: &types.ClientMetadata{Timeout: 10},
		},
	}
}

type Option func(*types.TransactionOrder) error

func WithPartitionID(id types.PartitionID) Option {
	return func(tx *types.TransactionOrder) error {
		tx.Payload.PartitionID = id
		return nil
	}
}

func WithUnitID(id types.UnitID) Option {
	return func(tx *types.TransactionOrder) error {
		tx.Payload.UnitID = id
		return nil
	}
}

func WithTransactionType(typ string) Option {
	return func(tx *types.TransactionOrder) error {
		tx.Payload.Type = typ
		return nil
	}
}

func WithTimeout(timeout uint64) Option {
	return func(tx *types.TransactionOrder) error {
		tx.Payload.ClientMetadata.Timeout = timeout
		return nil
	}
}

func WithClientMetadata(m *types.ClientMetadata) Option {
	return func(tx *types.TransactionOrder) error {
		tx.Payload.ClientMetadata = m
		return nil
	}
}

func WithAttributes(attr any) Option {
	return func(tx *types.TransactionOrder) error {
		return tx.Payload.SetAttributes(attr)
	}
}

func WithOwnerProof(ownerProof []byte) Option {
	return func(tx *types.TransactionOrder) error {
		tx.OwnerProof = ownerProof
		return nil
	}
}

/*
WithSigner signs the transaction with the signer, must be the last option as
changes to the payload made after signing invalidate the proof.
*/
func WithSigner(signer crypto.Signer) Option {
	return func(tx *types.TransactionOrder) error {
		return tx.SetOwnerProof(predicates.OwnerProoferForSigner(signer))
	}
}

func NewTransactionOrder(t testing.TB, options ...Option) *types.TransactionOrder {
	tx := defaultTx()
	for _, o := range options {
		require.NoError(t, o(tx))
	}
	return tx
}

// NewTransactionRecord returns successful transaction record for the tx order.
func NewTransactionRecord(t testing.TB, options ...Option) *types.TransactionRecord {
	return &types.TransactionRecord{
		TransactionOrder: NewTransactionOrder(t, options...),
		ServerMetadata: &types.ServerMetadata{
			SuccessIndicator: types.TxStatusSuccessful,
		},
	}
}
