package types

import (
	"crypto"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlock_IsValid(t *testing.T) {
	var b *Block
	require.ErrorIs(t, b.IsValid(), errBlockIsNil)

	b = &Block{}
	require.ErrorIs(t, b.IsValid(), errBlockHeaderIsNil)

	b.Header = &Header{Round: 1}
	require.ErrorIs(t, b.IsValid(), errPartitionIDIsNil)

	b.Header.PartitionID = 5
	require.ErrorIs(t, b.IsValid(), errTransactionsIsNil)

	b.Transactions = []*TransactionRecord{}
	require.ErrorIs(t, b.IsValid(), errStateHashIsNil)

	b.StateHash = make([]byte, 32)
	require.NoError(t, b.IsValid())
	require.EqualValues(t, 1, b.GetRoundNumber())
}

func TestBlock_Hash(t *testing.T) {
	b := &Block{
		Header:       &Header{PartitionID: 5, Round: 2, Timestamp: 1000},
		Transactions: []*TransactionRecord{},
		StateHash:    make([]byte, 32),
	}
	h1, err := b.Hash(crypto.SHA256)
	require.NoError(t, err)
	require.Len(t, h1, 32)

	b.Transactions = append(b.Transactions, &TransactionRecord{
		TransactionOrder: &TransactionOrder{Payload: &Payload{PartitionID: 5, Type: "x"}},
		ServerMetadata:   &ServerMetadata{SuccessIndicator: TxStatusSuccessful},
	})
	require.True(t, b.Transactions[0].Succeeded())
	h2, err := b.Hash(crypto.SHA256)
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)

	b.Header.Timestamp++
	h3, err := b.Hash(crypto.SHA256)
	require.NoError(t, err)
	require.NotEqual(t, h2, h3)
}
