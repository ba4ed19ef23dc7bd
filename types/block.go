package types

import (
	"crypto"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	errBlockIsNil        = errors.New("block is nil")
	errBlockHeaderIsNil  = errors.New("block header is nil")
	errTransactionsIsNil = errors.New("transactions is nil")
	errPartitionIDIsNil  = errors.New("partition identifier is unassigned")
	errStateHashIsNil    = errors.New("state hash is nil")
)

type (
	Block struct {
		_            struct{} `cbor:",toarray"`
		Header       *Header
		Transactions []*TransactionRecord
		// StateHash is the root hash of the state after all the transactions of the block were executed.
		StateHash []byte
	}

	Header struct {
		_                 struct{} `cbor:",toarray"`
		PartitionID       PartitionID
		Round             uint64
		Timestamp         uint64
		PreviousBlockHash []byte
	}
)

/*
Hash returns the hash of the block: hash of the header, transaction record
hashes in block order and the state hash.
*/
func (b *Block) Hash(algorithm crypto.Hash) ([]byte, error) {
	if err := b.IsValid(); err != nil {
		return nil, err
	}
	hasher := algorithm.New()
	hasher.Write(b.Header.Hash(algorithm))
	for i, tx := range b.Transactions {
		h, err := tx.Hash(algorithm)
		if err != nil {
			return nil, fmt.Errorf("hashing transaction %d: %w", i, err)
		}
		hasher.Write(h)
	}
	hasher.Write(b.StateHash)
	return hasher.Sum(nil), nil
}

func (b *Block) GetRoundNumber() uint64 {
	if b == nil || b.Header == nil {
		return 0
	}
	return b.Header.Round
}

func (b *Block) IsValid() error {
	if b == nil {
		return errBlockIsNil
	}
	if b.Header == nil {
		return errBlockHeaderIsNil
	}
	if b.Header.PartitionID == 0 {
		return errPartitionIDIsNil
	}
	if b.Transactions == nil {
		return errTransactionsIsNil
	}
	if b.StateHash == nil {
		return errStateHashIsNil
	}
	return nil
}

func (h *Header) Hash(algorithm crypto.Hash) []byte {
	if h == nil {
		return nil
	}
	hasher := algorithm.New()
	hasher.Write(h.PartitionID.Bytes())
	hasher.Write(binary.BigEndian.AppendUint64(nil, h.Round))
	hasher.Write(binary.BigEndian.AppendUint64(nil, h.Timestamp))
	hasher.Write(h.PreviousBlockHash)
	return hasher.Sum(nil)
}
