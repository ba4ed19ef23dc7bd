package types

import (
	"crypto"
	"fmt"
)

const (
	// TxStatusFailed is the status code of a transaction if execution failed.
	TxStatusFailed = uint64(0)

	// TxStatusSuccessful is the status code of a transaction if execution succeeded.
	TxStatusSuccessful = uint64(1)
)

type (
	// TransactionRecord is a transaction order with "server-side" metadata added to it.
	// TransactionRecord is a structure that is added to the block.
	TransactionRecord struct {
		_                struct{} `cbor:",toarray"`
		TransactionOrder *TransactionOrder
		ServerMetadata   *ServerMetadata
	}

	ServerMetadata struct {
		_                struct{} `cbor:",toarray"`
		TargetUnits      []UnitID
		SuccessIndicator uint64
		// ProcessingDetails carries the error message of a failed transaction.
		ProcessingDetails string
	}
)

func (t *TransactionRecord) Hash(algorithm crypto.Hash) ([]byte, error) {
	b, err := t.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding transaction record: %w", err)
	}
	hasher := algorithm.New()
	hasher.Write(b)
	return hasher.Sum(nil), nil
}

func (t *TransactionRecord) Bytes() ([]byte, error) {
	return Cbor.Marshal(t)
}

func (t *TransactionRecord) Succeeded() bool {
	return t.ServerMetadata != nil && t.ServerMetadata.SuccessIndicator == TxStatusSuccessful
}

func (sm *ServerMetadata) GetTargetUnits() []UnitID {
	if sm == nil {
		return nil
	}
	return sm.TargetUnits
}
