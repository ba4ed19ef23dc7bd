package txsystem

import (
	"errors"
	"fmt"

	"github.com/alphabill-org/guild/predicates"
	"github.com/alphabill-org/guild/types"
)

var (
	ErrTransactionExpired         = errors.New("transaction timeout must be greater than current round number")
	ErrInvalidPartitionIdentifier = errors.New("invalid partition identifier")
	ErrInvalidOwnerProof          = errors.New("invalid owner proof")
)

/*
VerifyOwnerProof checks the signature of the transaction and returns the
identity which signed it.
*/
func VerifyOwnerProof(tx *types.TransactionOrder) (types.Identity, error) {
	payloadBytes, err := tx.PayloadBytes()
	if err != nil {
		return types.Identity{}, fmt.Errorf("failed to marshal payload bytes: %w", err)
	}
	id, err := predicates.VerifyOwnerProof(tx.OwnerProof, payloadBytes)
	if err != nil {
		return types.Identity{}, fmt.Errorf("%w: %w", ErrInvalidOwnerProof, err)
	}
	return id, nil
}
