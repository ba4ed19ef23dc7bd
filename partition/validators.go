package partition

import (
	"errors"
	"fmt"

	"github.com/alphabill-org/guild/txsystem"
	"github.com/alphabill-org/guild/types"
)

type (
	// TxValidator is used to validate generic transactions (e.g. timeouts, partition identifiers, etc.). This validator
	// should not contain transaction system specific validation logic.
	TxValidator interface {
		Validate(tx *types.TransactionOrder, round uint64) error
	}

	DefaultTxValidator struct {
		partitionID types.PartitionID
	}
)

var ErrTxTimeout = errors.New("transaction has timed out")

// NewDefaultTxValidator creates a new instance of default TxValidator.
func NewDefaultTxValidator(partitionID types.PartitionID) (TxValidator, error) {
	if partitionID == 0 {
		return nil, fmt.Errorf("invalid transaction partition identifier: %s", partitionID)
	}
	return &DefaultTxValidator{
		partitionID: partitionID,
	}, nil
}

/*
Validate checks that the transaction could be executed in the round "round":
it is sent to this partition, has not expired and the owner proof is signed
over the payload.
*/
func (dtv *DefaultTxValidator) Validate(tx *types.TransactionOrder, round uint64) error {
	if tx == nil || tx.Payload == nil {
		return errors.New("transaction is nil")
	}
	if dtv.partitionID != tx.PartitionID() {
		// transaction was not sent to correct partition
		return fmt.Errorf("expected %s, got %s: %w", dtv.partitionID, tx.PartitionID(), txsystem.ErrInvalidPartitionIdentifier)
	}
	if tx.Timeout() <= round {
		return fmt.Errorf("transaction timeout round is %d, current round is %d: %w", tx.Timeout(), round, ErrTxTimeout)
	}
	if _, err := txsystem.VerifyOwnerProof(tx); err != nil {
		return err
	}
	return nil
}
