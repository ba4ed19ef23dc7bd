package treasury

import (
	"github.com/alphabill-org/guild/types"
)

const (
	TxDeposit           = "deposit"
	TxLockFunds         = "lockFunds"
	TxTreasurerTransfer = "treasurerTransfer"
	TxTreasurerCall     = "treasurerCall"
)

// Unit of all the treasury transactions is the fund unit.
type (
	DepositAttributes struct {
		_      struct{} `cbor:",toarray"`
		Asset  string
		Amount *Amount
	}

	// LockFundsAttributes engages the emergency lock of the fund.
	LockFundsAttributes struct {
		_ struct{} `cbor:",toarray"`
	}

	TreasurerTransferAttributes struct {
		_      struct{} `cbor:",toarray"`
		Asset  string
		To     types.Identity
		Amount *Amount
	}

	TreasurerCallAttributes struct {
		_       struct{} `cbor:",toarray"`
		Target  types.Identity
		Value   *Amount
		Payload types.Bytes
	}
)
