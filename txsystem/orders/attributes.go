package orders

import (
	"github.com/alphabill-org/guild/txsystem/rank"
	"github.com/alphabill-org/guild/types"
)

type (
	// CreateOrderAttributes - the tx unit is the target member of the order.
	CreateOrderAttributes struct {
		_            struct{} `cbor:",toarray"`
		Type         OrderType
		NewRank      rank.Rank
		NewAuthority types.Identity
	}

	ExecuteOrderAttributes struct {
		_ struct{} `cbor:",toarray"`
	}

	BlockOrderAttributes struct {
		_ struct{} `cbor:",toarray"`
	}

	RescindOrderAttributes struct {
		_ struct{} `cbor:",toarray"`
	}
)
