package orders

import (
	"fmt"
	"hash"

	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/txsystem/rank"
	"github.com/alphabill-org/guild/types"
)

const (
	OrderUnitType   = 0x07
	CounterUnitType = 0x08
)

var CounterID = types.NewUnitID(CounterUnitType, 0)

func NewOrderID(id uint64) types.UnitID {
	return types.NewUnitID(OrderUnitType, id)
}

type OrderType uint8

const (
	Promote OrderType = iota + 1
	Demote
	ReassignAuthority
)

func (t OrderType) String() string {
	switch t {
	case Promote:
		return "promote"
	case Demote:
		return "demote"
	case ReassignAuthority:
		return "reassign-authority"
	default:
		return fmt.Sprintf("order-type(%d)", uint8(t))
	}
}

type Status uint8

const (
	Pending Status = iota
	Blocked
	Executed
	Rescinded
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Blocked:
		return "blocked"
	case Executed:
		return "executed"
	case Rescinded:
		return "rescinded"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

type (
	/*
	Order is scheduled unilateral action of a member (issuer) against another
	member (target) of lower rank. The rank of the issuer is frozen when the
	order is created.
	*/
	Order struct {
		_          struct{}  `cbor:",toarray"`
		ID         uint64    `json:"id"`
		Type       OrderType `json:"type"`
		Issuer     uint64    `json:"issuer"`
		IssuerRank rank.Rank `json:"issuerRank"`
		Target     uint64    `json:"target"`
		// new rank of the target for Promote and Demote orders
		NewRank rank.Rank `json:"newRank"`
		// new authority of the target for ReassignAuthority orders
		NewAuthority types.Identity `json:"newAuthority"`
		CreatedAt    uint64         `json:"createdAt"`
		// the order can't be executed before and can't be blocked after this time
		EarliestExecution uint64 `json:"earliestExecution"`
		Status            Status `json:"status"`
		// member who blocked the order, zero when blocked by proposal
		BlockedBy uint64 `json:"blockedBy"`
	}
)

func (o *Order) Write(hasher hash.Hash) error { return state.WriteCBOR(hasher, o) }

func (o *Order) Copy() state.UnitData {
	c := *o
	return &c
}

// orderExecutable - the delay window of the order has passed.
func orderExecutable(o *Order, now uint64) bool {
	return o.Status == Pending && now >= o.EarliestExecution
}

// orderBlockable - the order is still in its delay window.
func orderBlockable(o *Order, now uint64) bool {
	return o.Status == Pending && now < o.EarliestExecution
}
