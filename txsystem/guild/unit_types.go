package guild

import (
	"fmt"

	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/txsystem/membership"
	"github.com/alphabill-org/guild/txsystem/orders"
	"github.com/alphabill-org/guild/txsystem/params"
	"github.com/alphabill-org/guild/txsystem/proposals"
	"github.com/alphabill-org/guild/txsystem/treasury"
	txtypes "github.com/alphabill-org/guild/txsystem/types"
	"github.com/alphabill-org/guild/txsystem/votingpower"
	"github.com/alphabill-org/guild/types"
)

// NewUnitData returns empty unit data of the unit type of the ID, used when
// the state is recovered from the serialized form.
func NewUnitData(unitID types.UnitID) (state.UnitData, error) {
	switch unitID.TypeByte() {
	case membership.MemberUnitType:
		return &membership.Member{}, nil
	case membership.IdentityUnitType:
		return &membership.IdentityIndex{}, nil
	case membership.RegistryUnitType:
		return &membership.RegistryData{}, nil
	case votingpower.MemberPowerUnitType, votingpower.TotalPowerUnitType:
		return &votingpower.History{}, nil
	case params.UnitType:
		return &params.Values{}, nil
	case orders.OrderUnitType:
		return &orders.Order{}, nil
	case proposals.ProposalUnitType:
		return &proposals.Proposal{}, nil
	case proposals.ReceiptUnitType:
		return &proposals.Receipt{}, nil
	case treasury.FundUnitType:
		return &treasury.Fund{}, nil
	case treasury.RankGrantUnitType:
		return &treasury.RankGrant{}, nil
	case treasury.IdentityGrantUnitType:
		return &treasury.IdentityGrant{}, nil
	case treasury.OutboundUnitType:
		return &treasury.Outbound{}, nil
	case orders.CounterUnitType, proposals.CounterUnitType, treasury.OutboundCounterType:
		return &txtypes.Counter{}, nil
	}
	return nil, fmt.Errorf("unknown unit type in UnitID %s", unitID)
}
