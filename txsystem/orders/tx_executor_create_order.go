package orders

import (
	"fmt"

	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/txsystem/membership"
	"github.com/alphabill-org/guild/txsystem/params"
	txtypes "github.com/alphabill-org/guild/txsystem/types"
	"github.com/alphabill-org/guild/types"
)

func (m *Module) validateCreateOrderTx(tx *types.TransactionOrder, attr *CreateOrderAttributes, exeCtx txtypes.ExecutionContext) error {
	issuer, err := m.registry.ActiveMemberOf(exeCtx.Caller())
	if err != nil {
		return fmt.Errorf("issuer: %w", err)
	}
	if issuer.ActiveOrders >= issuer.Rank.OrderQuota() {
		return fmt.Errorf("%w: rank %s allows %d pending orders", txtypes.ErrQuotaExceeded, issuer.Rank, issuer.Rank.OrderQuota())
	}

	if !tx.UnitID().HasType(membership.MemberUnitType) {
		return fmt.Errorf("%w: unit %s is not a member", txtypes.ErrInvalidArgument, tx.UnitID())
	}
	target, err := m.registry.GetMember(tx.UnitID().Number())
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}
	if target.ID == issuer.ID {
		return fmt.Errorf("%w: issuer can't be the target of the order", txtypes.ErrInvalidArgument)
	}
	if !target.Active {
		return fmt.Errorf("target: %w", txtypes.ErrMemberInactive)
	}
	if target.Rank >= issuer.Rank {
		return fmt.Errorf("%w: target rank %s is not below issuer rank %s", txtypes.ErrRankTooLow, target.Rank, issuer.Rank)
	}
	if target.HasPendingAction() {
		return fmt.Errorf("%w: %s %d", txtypes.ErrPendingAction, target.Pending.Kind, target.Pending.ID)
	}

	switch attr.Type {
	case Promote:
		ceiling, ok := issuer.Rank.PromotionCeiling()
		if !ok || attr.NewRank <= target.Rank || attr.NewRank > ceiling {
			return fmt.Errorf("%w: new rank %s must be above %s and not above %s", txtypes.ErrOutOfBounds, attr.NewRank, target.Rank, ceiling)
		}
	case Demote:
		// target of the lowest rank may be demoted, execution is no-op
		if attr.NewRank >= target.Rank && attr.NewRank != 0 {
			return fmt.Errorf("%w: new rank %s must be below %s", txtypes.ErrOutOfBounds, attr.NewRank, target.Rank)
		}
	case ReassignAuthority:
		if err := m.registry.EnsureUnclaimed(attr.NewAuthority); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown order type %d", txtypes.ErrInvalidArgument, attr.Type)
	}
	return nil
}

func (m *Module) executeCreateOrderTx(tx *types.TransactionOrder, attr *CreateOrderAttributes, exeCtx txtypes.ExecutionContext) (*types.ServerMetadata, error) {
	issuer, err := m.registry.ActiveMemberOf(exeCtx.Caller())
	if err != nil {
		return nil, err
	}
	p, err := params.Load(m.state)
	if err != nil {
		return nil, err
	}

	o := &Order{
		Type:              attr.Type,
		Issuer:            issuer.ID,
		IssuerRank:        issuer.Rank,
		Target:            tx.UnitID().Number(),
		CreatedAt:         exeCtx.Now(),
		EarliestExecution: exeCtx.Now() + p.Get(params.OrderDelay),
		Status:            Pending,
	}
	switch attr.Type {
	case Promote, Demote:
		o.NewRank = attr.NewRank
	case ReassignAuthority:
		o.NewAuthority = attr.NewAuthority
	}
	if err := m.state.Apply(txtypes.NextID(CounterID, &o.ID)); err != nil {
		return nil, fmt.Errorf("assigning order id: %w", err)
	}
	if err := m.state.Apply(state.AddUnit(NewOrderID(o.ID), o)); err != nil {
		return nil, fmt.Errorf("adding order: %w", err)
	}
	if err := m.registry.SetPendingAction(o.Target, membership.PendingAction{Kind: membership.PendingOrder, ID: o.ID}); err != nil {
		return nil, err
	}
	if err := m.registry.AdjustOrderCount(o.Issuer, 1); err != nil {
		return nil, err
	}
	return txtypes.SuccessMetadata(NewOrderID(o.ID), tx.UnitID(), membership.NewMemberID(o.Issuer)), nil
}
