package orders

import (
	"fmt"

	"github.com/alphabill-org/guild/txsystem/membership"
	txtypes "github.com/alphabill-org/guild/txsystem/types"
	"github.com/alphabill-org/guild/types"
)

func (m *Module) validateExecuteOrderTx(tx *types.TransactionOrder, _ *ExecuteOrderAttributes, exeCtx txtypes.ExecutionContext) error {
	o, err := m.orderOfTx(tx)
	if err != nil {
		return err
	}
	if !orderExecutable(o, exeCtx.Now()) {
		return fmt.Errorf("%w: order can be executed from %d", txtypes.ErrTooEarly, o.EarliestExecution)
	}
	// promotion must be accepted by the target, others may be triggered by anyone
	if o.Type == Promote {
		target, err := m.registry.GetMember(o.Target)
		if err != nil {
			return err
		}
		if target.Authority != exeCtx.Caller() {
			return fmt.Errorf("%w: promotion must be accepted by the target", txtypes.ErrNotAuthority)
		}
	}
	return nil
}

func (m *Module) executeExecuteOrderTx(tx *types.TransactionOrder, _ *ExecuteOrderAttributes, exeCtx txtypes.ExecutionContext) (*types.ServerMetadata, error) {
	o, err := m.orderOfTx(tx)
	if err != nil {
		return nil, err
	}
	target, err := m.registry.GetMember(o.Target)
	if err != nil {
		return nil, err
	}

	switch o.Type {
	case Promote:
		err = m.registry.SetRank(membership.PathwayOrder, o.Target, o.NewRank, exeCtx.CurrentRound())
	case Demote:
		// demoting member of the lowest rank is no-op
		if newRank := target.Rank.DemoteTo(o.NewRank); newRank != target.Rank {
			err = m.registry.SetRank(membership.PathwayOrder, o.Target, newRank, exeCtx.CurrentRound())
		}
	case ReassignAuthority:
		err = m.registry.SetAuthority(membership.PathwayOrder, o.Target, o.NewAuthority)
	default:
		err = fmt.Errorf("%w: unknown order type %d", txtypes.ErrInvalidArgument, o.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("executing %s order: %w", o.Type, err)
	}

	if err := m.resolve(o, Executed, 0); err != nil {
		return nil, err
	}
	return txtypes.SuccessMetadata(tx.UnitID(), membership.NewMemberID(o.Target), membership.NewMemberID(o.Issuer)), nil
}

func (m *Module) validateBlockOrderTx(tx *types.TransactionOrder, _ *BlockOrderAttributes, exeCtx txtypes.ExecutionContext) error {
	o, err := m.orderOfTx(tx)
	if err != nil {
		return err
	}
	if err := checkBlockable(o, exeCtx.Now()); err != nil {
		return err
	}
	blocker, err := m.registry.ActiveMemberOf(exeCtx.Caller())
	if err != nil {
		return err
	}
	if !blocker.Rank.CanVeto(o.IssuerRank) {
		return fmt.Errorf("%w: blocking order of %s issuer requires rank %d or above, got %s", txtypes.ErrRankTooLow, o.IssuerRank, int(o.IssuerRank)+2, blocker.Rank)
	}
	return nil
}

func (m *Module) executeBlockOrderTx(tx *types.TransactionOrder, _ *BlockOrderAttributes, exeCtx txtypes.ExecutionContext) (*types.ServerMetadata, error) {
	o, err := m.orderOfTx(tx)
	if err != nil {
		return nil, err
	}
	blocker, err := m.registry.MemberIDOf(exeCtx.Caller())
	if err != nil {
		return nil, err
	}
	if err := m.resolve(o, Blocked, blocker); err != nil {
		return nil, err
	}
	return txtypes.SuccessMetadata(tx.UnitID(), membership.NewMemberID(o.Target), membership.NewMemberID(o.Issuer)), nil
}

func (m *Module) validateRescindOrderTx(tx *types.TransactionOrder, _ *RescindOrderAttributes, exeCtx txtypes.ExecutionContext) error {
	o, err := m.orderOfTx(tx)
	if err != nil {
		return err
	}
	issuer, err := m.registry.GetMember(o.Issuer)
	if err != nil {
		return err
	}
	if issuer.Authority != exeCtx.Caller() {
		return fmt.Errorf("%w: only issuer may rescind the order", txtypes.ErrNotAuthority)
	}
	return nil
}

func (m *Module) executeRescindOrderTx(tx *types.TransactionOrder, _ *RescindOrderAttributes, _ txtypes.ExecutionContext) (*types.ServerMetadata, error) {
	o, err := m.orderOfTx(tx)
	if err != nil {
		return nil, err
	}
	if err := m.resolve(o, Rescinded, 0); err != nil {
		return nil, err
	}
	return txtypes.SuccessMetadata(tx.UnitID(), membership.NewMemberID(o.Target), membership.NewMemberID(o.Issuer)), nil
}
