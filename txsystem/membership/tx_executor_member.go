package membership

import (
	"fmt"

	txtypes "github.com/alphabill-org/guild/txsystem/types"
	"github.com/alphabill-org/guild/types"
)

func (m *Module) validateChangeAuthorityTx(tx *types.TransactionOrder, attr *ChangeAuthorityAttributes, exeCtx txtypes.ExecutionContext) error {
	member, err := m.callerMember(tx, exeCtx)
	if err != nil {
		return err
	}
	if !member.Active {
		return txtypes.ErrMemberInactive
	}
	// authority reassignment by order or proposal is waiting
	if member.HasPendingAction() {
		return fmt.Errorf("%w: %s %d", txtypes.ErrPendingAction, member.Pending.Kind, member.Pending.ID)
	}
	return m.registry.EnsureUnclaimed(attr.NewAuthority)
}

func (m *Module) executeChangeAuthorityTx(tx *types.TransactionOrder, attr *ChangeAuthorityAttributes, exeCtx txtypes.ExecutionContext) (*types.ServerMetadata, error) {
	id := tx.UnitID().Number()
	if err := m.registry.SetAuthority(PathwaySelfService, id, attr.NewAuthority); err != nil {
		return nil, err
	}
	return txtypes.SuccessMetadata(tx.UnitID(), NewIdentityID(exeCtx.Caller()), NewIdentityID(attr.NewAuthority)), nil
}

func (m *Module) validateResignTx(tx *types.TransactionOrder, _ *ResignAttributes, exeCtx txtypes.ExecutionContext) error {
	member, err := m.callerMember(tx, exeCtx)
	if err != nil {
		return err
	}
	if !member.Active {
		return txtypes.ErrMemberInactive
	}
	return nil
}

func (m *Module) executeResignTx(tx *types.TransactionOrder, _ *ResignAttributes, exeCtx txtypes.ExecutionContext) (*types.ServerMetadata, error) {
	if err := m.registry.SetActive(PathwaySelfService, tx.UnitID().Number(), false, exeCtx.CurrentRound()); err != nil {
		return nil, err
	}
	return txtypes.SuccessMetadata(tx.UnitID()), nil
}
