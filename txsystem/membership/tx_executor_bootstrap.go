package membership

import (
	"fmt"

	"github.com/alphabill-org/guild/txsystem/params"
	txtypes "github.com/alphabill-org/guild/txsystem/types"
	"github.com/alphabill-org/guild/types"
)

func (m *Module) validateSeedMemberTx(tx *types.TransactionOrder, attr *SeedMemberAttributes, exeCtx txtypes.ExecutionContext) error {
	if err := m.bootstrapAuthority(tx, exeCtx); err != nil {
		return err
	}
	if err := attr.Rank.Valid(); err != nil {
		return fmt.Errorf("%w: %w", txtypes.ErrOutOfBounds, err)
	}
	return m.registry.EnsureUnclaimed(attr.Authority)
}

func (m *Module) executeSeedMemberTx(tx *types.TransactionOrder, attr *SeedMemberAttributes, exeCtx txtypes.ExecutionContext) (*types.ServerMetadata, error) {
	id, err := m.registry.Admit(PathwayBootstrap, attr.Authority, attr.Rank, exeCtx.Now(), exeCtx.CurrentRound())
	if err != nil {
		return nil, fmt.Errorf("seeding member: %w", err)
	}
	return txtypes.SuccessMetadata(RegistryID, NewMemberID(id), NewIdentityID(attr.Authority)), nil
}

func (m *Module) validateSetBootstrapParameterTx(tx *types.TransactionOrder, attr *SetBootstrapParameterAttributes, exeCtx txtypes.ExecutionContext) error {
	if err := m.bootstrapAuthority(tx, exeCtx); err != nil {
		return err
	}
	p, err := params.Parse(attr.Name)
	if err != nil {
		return err
	}
	return p.Check(attr.Value)
}

func (m *Module) executeSetBootstrapParameterTx(tx *types.TransactionOrder, attr *SetBootstrapParameterAttributes, _ txtypes.ExecutionContext) (*types.ServerMetadata, error) {
	p, err := params.Parse(attr.Name)
	if err != nil {
		return nil, err
	}
	if err := m.state.Apply(params.Set(p, attr.Value)); err != nil {
		return nil, fmt.Errorf("setting parameter %s: %w", p, err)
	}
	return txtypes.SuccessMetadata(params.UnitID), nil
}

func (m *Module) validateCloseBootstrapTx(tx *types.TransactionOrder, _ *CloseBootstrapAttributes, exeCtx txtypes.ExecutionContext) error {
	return m.bootstrapAuthority(tx, exeCtx)
}

func (m *Module) executeCloseBootstrapTx(tx *types.TransactionOrder, _ *CloseBootstrapAttributes, _ txtypes.ExecutionContext) (*types.ServerMetadata, error) {
	if err := m.registry.CloseBootstrap(); err != nil {
		return nil, fmt.Errorf("closing bootstrap: %w", err)
	}
	return txtypes.SuccessMetadata(RegistryID), nil
}
