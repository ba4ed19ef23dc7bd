package membership

import (
	"errors"
	"fmt"

	"github.com/alphabill-org/guild/state"
	txtypes "github.com/alphabill-org/guild/txsystem/types"
	"github.com/alphabill-org/guild/types"
)

var _ txtypes.Module = (*Module)(nil)

type Module struct {
	state    *state.State
	registry *Registry
}

func NewModule(s *state.State) (*Module, error) {
	if s == nil {
		return nil, errors.New("state is nil")
	}
	return &Module{
		state:    s,
		registry: NewRegistry(s),
	}, nil
}

func (m *Module) Registry() *Registry { return m.registry }

func (m *Module) TxHandlers() map[string]txtypes.TxExecutor {
	return map[string]txtypes.TxExecutor{
		TxSeedMember:            txtypes.NewTxHandler[SeedMemberAttributes](m.validateSeedMemberTx, m.executeSeedMemberTx),
		TxSetBootstrapParameter: txtypes.NewTxHandler[SetBootstrapParameterAttributes](m.validateSetBootstrapParameterTx, m.executeSetBootstrapParameterTx),
		TxCloseBootstrap:        txtypes.NewTxHandler[CloseBootstrapAttributes](m.validateCloseBootstrapTx, m.executeCloseBootstrapTx),
		TxChangeAuthority:       txtypes.NewTxHandler[ChangeAuthorityAttributes](m.validateChangeAuthorityTx, m.executeChangeAuthorityTx),
		TxResign:                txtypes.NewTxHandler[ResignAttributes](m.validateResignTx, m.executeResignTx),
	}
}

/*
callerMember returns the member the tx unit refers to and checks that the
caller of the tx is the authority of the member.
*/
func (m *Module) callerMember(tx *types.TransactionOrder, exeCtx txtypes.ExecutionContext) (*Member, error) {
	if !tx.UnitID().HasType(MemberUnitType) {
		return nil, fmt.Errorf("%w: unit %s is not a member", txtypes.ErrInvalidArgument, tx.UnitID())
	}
	member, err := m.registry.GetMember(tx.UnitID().Number())
	if err != nil {
		return nil, err
	}
	if member.Authority != exeCtx.Caller() {
		return nil, txtypes.ErrNotAuthority
	}
	return member, nil
}

// bootstrapAuthority checks that the bootstrap phase is open and the caller
// is the bootstrap authority.
func (m *Module) bootstrapAuthority(tx *types.TransactionOrder, exeCtx txtypes.ExecutionContext) error {
	if !tx.UnitID().Eq(RegistryID) {
		return fmt.Errorf("%w: expected registry unit, got %s", txtypes.ErrInvalidArgument, tx.UnitID())
	}
	reg, err := m.registry.Data()
	if err != nil {
		return err
	}
	if !reg.BootstrapOpen {
		return ErrBootstrapClosed
	}
	if reg.BootstrapAuthority != exeCtx.Caller() {
		return fmt.Errorf("%w: caller is not the bootstrap authority", txtypes.ErrNotAuthority)
	}
	return nil
}
