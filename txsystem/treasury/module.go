package treasury

import (
	"errors"
	"fmt"

	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/txsystem/membership"
	"github.com/alphabill-org/guild/txsystem/params"
	txtypes "github.com/alphabill-org/guild/txsystem/types"
	"github.com/alphabill-org/guild/types"
)

var _ txtypes.Module = (*Module)(nil)

type Module struct {
	state    *state.State
	registry *membership.Registry
	custody  *Custody
	limiter  *Limiter
}

func NewModule(s *state.State, registry *membership.Registry) (*Module, error) {
	if s == nil {
		return nil, errors.New("state is nil")
	}
	if registry == nil {
		return nil, errors.New("membership registry is nil")
	}
	return &Module{
		state:    s,
		registry: registry,
		custody:  NewCustody(s),
		limiter:  NewLimiter(s, registry),
	}, nil
}

func (m *Module) Custody() *Custody { return m.custody }

func (m *Module) Limiter() *Limiter { return m.limiter }

func (m *Module) TxHandlers() map[string]txtypes.TxExecutor {
	return map[string]txtypes.TxExecutor{
		TxDeposit:           txtypes.NewTxHandler[DepositAttributes](m.validateDepositTx, m.executeDepositTx),
		TxLockFunds:         txtypes.NewTxHandler[LockFundsAttributes](m.validateLockFundsTx, m.executeLockFundsTx),
		TxTreasurerTransfer: txtypes.NewTxHandler[TreasurerTransferAttributes](m.validateTreasurerTransferTx, m.executeTreasurerTransferTx),
		TxTreasurerCall:     txtypes.NewTxHandler[TreasurerCallAttributes](m.validateTreasurerCallTx, m.executeTreasurerCallTx),
	}
}

func checkFundUnit(tx *types.TransactionOrder) error {
	if !tx.UnitID().Eq(FundID) {
		return fmt.Errorf("%w: expected fund unit, got %s", txtypes.ErrInvalidArgument, tx.UnitID())
	}
	return nil
}

func (m *Module) validateDepositTx(tx *types.TransactionOrder, attr *DepositAttributes, _ txtypes.ExecutionContext) error {
	if err := checkFundUnit(tx); err != nil {
		return err
	}
	if attr.Asset == "" {
		return fmt.Errorf("%w: asset name is empty", txtypes.ErrInvalidArgument)
	}
	if attr.Amount.IsZero() {
		return fmt.Errorf("%w: deposit amount is zero", txtypes.ErrInvalidArgument)
	}
	return nil
}

func (m *Module) executeDepositTx(tx *types.TransactionOrder, attr *DepositAttributes, _ txtypes.ExecutionContext) (*types.ServerMetadata, error) {
	if err := m.custody.Deposit(attr.Asset, attr.Amount); err != nil {
		return nil, fmt.Errorf("depositing %s %s: %w", attr.Amount, attr.Asset, err)
	}
	return txtypes.SuccessMetadata(FundID), nil
}

func (m *Module) validateLockFundsTx(tx *types.TransactionOrder, _ *LockFundsAttributes, exeCtx txtypes.ExecutionContext) error {
	if err := checkFundUnit(tx); err != nil {
		return err
	}
	member, err := m.registry.ActiveMemberOf(exeCtx.Caller())
	if err != nil {
		return err
	}
	p, err := params.Load(m.state)
	if err != nil {
		return err
	}
	if minRank := p.Get(params.FundLockRank); uint64(member.Rank) < minRank {
		return fmt.Errorf("%w: locking the fund requires rank %d or above, got %s", txtypes.ErrRankTooLow, minRank, member.Rank)
	}
	fund, err := m.custody.Fund()
	if err != nil {
		return err
	}
	if fund.Locked {
		return ErrFundLocked
	}
	return nil
}

func (m *Module) executeLockFundsTx(tx *types.TransactionOrder, _ *LockFundsAttributes, _ txtypes.ExecutionContext) (*types.ServerMetadata, error) {
	if err := m.custody.Lock(); err != nil {
		return nil, fmt.Errorf("locking fund: %w", err)
	}
	return txtypes.SuccessMetadata(FundID), nil
}

func (m *Module) validateTreasurerTransferTx(tx *types.TransactionOrder, attr *TreasurerTransferAttributes, _ txtypes.ExecutionContext) error {
	if err := checkFundUnit(tx); err != nil {
		return err
	}
	if attr.Asset == "" {
		return fmt.Errorf("%w: asset name is empty", txtypes.ErrInvalidArgument)
	}
	if attr.Amount.IsZero() {
		return fmt.Errorf("%w: transfer amount is zero", txtypes.ErrInvalidArgument)
	}
	return m.custody.checkOutbound(SpenderTreasurer, params.TransfersEnabled, nil)
}

func (m *Module) executeTreasurerTransferTx(tx *types.TransactionOrder, attr *TreasurerTransferAttributes, exeCtx txtypes.ExecutionContext) (*types.ServerMetadata, error) {
	grantID, err := m.limiter.Authorize(exeCtx.Caller(), attr.Asset, attr.Amount, exeCtx.Now())
	if err != nil {
		return nil, err
	}
	outID, err := m.custody.Transfer(SpenderTreasurer, attr.Asset, attr.To, attr.Amount, exeCtx.CurrentRound())
	if err != nil {
		return nil, err
	}
	return txtypes.SuccessMetadata(FundID, grantID, outID), nil
}

func (m *Module) validateTreasurerCallTx(tx *types.TransactionOrder, attr *TreasurerCallAttributes, _ txtypes.ExecutionContext) error {
	if err := checkFundUnit(tx); err != nil {
		return err
	}
	return m.custody.checkOutbound(SpenderTreasurer, params.CallsEnabled, &attr.Target)
}

func (m *Module) executeTreasurerCallTx(tx *types.TransactionOrder, attr *TreasurerCallAttributes, exeCtx txtypes.ExecutionContext) (*types.ServerMetadata, error) {
	// zero value calls still require a grant of the caller
	grantID, err := m.limiter.Authorize(exeCtx.Caller(), NativeAsset, attr.Value, exeCtx.Now())
	if err != nil {
		return nil, err
	}
	outID, err := m.custody.Call(SpenderTreasurer, attr.Target, attr.Value, attr.Payload, exeCtx.CurrentRound())
	if err != nil {
		return nil, err
	}
	return txtypes.SuccessMetadata(FundID, grantID, outID), nil
}
