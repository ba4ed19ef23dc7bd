package proposals

import (
	"errors"
	"fmt"

	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/txsystem/membership"
	"github.com/alphabill-org/guild/txsystem/orders"
	"github.com/alphabill-org/guild/txsystem/treasury"
	txtypes "github.com/alphabill-org/guild/txsystem/types"
	"github.com/alphabill-org/guild/types"
)

const (
	TxCreateProposal   = "createProposal"
	TxVote             = "vote"
	TxFinalizeProposal = "finalizeProposal"
	TxExecuteProposal  = "executeProposal"
)

var (
	ErrProposalNotFound = txtypes.NewCondition(txtypes.ErrIntegrity, "proposal does not exist")
	ErrProposalStatus   = txtypes.NewCondition(txtypes.ErrStateConflict, "proposal is not in the required status")
	ErrAlreadyVoted     = txtypes.NewCondition(txtypes.ErrStateConflict, "member has already voted on the proposal")
	ErrNoVotingPower    = txtypes.NewCondition(txtypes.ErrUnauthorized, "member had no voting power at the snapshot height")
)

var _ txtypes.Module = (*Module)(nil)

type Module struct {
	state    *state.State
	registry *membership.Registry
	orders   *orders.Module
	treasury *treasury.Module
}

func NewModule(s *state.State, registry *membership.Registry, orderModule *orders.Module, treasuryModule *treasury.Module) (*Module, error) {
	switch {
	case s == nil:
		return nil, errors.New("state is nil")
	case registry == nil:
		return nil, errors.New("membership registry is nil")
	case orderModule == nil:
		return nil, errors.New("orders module is nil")
	case treasuryModule == nil:
		return nil, errors.New("treasury module is nil")
	}
	return &Module{
		state:    s,
		registry: registry,
		orders:   orderModule,
		treasury: treasuryModule,
	}, nil
}

func (m *Module) TxHandlers() map[string]txtypes.TxExecutor {
	return map[string]txtypes.TxExecutor{
		TxCreateProposal:   txtypes.NewTxHandler[CreateProposalAttributes](m.validateCreateProposalTx, m.executeCreateProposalTx),
		TxVote:             txtypes.NewTxHandler[VoteAttributes](m.validateVoteTx, m.executeVoteTx),
		TxFinalizeProposal: txtypes.NewTxHandler[FinalizeProposalAttributes](m.validateFinalizeProposalTx, m.executeFinalizeProposalTx),
		TxExecuteProposal:  txtypes.NewTxHandler[ExecuteProposalAttributes](m.validateExecuteProposalTx, m.executeExecuteProposalTx),
	}
}

func (m *Module) GetProposal(id uint64) (*Proposal, error) {
	u, err := m.state.GetUnit(NewProposalID(id), false)
	if err != nil {
		if errors.Is(err, state.ErrUnitNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrProposalNotFound, id)
		}
		return nil, fmt.Errorf("reading proposal %d: %w", id, err)
	}
	p, ok := u.Data().(*Proposal)
	if !ok {
		return nil, fmt.Errorf("unit %s doesn't contain proposal but %T", NewProposalID(id), u.Data())
	}
	return p, nil
}

// GetReceipt returns the vote of the member on the proposal, nil when the member hasn't voted.
func (m *Module) GetReceipt(proposalID, memberID uint64) (*Receipt, error) {
	u, err := m.state.GetUnit(NewReceiptID(proposalID, memberID), false)
	if err != nil {
		if errors.Is(err, state.ErrUnitNotFound) {
			return nil, nil
		}
		return nil, err
	}
	r, ok := u.Data().(*Receipt)
	if !ok {
		return nil, fmt.Errorf("invalid vote receipt unit data type %T", u.Data())
	}
	return r, nil
}

func (m *Module) proposalOfTx(tx *types.TransactionOrder, status Status) (*Proposal, error) {
	if !tx.UnitID().HasType(ProposalUnitType) {
		return nil, fmt.Errorf("%w: unit %s is not a proposal", txtypes.ErrInvalidArgument, tx.UnitID())
	}
	p, err := m.GetProposal(tx.UnitID().Number())
	if err != nil {
		return nil, err
	}
	if p.Status != status {
		return nil, fmt.Errorf("%w: proposal %d is %s, expected %s", ErrProposalStatus, p.ID, p.Status, status)
	}
	return p, nil
}

func (m *Module) updateProposal(id uint64, f func(p *Proposal)) error {
	return m.state.Apply(state.UpdateUnitData(NewProposalID(id), func(data state.UnitData) (state.UnitData, error) {
		p, ok := data.(*Proposal)
		if !ok {
			return nil, fmt.Errorf("invalid proposal unit data type %T", data)
		}
		f(p)
		return p, nil
	}))
}

func (m *Module) releaseTarget(p *Proposal) error {
	if p.Target == 0 {
		return nil
	}
	if err := m.registry.ClearPendingAction(p.Target, membership.PendingAction{Kind: membership.PendingProposal, ID: p.ID}); err != nil {
		return fmt.Errorf("releasing target: %w", err)
	}
	return nil
}

/*
applyAction runs the action of the Succeeded proposal. When the action fails
its changes are reverted, the error is recorded in the proposal which stays
in the Succeeded status and the target of the proposal is released. The
returned error is not nil only when recording the outcome fails.
*/
func (m *Module) applyAction(p *Proposal, action Action, round, now uint64) (applyErr, err error) {
	sp := m.state.Savepoint()
	if applyErr = action.apply(m, round, now); applyErr != nil {
		m.state.RollbackToSavepoint(sp)
		err := m.updateProposal(p.ID, func(p *Proposal) {
			p.LastError = applyErr.Error()
		})
		if err != nil {
			return applyErr, err
		}
		return applyErr, m.releaseTarget(p)
	}
	m.state.ReleaseToSavepoint(sp)
	return nil, m.markExecuted(p)
}

func (m *Module) markExecuted(p *Proposal) error {
	err := m.updateProposal(p.ID, func(p *Proposal) {
		p.Status = Executed
		p.LastError = ""
	})
	if err != nil {
		return err
	}
	return m.releaseTarget(p)
}
