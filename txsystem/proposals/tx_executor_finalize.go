package proposals

import (
	"fmt"

	"github.com/alphabill-org/guild/txsystem/membership"
	"github.com/alphabill-org/guild/txsystem/params"
	txtypes "github.com/alphabill-org/guild/txsystem/types"
	"github.com/alphabill-org/guild/types"
)

func (m *Module) validateFinalizeProposalTx(tx *types.TransactionOrder, _ *FinalizeProposalAttributes, exeCtx txtypes.ExecutionContext) error {
	p, err := m.proposalOfTx(tx, Voting)
	if err != nil {
		return err
	}
	if !canFinalize(p, exeCtx.Now()) {
		return fmt.Errorf("%w: proposal can be finalized after %d", txtypes.ErrTooEarly, p.VotingEnd)
	}
	return nil
}

/*
executeFinalizeProposalTx counts the votes. Failed proposal releases its
target, actions of passed proposal are either applied right away or scheduled
for execution after the execution delay.
*/
func (m *Module) executeFinalizeProposalTx(tx *types.TransactionOrder, _ *FinalizeProposalAttributes, exeCtx txtypes.ExecutionContext) (*types.ServerMetadata, error) {
	p, err := m.proposalOfTx(tx, Voting)
	if err != nil {
		return nil, err
	}
	if err := m.registry.AdjustProposalCount(p.Proposer, -1); err != nil {
		return nil, fmt.Errorf("releasing proposer quota: %w", err)
	}
	targets := []types.UnitID{tx.UnitID(), membership.NewMemberID(p.Proposer)}
	if p.Target != 0 {
		targets = append(targets, membership.NewMemberID(p.Target))
	}

	if !Passed(p.Yes, p.No, p.SnapshotTotal, p.QuorumBps) {
		if err := m.updateProposal(p.ID, func(p *Proposal) { p.Status = Failed }); err != nil {
			return nil, err
		}
		if err := m.releaseTarget(p); err != nil {
			return nil, err
		}
		return txtypes.SuccessMetadata(targets...), nil
	}

	action, err := DecodeAction(&p.Action)
	if err != nil {
		return nil, err
	}
	eligible := exeCtx.Now()
	if action.Delayed() {
		prm, err := params.Load(m.state)
		if err != nil {
			return nil, err
		}
		eligible += prm.Get(params.ExecutionDelay)
	}
	err = m.updateProposal(p.ID, func(p *Proposal) {
		p.Status = Succeeded
		p.Eligible = eligible
	})
	if err != nil {
		return nil, err
	}
	if action.Delayed() {
		return txtypes.SuccessMetadata(targets...), nil
	}

	// failure to apply the action doesn't fail the finalization, the proposal
	// may be executed later, the target is released meanwhile
	if _, err := m.applyAction(p, action, exeCtx.CurrentRound(), exeCtx.Now()); err != nil {
		return nil, err
	}
	return txtypes.SuccessMetadata(targets...), nil
}

func (m *Module) validateExecuteProposalTx(tx *types.TransactionOrder, _ *ExecuteProposalAttributes, exeCtx txtypes.ExecutionContext) error {
	p, err := m.proposalOfTx(tx, Succeeded)
	if err != nil {
		return err
	}
	if !executable(p, exeCtx.Now()) {
		return fmt.Errorf("%w: proposal can be executed from %d", txtypes.ErrTooEarly, p.Eligible)
	}
	// target was released when the first attempt failed, meanwhile another
	// order or proposal may have claimed it
	if p.Target != 0 {
		target, err := m.registry.GetMember(p.Target)
		if err != nil {
			return err
		}
		own := membership.PendingAction{Kind: membership.PendingProposal, ID: p.ID}
		if target.HasPendingAction() && target.Pending != own {
			return fmt.Errorf("%w: target has pending %s %d", txtypes.ErrPendingAction, target.Pending.Kind, target.Pending.ID)
		}
	}
	return nil
}

func (m *Module) executeExecuteProposalTx(tx *types.TransactionOrder, _ *ExecuteProposalAttributes, exeCtx txtypes.ExecutionContext) (*types.ServerMetadata, error) {
	p, err := m.proposalOfTx(tx, Succeeded)
	if err != nil {
		return nil, err
	}
	action, err := DecodeAction(&p.Action)
	if err != nil {
		return nil, err
	}
	if err := action.apply(m, exeCtx.CurrentRound(), exeCtx.Now()); err != nil {
		return nil, fmt.Errorf("executing %s action: %w", action.Kind(), err)
	}
	if err := m.markExecuted(p); err != nil {
		return nil, err
	}
	targets := []types.UnitID{tx.UnitID()}
	if p.Target != 0 {
		targets = append(targets, membership.NewMemberID(p.Target))
	}
	return txtypes.SuccessMetadata(targets...), nil
}
