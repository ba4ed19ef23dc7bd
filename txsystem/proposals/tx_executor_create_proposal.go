package proposals

import (
	"fmt"

	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/txsystem/membership"
	"github.com/alphabill-org/guild/txsystem/params"
	"github.com/alphabill-org/guild/txsystem/rank"
	txtypes "github.com/alphabill-org/guild/txsystem/types"
	"github.com/alphabill-org/guild/types"
)

func (m *Module) validateCreateProposalTx(tx *types.TransactionOrder, attr *CreateProposalAttributes, exeCtx txtypes.ExecutionContext) error {
	if !tx.UnitID().Eq(CounterID) {
		return fmt.Errorf("%w: expected proposal counter unit, got %s", txtypes.ErrInvalidArgument, tx.UnitID())
	}
	proposer, err := m.registry.ActiveMemberOf(exeCtx.Caller())
	if err != nil {
		return err
	}
	if proposer.Rank < rank.ProposalFloor {
		return fmt.Errorf("%w: creating proposals requires rank %s or above, got %s", txtypes.ErrRankTooLow, rank.ProposalFloor, proposer.Rank)
	}
	if quota := proposer.Rank.ProposalQuota(); proposer.ActiveProposals >= quota {
		return fmt.Errorf("%w: member of rank %s may have %d active proposals", txtypes.ErrQuotaExceeded, proposer.Rank, quota)
	}

	action, err := DecodeAction(&attr.Action)
	if err != nil {
		return err
	}
	if err := action.validate(m, exeCtx.Now()); err != nil {
		return fmt.Errorf("invalid %s action: %w", action.Kind(), err)
	}
	if id := action.TargetMember(); id != 0 {
		target, err := m.registry.GetMember(id)
		if err != nil {
			return err
		}
		if target.HasPendingAction() {
			return fmt.Errorf("%w: target has pending %s %d", txtypes.ErrPendingAction, target.Pending.Kind, target.Pending.ID)
		}
	}
	return nil
}

func (m *Module) executeCreateProposalTx(tx *types.TransactionOrder, attr *CreateProposalAttributes, exeCtx txtypes.ExecutionContext) (*types.ServerMetadata, error) {
	proposer, err := m.registry.ActiveMemberOf(exeCtx.Caller())
	if err != nil {
		return nil, err
	}
	action, err := DecodeAction(&attr.Action)
	if err != nil {
		return nil, err
	}
	prm, err := params.Load(m.state)
	if err != nil {
		return nil, err
	}
	snapshot := snapshotHeight(exeCtx.CurrentRound())
	total, err := m.registry.Ledger().TotalAt(snapshot)
	if err != nil {
		return nil, fmt.Errorf("reading total power at snapshot height: %w", err)
	}

	var id uint64
	if err := m.state.Apply(txtypes.NextID(CounterID, &id)); err != nil {
		return nil, fmt.Errorf("assigning proposal id: %w", err)
	}
	start := exeCtx.Now() + prm.Get(params.VotingDelay)
	p := &Proposal{
		ID:             id,
		Action:         ActionEnvelope{Kind: attr.Action.Kind, Body: attr.Action.Body},
		Proposer:       proposer.ID,
		ProposerRank:   proposer.Rank,
		Target:         action.TargetMember(),
		CreatedAt:      exeCtx.CurrentRound(),
		SnapshotHeight: snapshot,
		SnapshotTotal:  total,
		QuorumBps:      prm.Get(params.QuorumBps),
		VotingStart:    start,
		VotingEnd:      start + prm.Get(params.VotingPeriod),
		Status:         Voting,
	}
	if err := m.state.Apply(state.AddUnit(NewProposalID(id), p)); err != nil {
		return nil, fmt.Errorf("adding proposal: %w", err)
	}

	targets := []types.UnitID{NewProposalID(id), membership.NewMemberID(proposer.ID)}
	if p.Target != 0 {
		if err := m.registry.SetPendingAction(p.Target, membership.PendingAction{Kind: membership.PendingProposal, ID: id}); err != nil {
			return nil, err
		}
		targets = append(targets, membership.NewMemberID(p.Target))
	}
	if err := m.registry.AdjustProposalCount(proposer.ID, 1); err != nil {
		return nil, err
	}
	return txtypes.SuccessMetadata(targets...), nil
}
