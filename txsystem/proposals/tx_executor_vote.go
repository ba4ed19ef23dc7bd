package proposals

import (
	"fmt"

	"github.com/alphabill-org/guild/state"
	txtypes "github.com/alphabill-org/guild/txsystem/types"
	"github.com/alphabill-org/guild/types"
)

func checkVotingOpen(p *Proposal, round, now uint64) error {
	if votingOpen(p, round, now) {
		return nil
	}
	switch {
	case round <= p.CreatedAt:
		return fmt.Errorf("%w: voting is not allowed at the creation height %d", txtypes.ErrTooEarly, p.CreatedAt)
	case now < p.VotingStart:
		return fmt.Errorf("%w: voting starts at %d", txtypes.ErrTooEarly, p.VotingStart)
	default:
		return fmt.Errorf("%w: voting ended at %d", txtypes.ErrTooLate, p.VotingEnd)
	}
}

// voterWeight returns member ID of the caller and its voting power at the snapshot height.
func (m *Module) voterWeight(p *Proposal, exeCtx txtypes.ExecutionContext) (uint64, uint64, error) {
	memberID, err := m.registry.MemberIDOf(exeCtx.Caller())
	if err != nil {
		return 0, 0, err
	}
	r, err := m.GetReceipt(p.ID, memberID)
	if err != nil {
		return 0, 0, err
	}
	if r != nil {
		return 0, 0, fmt.Errorf("%w: member %d voted on proposal %d", ErrAlreadyVoted, memberID, p.ID)
	}
	weight, err := m.registry.Ledger().PowerAt(memberID, p.SnapshotHeight)
	if err != nil {
		return 0, 0, err
	}
	if weight == 0 {
		return 0, 0, fmt.Errorf("%w: member %d at height %d", ErrNoVotingPower, memberID, p.SnapshotHeight)
	}
	return memberID, weight, nil
}

func (m *Module) validateVoteTx(tx *types.TransactionOrder, _ *VoteAttributes, exeCtx txtypes.ExecutionContext) error {
	p, err := m.proposalOfTx(tx, Voting)
	if err != nil {
		return err
	}
	if err := checkVotingOpen(p, exeCtx.CurrentRound(), exeCtx.Now()); err != nil {
		return err
	}
	_, _, err = m.voterWeight(p, exeCtx)
	return err
}

func (m *Module) executeVoteTx(tx *types.TransactionOrder, attr *VoteAttributes, exeCtx txtypes.ExecutionContext) (*types.ServerMetadata, error) {
	p, err := m.proposalOfTx(tx, Voting)
	if err != nil {
		return nil, err
	}
	memberID, weight, err := m.voterWeight(p, exeCtx)
	if err != nil {
		return nil, err
	}

	receiptID := NewReceiptID(p.ID, memberID)
	err = m.state.Apply(state.AddUnit(receiptID, &Receipt{
		Proposal: p.ID,
		Member:   memberID,
		Support:  attr.Support,
		Weight:   weight,
	}))
	if err != nil {
		return nil, fmt.Errorf("adding vote receipt: %w", err)
	}
	err = m.updateProposal(p.ID, func(p *Proposal) {
		if attr.Support {
			p.Yes += weight
		} else {
			p.No += weight
		}
	})
	if err != nil {
		return nil, fmt.Errorf("updating tally: %w", err)
	}
	return txtypes.SuccessMetadata(tx.UnitID(), receiptID), nil
}
