package proposals

import (
	"encoding/binary"
	"fmt"
	"hash"
	"math/bits"
	"slices"

	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/txsystem/rank"
	"github.com/alphabill-org/guild/types"
)

const (
	ProposalUnitType = 0x09
	ReceiptUnitType  = 0x0A
	CounterUnitType  = 0x0B
)

var CounterID = types.NewUnitID(CounterUnitType, 0)

func NewProposalID(id uint64) types.UnitID {
	return types.NewUnitID(ProposalUnitType, id)
}

// NewReceiptID returns ID of the vote receipt of the member for the proposal.
func NewReceiptID(proposalID, memberID uint64) types.UnitID {
	return types.NewUnitIDFromBytes(ReceiptUnitType,
		binary.BigEndian.AppendUint64(nil, proposalID),
		binary.BigEndian.AppendUint64(nil, memberID))
}

type Status uint8

const (
	Voting Status = iota
	Failed
	// Succeeded - the proposal passed, the action is pending execution.
	Succeeded
	Executed
)

func (s Status) String() string {
	switch s {
	case Voting:
		return "voting"
	case Failed:
		return "failed"
	case Succeeded:
		return "succeeded"
	case Executed:
		return "executed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

type (
	/*
	Proposal is a governance or treasury action put to the vote of the members.

	Weight of the votes is the voting power of the voter at the snapshot height,
	the total power at the snapshot height and the quorum are frozen when the
	proposal is created.
	*/
	Proposal struct {
		_            struct{}       `cbor:",toarray"`
		ID           uint64         `json:"id"`
		Action       ActionEnvelope `json:"action"`
		Proposer     uint64         `json:"proposer"`
		ProposerRank rank.Rank      `json:"proposerRank"`
		// member whose pending action slot the proposal occupies, zero when none
		Target         uint64 `json:"target"`
		CreatedAt      uint64 `json:"createdAt"`
		SnapshotHeight uint64 `json:"snapshotHeight"`
		SnapshotTotal  uint64 `json:"snapshotTotal"`
		QuorumBps      uint64 `json:"quorumBps"`
		// voting window [VotingStart, VotingEnd)
		VotingStart uint64 `json:"votingStart"`
		VotingEnd   uint64 `json:"votingEnd"`
		Yes         uint64 `json:"yes"`
		No          uint64 `json:"no"`
		Status      Status `json:"status"`
		// the action of Succeeded proposal can't be executed before this time
		Eligible  uint64 `json:"eligible"`
		LastError string `json:"lastError,omitempty"`
	}

	// Receipt is the vote of a member on a proposal.
	Receipt struct {
		_        struct{} `cbor:",toarray"`
		Proposal uint64   `json:"proposal"`
		Member   uint64   `json:"member"`
		Support  bool     `json:"support"`
		Weight   uint64   `json:"weight"`
	}
)

func (p *Proposal) Write(hasher hash.Hash) error { return state.WriteCBOR(hasher, p) }

func (p *Proposal) Copy() state.UnitData {
	c := *p
	c.Action.Body = slices.Clone(p.Action.Body)
	return &c
}

func (r *Receipt) Write(hasher hash.Hash) error { return state.WriteCBOR(hasher, r) }

func (r *Receipt) Copy() state.UnitData {
	c := *r
	return &c
}

// votingOpen - votes may be cast on the proposal at the height "round" and time "now".
func votingOpen(p *Proposal, round, now uint64) bool {
	return p.Status == Voting && round > p.CreatedAt && p.VotingStart <= now && now < p.VotingEnd
}

// canFinalize - the voting window of the proposal is over.
func canFinalize(p *Proposal, now uint64) bool {
	return p.Status == Voting && now > p.VotingEnd
}

// executable - the execution delay of the passed proposal is over.
func executable(p *Proposal, now uint64) bool {
	return p.Status == Succeeded && now >= p.Eligible
}

/*
Passed returns true when at least one vote was cast, cast power reaches the
quorum (floor of total * quorumBps / 10000) and there are more yes than no votes.
*/
func Passed(yes, no, total, quorumBps uint64) bool {
	cast := yes + no
	return cast >= 1 && cast >= quorum(total, quorumBps) && yes > no
}

func quorum(total, bps uint64) uint64 {
	hi, lo := bits.Mul64(total, bps)
	if hi >= 10000 {
		return total
	}
	q, _ := bits.Div64(hi, lo, 10000)
	return q
}

// snapshotHeight returns the snapshot height of proposal created at height "round",
// power changes made at the creation height are not counted.
func snapshotHeight(round uint64) uint64 {
	if round == 0 {
		return 0
	}
	return round - 1
}
