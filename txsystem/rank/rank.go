package rank

import "fmt"

/*
Rank is the ordinal level of a member. Everything derived from the rank (voting
power and the quotas of concurrent actions) is a pure function of the index.

Voting power is 2^index as uint64 so indexes up to 63 would fit, the ranks
above Max are rejected by Valid until the tables below are extended.
*/
type Rank uint8

const (
	// Count is the number of ranks, valid indexes are 0..Count-1.
	Count = 10
	Max   = Rank(Count - 1)

	// ProposalFloor is the lowest rank allowed to create proposals, the
	// lowest rank with non-zero proposal quota.
	ProposalFloor Rank = 2

	// VetoMargin is how many ranks above the frozen rank of the issuer the
	// member blocking an order must be.
	VetoMargin = 2
)

var (
	orderQuota    = [Count]uint32{0, 0, 0, 1, 1, 1, 2, 2, 3, 3}
	proposalQuota = [Count]uint32{0, 0, 1, 1, 1, 2, 2, 2, 3, 3}
	inviteQuota   = [Count]uint32{0, 1, 1, 2, 2, 3, 3, 4, 5, 6}
)

func (r Rank) Valid() error {
	if r > Max {
		return fmt.Errorf("rank %d is out of range, max rank is %d", r, Max)
	}
	return nil
}

// Power returns the voting power of the rank, 2^rank.
func (r Rank) Power() uint64 {
	return 1 << r
}

// OrderQuota is the number of Pending orders a member of the rank may have issued.
func (r Rank) OrderQuota() uint32 {
	if r > Max {
		return 0
	}
	return orderQuota[r]
}

// ProposalQuota is the number of proposals in Voting state a member of the rank may have.
func (r Rank) ProposalQuota() uint32 {
	if r > Max {
		return 0
	}
	return proposalQuota[r]
}

// InviteQuota is used by the invite collaborator.
func (r Rank) InviteQuota() uint32 {
	if r > Max {
		return 0
	}
	return inviteQuota[r]
}

// CanVeto returns true when member of rank "r" may block order issued by
// member whose rank was "issuer" at the time of creating the order.
func (r Rank) CanVeto(issuer Rank) bool {
	return int(r) >= int(issuer)+VetoMargin
}

/*
PromotionCeiling returns the highest rank member of rank "r" may promote
somebody to with an order. The second return value is false when the member
can't promote at all.
*/
func (r Rank) PromotionCeiling() (Rank, bool) {
	if r < VetoMargin {
		return 0, false
	}
	return r - VetoMargin, true
}

// DemoteTo returns "to" when it is below "r" and "r" otherwise, demotion never
// raises the rank.
func (r Rank) DemoteTo(to Rank) Rank {
	if to < r {
		return to
	}
	return r
}

func (r Rank) String() string {
	return fmt.Sprintf("R%d", uint8(r))
}
