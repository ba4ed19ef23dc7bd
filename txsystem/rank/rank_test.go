package rank

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Power(t *testing.T) {
	require.EqualValues(t, 1, Rank(0).Power())
	require.EqualValues(t, 512, Max.Power())

	for r := Rank(0); r < Max; r++ {
		require.Equal(t, 2*r.Power(), (r + 1).Power(), "rank %d", r)
	}
}

func Test_quotasAreMonotonic(t *testing.T) {
	for r := Rank(0); r < Max; r++ {
		require.LessOrEqual(t, r.OrderQuota(), (r + 1).OrderQuota(), "order quota of rank %d", r)
		require.LessOrEqual(t, r.ProposalQuota(), (r + 1).ProposalQuota(), "proposal quota of rank %d", r)
		require.LessOrEqual(t, r.InviteQuota(), (r + 1).InviteQuota(), "invite quota of rank %d", r)
	}
	// out of range rank has no quota
	require.Zero(t, (Max + 1).OrderQuota())
	require.Zero(t, (Max + 1).ProposalQuota())
	require.Zero(t, (Max + 1).InviteQuota())
}

func Test_ProposalFloor(t *testing.T) {
	for r := Rank(0); r < ProposalFloor; r++ {
		require.Zero(t, r.ProposalQuota())
	}
	require.NotZero(t, ProposalFloor.ProposalQuota())
}

func Test_Valid(t *testing.T) {
	for r := Rank(0); r <= Max; r++ {
		require.NoError(t, r.Valid())
	}
	require.EqualError(t, Rank(10).Valid(), `rank 10 is out of range, max rank is 9`)
}

func Test_CanVeto(t *testing.T) {
	for issuer := Rank(0); issuer <= Max; issuer++ {
		for blocker := Rank(0); blocker <= Max; blocker++ {
			require.Equal(t, int(blocker) >= int(issuer)+2, blocker.CanVeto(issuer), "blocker %d issuer %d", blocker, issuer)
		}
	}
}

func Test_PromotionCeiling(t *testing.T) {
	_, ok := Rank(1).PromotionCeiling()
	require.False(t, ok)
	c, ok := Rank(5).PromotionCeiling()
	require.True(t, ok)
	require.EqualValues(t, 3, c)
}

func Test_DemoteTo(t *testing.T) {
	require.EqualValues(t, 3, Rank(5).DemoteTo(3))
	require.EqualValues(t, 0, Rank(1).DemoteTo(0))
	require.EqualValues(t, 0, Rank(0).DemoteTo(0))
	require.EqualValues(t, 2, Rank(2).DemoteTo(4))
}
