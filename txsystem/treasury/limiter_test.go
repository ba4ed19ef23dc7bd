package treasury

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	testsig "github.com/alphabill-org/guild/internal/testutils/sig"
	"github.com/alphabill-org/guild/txsystem/membership"
	"github.com/alphabill-org/guild/txsystem/params"
	"github.com/alphabill-org/guild/txsystem/rank"
	testmembers "github.com/alphabill-org/guild/txsystem/testutils/members"
	txtypes "github.com/alphabill-org/guild/txsystem/types"
)

const testPeriod = 100

func newTestLimiter(t *testing.T, ranks ...rank.Rank) (*Limiter, *testmembers.Guild, []*testmembers.Member) {
	t.Helper()
	g, members := testmembers.New(t, ranks...)
	return NewLimiter(g.State, g.Registry), g, members
}

func spendingOf(t *testing.T, s []*SpendingState, asset string) *SpendingState {
	t.Helper()
	for _, st := range s {
		if st.Asset == asset {
			return st
		}
	}
	t.Fatalf("no spending state for asset %q", asset)
	return nil
}

func Test_RankQuota(t *testing.T) {
	ceiling := NewAmount(params.QuotaCeiling.Definition().Default)

	q, err := RankQuota(NewAmount(1000), NewAmount(100), 3, ceiling)
	require.NoError(t, err)
	require.EqualValues(t, "1800", q.String())

	q, err = RankQuota(NewAmount(1000), NewAmount(0), rank.Max, ceiling)
	require.NoError(t, err)
	require.EqualValues(t, "1000", q.String())

	// clamped by the ceiling
	q, err = RankQuota(NewAmount(1000), NewAmount(100), rank.Max, NewAmount(5000))
	require.NoError(t, err)
	require.EqualValues(t, "5000", q.String())

	// multiplication overflow
	huge := &Amount{}
	require.NoError(t, huge.UnmarshalText([]byte("115792089237316195423570985008687907853269984665640564039457584007913129639935")))
	q, err = RankQuota(NewAmount(1), huge, rank.Max, ceiling)
	require.NoError(t, err)
	require.Zero(t, q.Cmp(ceiling))
}

func Test_periodElapsed(t *testing.T) {
	require.False(t, periodElapsed(0, testPeriod, 0))
	require.False(t, periodElapsed(0, testPeriod, testPeriod-1))
	require.True(t, periodElapsed(0, testPeriod, testPeriod))
	require.True(t, periodElapsed(50, testPeriod, 1000))
	// start+period doesn't fit into uint64
	require.False(t, periodElapsed(5, math.MaxUint64, 10))
	require.False(t, periodElapsed(math.MaxUint64-1, 10, math.MaxUint64))
	// clock behind the period start
	require.False(t, periodElapsed(100, testPeriod, 50))
}

func Test_Authorize_RankLinkedQuota(t *testing.T) {
	l, _, members := newTestLimiter(t, 3)
	treasurer := members[0]
	require.NoError(t, l.GrantRankLinked(treasurer.ID, NewAmount(1000), NewAmount(100), 0, testPeriod, 0))

	// quota is 1000 + 100*8
	_, err := l.Authorize(treasurer.Identity, NativeAsset, NewAmount(1900), 10)
	require.ErrorIs(t, err, txtypes.ErrQuotaExceeded)
	require.ErrorIs(t, err, txtypes.ErrPolicy)

	id, err := l.Authorize(treasurer.Identity, NativeAsset, NewAmount(1000), 10)
	require.NoError(t, err)
	require.Equal(t, NewRankGrantID(treasurer.ID), id)
	_, err = l.Authorize(treasurer.Identity, NativeAsset, NewAmount(800), 20)
	require.NoError(t, err)
	_, err = l.Authorize(treasurer.Identity, NativeAsset, NewAmount(1), 30)
	require.ErrorIs(t, err, txtypes.ErrQuotaExceeded)

	// failed attempt didn't change the spending
	g, err := l.RankGrant(treasurer.ID)
	require.NoError(t, err)
	st := spendingOf(t, g.Spending, NativeAsset)
	require.EqualValues(t, "1800", st.Spent.String())
	require.EqualValues(t, 0, st.PeriodStart)

	// next period
	_, err = l.Authorize(treasurer.Identity, NativeAsset, NewAmount(1800), 2*testPeriod+5)
	require.NoError(t, err)
	g, err = l.RankGrant(treasurer.ID)
	require.NoError(t, err)
	st = spendingOf(t, g.Spending, NativeAsset)
	require.EqualValues(t, "1800", st.Spent.String())
	require.EqualValues(t, 2*testPeriod, st.PeriodStart)
}

func Test_Authorize_QuotaFollowsRank(t *testing.T) {
	l, gld, members := newTestLimiter(t, 3)
	treasurer := members[0]
	require.NoError(t, l.GrantRankLinked(treasurer.ID, NewAmount(1000), NewAmount(100), 0, testPeriod, 0))

	require.NoError(t, gld.Registry.SetRank(membership.PathwayOrder, treasurer.ID, 4, 1))
	// quota is 1000 + 100*16
	_, err := l.Authorize(treasurer.Identity, "ETH", NewAmount(2600), 10)
	require.NoError(t, err)

	// ceiling
	require.NoError(t, gld.State.Apply(params.Set(params.QuotaCeiling, 100)))
	_, err = l.Authorize(treasurer.Identity, "BTC", NewAmount(101), 10)
	require.ErrorIs(t, err, txtypes.ErrQuotaExceeded)
	_, err = l.Authorize(treasurer.Identity, "BTC", NewAmount(100), 10)
	require.NoError(t, err)
}

func Test_Authorize_Resolution(t *testing.T) {
	t.Run("no grant", func(t *testing.T) {
		l, _, members := newTestLimiter(t, 3)
		_, err := l.Authorize(members[0].Identity, NativeAsset, NewAmount(1), 0)
		require.ErrorIs(t, err, ErrNoGrant)
		require.ErrorIs(t, err, txtypes.ErrUnauthorized)

		_, stranger := testsig.CreateSignerAndIdentity(t)
		_, err = l.Authorize(stranger, NativeAsset, NewAmount(1), 0)
		require.ErrorIs(t, err, ErrNoGrant)
	})

	t.Run("rank too low, no identity grant", func(t *testing.T) {
		l, _, members := newTestLimiter(t, 1)
		require.NoError(t, l.GrantRankLinked(members[0].ID, NewAmount(1000), NewAmount(100), 3, testPeriod, 0))
		_, err := l.Authorize(members[0].Identity, NativeAsset, NewAmount(1), 0)
		require.ErrorIs(t, err, txtypes.ErrRankTooLow)
	})

	t.Run("inactive member, no identity grant", func(t *testing.T) {
		l, g, members := newTestLimiter(t, 5)
		require.NoError(t, l.GrantRankLinked(members[0].ID, NewAmount(1000), NewAmount(100), 0, testPeriod, 0))
		require.NoError(t, g.Registry.SetActive(membership.PathwaySelfService, members[0].ID, false, 1))
		_, err := l.Authorize(members[0].Identity, NativeAsset, NewAmount(1), 0)
		require.ErrorIs(t, err, txtypes.ErrMemberInactive)
	})

	t.Run("rank too low, falls back to identity grant", func(t *testing.T) {
		l, _, members := newTestLimiter(t, 1)
		principal := members[0].Identity
		require.NoError(t, l.GrantRankLinked(members[0].ID, NewAmount(1000), NewAmount(100), 3, testPeriod, 0))
		require.NoError(t, l.GrantIdentityLinked(principal, NewAmount(500), testPeriod, 0))

		id, err := l.Authorize(principal, NativeAsset, NewAmount(500), 0)
		require.NoError(t, err)
		require.Equal(t, NewIdentityGrantID(principal), id)
		_, err = l.Authorize(principal, NativeAsset, NewAmount(1), 0)
		require.ErrorIs(t, err, txtypes.ErrQuotaExceeded)
	})

	t.Run("rank-linked quota exhausted, falls back to identity grant", func(t *testing.T) {
		l, _, members := newTestLimiter(t, 0)
		principal := members[0].Identity
		require.NoError(t, l.GrantRankLinked(members[0].ID, NewAmount(10), NewAmount(0), 0, testPeriod, 0))
		require.NoError(t, l.GrantIdentityLinked(principal, NewAmount(20), testPeriod, 0))

		id, err := l.Authorize(principal, NativeAsset, NewAmount(10), 0)
		require.NoError(t, err)
		require.Equal(t, NewRankGrantID(members[0].ID), id)
		id, err = l.Authorize(principal, NativeAsset, NewAmount(15), 0)
		require.NoError(t, err)
		require.Equal(t, NewIdentityGrantID(principal), id)

		rg, err := l.RankGrant(members[0].ID)
		require.NoError(t, err)
		require.EqualValues(t, "10", spendingOf(t, rg.Spending, NativeAsset).Spent.String())
	})

	t.Run("identity grant of non-member", func(t *testing.T) {
		l, _, _ := newTestLimiter(t)
		_, principal := testsig.CreateSignerAndIdentity(t)
		require.NoError(t, l.GrantIdentityLinked(principal, NewAmount(20), testPeriod, 0))
		id, err := l.Authorize(principal, NativeAsset, NewAmount(20), 0)
		require.NoError(t, err)
		require.Equal(t, NewIdentityGrantID(principal), id)
	})

	t.Run("grant moves with the authority", func(t *testing.T) {
		l, g, members := newTestLimiter(t, 3)
		require.NoError(t, l.GrantRankLinked(members[0].ID, NewAmount(10), NewAmount(0), 0, testPeriod, 0))
		_, newAuthority := testsig.CreateSignerAndIdentity(t)
		require.NoError(t, g.Registry.SetAuthority(membership.PathwaySelfService, members[0].ID, newAuthority))

		_, err := l.Authorize(members[0].Identity, NativeAsset, NewAmount(1), 0)
		require.ErrorIs(t, err, ErrNoGrant)
		_, err = l.Authorize(newAuthority, NativeAsset, NewAmount(1), 0)
		require.NoError(t, err)
	})
}

func Test_Authorize_PeriodIsolation(t *testing.T) {
	l, _, members := newTestLimiter(t, 0)
	principal := members[0].Identity
	require.NoError(t, l.GrantIdentityLinked(principal, NewAmount(100), testPeriod, 0))

	_, err := l.Authorize(principal, "A", NewAmount(100), 10)
	require.NoError(t, err)
	_, err = l.Authorize(principal, "B", NewAmount(60), 50)
	require.NoError(t, err)

	// A rolls over, B is not touched
	_, err = l.Authorize(principal, "A", NewAmount(30), 120)
	require.NoError(t, err)
	g, err := l.IdentityGrant(principal)
	require.NoError(t, err)
	a := spendingOf(t, g.Spending, "A")
	require.EqualValues(t, "30", a.Spent.String())
	require.EqualValues(t, testPeriod, a.PeriodStart)
	b := spendingOf(t, g.Spending, "B")
	require.EqualValues(t, "60", b.Spent.String())
	require.EqualValues(t, 0, b.PeriodStart)

	// new asset starts in the current period of the grant
	_, err = l.Authorize(principal, "C", NewAmount(1), 345)
	require.NoError(t, err)
	g, err = l.IdentityGrant(principal)
	require.NoError(t, err)
	require.EqualValues(t, 300, spendingOf(t, g.Spending, "C").PeriodStart)

	// rollover happens once per period
	_, err = l.Authorize(principal, "B", NewAmount(100), 399)
	require.NoError(t, err)
	_, err = l.Authorize(principal, "B", NewAmount(1), 399)
	require.ErrorIs(t, err, txtypes.ErrQuotaExceeded)
}

func Test_Authorize_QuotaNeverExceeded(t *testing.T) {
	l, _, members := newTestLimiter(t, 2)
	principal := members[0].Identity
	require.NoError(t, l.GrantRankLinked(members[0].ID, NewAmount(50), NewAmount(10), 0, testPeriod, 7))
	const quota = 50 + 10*4

	spent := map[uint64]uint64{}
	now := uint64(7)
	for range 1000 {
		now += uint64(rand.Intn(20))
		amount := uint64(rand.Intn(40))
		period := (now - 7) / testPeriod
		_, err := l.Authorize(principal, NativeAsset, NewAmount(amount), now)
		if spent[period]+amount > quota {
			require.ErrorIs(t, err, txtypes.ErrQuotaExceeded)
			continue
		}
		require.NoError(t, err)
		spent[period] += amount
		require.LessOrEqual(t, spent[period], uint64(quota))
	}
}

func Test_Authorize_LongPeriod(t *testing.T) {
	l, _, members := newTestLimiter(t, 0)
	principal := members[0].Identity

	require.ErrorIs(t, l.GrantRankLinked(members[0].ID, NewAmount(1000), NewAmount(0), 0, math.MaxUint64, 5), txtypes.ErrOutOfBounds)
	require.ErrorIs(t, l.GrantRankLinked(members[0].ID, NewAmount(1000), NewAmount(0), 0, MaxGrantPeriod+1, 5), txtypes.ErrOutOfBounds)
	require.ErrorIs(t, l.GrantIdentityLinked(principal, NewAmount(1000), math.MaxUint64, 5), txtypes.ErrOutOfBounds)

	require.NoError(t, l.GrantRankLinked(members[0].ID, NewAmount(1000), NewAmount(0), 0, MaxGrantPeriod, 5))
	_, err := l.Authorize(principal, NativeAsset, NewAmount(1000), 10)
	require.NoError(t, err)
	for range 4 {
		_, err := l.Authorize(principal, NativeAsset, NewAmount(1000), 10)
		require.ErrorIs(t, err, txtypes.ErrQuotaExceeded)
	}
	_, err = l.Authorize(principal, NativeAsset, NewAmount(1), 5+MaxGrantPeriod-1)
	require.ErrorIs(t, err, txtypes.ErrQuotaExceeded)
	_, err = l.Authorize(principal, NativeAsset, NewAmount(1000), 5+MaxGrantPeriod)
	require.NoError(t, err)

	// counters stored with a period that wraps around uint64 never reset
	spending := []*SpendingState{}
	require.NoError(t, charge(&spending, NativeAsset, NewAmount(1000), NewAmount(1000), 5, math.MaxUint64, 10))
	require.ErrorIs(t, charge(&spending, NativeAsset, NewAmount(1000), NewAmount(1000), 5, math.MaxUint64, 10), txtypes.ErrQuotaExceeded)
	require.EqualValues(t, "1000", spendingOf(t, spending, NativeAsset).Spent.String())
}

func Test_GrantManagement(t *testing.T) {
	l, _, members := newTestLimiter(t, 3)
	_, principal := testsig.CreateSignerAndIdentity(t)

	require.ErrorIs(t, l.GrantRankLinked(99, NewAmount(1), NewAmount(1), 0, testPeriod, 0), txtypes.ErrMemberNotFound)
	require.ErrorIs(t, l.GrantRankLinked(members[0].ID, NewAmount(1), NewAmount(1), rank.Max+1, testPeriod, 0), txtypes.ErrOutOfBounds)
	require.ErrorIs(t, l.GrantRankLinked(members[0].ID, NewAmount(1), NewAmount(1), 0, 0, 0), txtypes.ErrInvalidArgument)
	require.ErrorIs(t, l.GrantIdentityLinked(principal, NewAmount(1), 0, 0), txtypes.ErrInvalidArgument)

	require.NoError(t, l.GrantRankLinked(members[0].ID, NewAmount(1), NewAmount(1), 0, testPeriod, 0))
	require.ErrorIs(t, l.GrantRankLinked(members[0].ID, NewAmount(1), NewAmount(1), 0, testPeriod, 0), ErrGrantExists)
	require.NoError(t, l.GrantIdentityLinked(principal, NewAmount(1), testPeriod, 0))
	require.ErrorIs(t, l.GrantIdentityLinked(principal, NewAmount(1), testPeriod, 0), ErrGrantExists)

	require.NoError(t, l.RevokeRankLinked(members[0].ID))
	require.ErrorIs(t, l.RevokeRankLinked(members[0].ID), ErrGrantNotFound)
	require.NoError(t, l.RevokeIdentityLinked(principal))
	require.ErrorIs(t, l.RevokeIdentityLinked(principal), ErrGrantNotFound)

	_, err := l.Authorize(principal, NativeAsset, NewAmount(1), 0)
	require.ErrorIs(t, err, ErrNoGrant)
}
