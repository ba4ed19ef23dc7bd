package testmembers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/guild/crypto"
	testsig "github.com/alphabill-org/guild/internal/testutils/sig"
	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/txsystem/membership"
	"github.com/alphabill-org/guild/txsystem/rank"
	testctx "github.com/alphabill-org/guild/txsystem/testutils/exec_context"
	"github.com/alphabill-org/guild/types"
)

type Member struct {
	ID       uint64
	Rank     rank.Rank
	Signer   crypto.Signer
	Identity types.Identity
}

func (m *Member) UnitID() types.UnitID {
	return membership.NewMemberID(m.ID)
}

// Guild is a state with membership registry for module tests.
type Guild struct {
	State     *state.State
	Registry  *membership.Registry
	Bootstrap types.Identity
}

// New creates guild with a member for each rank in "ranks", members are
// admitted at height 0.
func New(t testing.TB, ranks ...rank.Rank) (*Guild, []*Member) {
	t.Helper()
	_, bootstrap := testsig.CreateSignerAndIdentity(t)
	s := state.NewEmptyState()
	g := &Guild{
		State:     s,
		Registry:  membership.NewRegistry(s),
		Bootstrap: bootstrap,
	}
	require.NoError(t, g.Registry.Init(bootstrap))
	members := make([]*Member, len(ranks))
	for i, r := range ranks {
		members[i] = g.Add(t, r, 0)
	}
	return g, members
}

// Add admits new member of rank "r" at ledger height "height".
func (g *Guild) Add(t testing.TB, r rank.Rank, height uint64) *Member {
	t.Helper()
	signer, id := testsig.CreateSignerAndIdentity(t)
	mid, err := g.Registry.Admit(membership.PathwayCollaborator, id, r, 0, height)
	require.NoError(t, err)
	return &Member{ID: mid, Rank: r, Signer: signer, Identity: id}
}

func (g *Guild) Member(t testing.TB, id uint64) *membership.Member {
	t.Helper()
	m, err := g.Registry.GetMember(id)
	require.NoError(t, err)
	return m
}

// ExecCtx returns execution context for a transaction of "caller", caller
// may be nil.
func (g *Guild) ExecCtx(t *testing.T, caller *Member, round, now uint64) *testctx.MockExecContext {
	opts := []testctx.TestOption{
		testctx.WithState(g.State),
		testctx.WithCurrentRound(round),
		testctx.WithTimestamp(now),
	}
	if caller != nil {
		opts = append(opts, testctx.WithCaller(caller.Identity))
	}
	return testctx.NewMockExecutionContext(t, opts...)
}

// RequireLedgerInSync checks that the total power equals the sum of member powers at the height.
func (g *Guild) RequireLedgerInSync(t testing.TB, height uint64) {
	t.Helper()
	reg, err := g.Registry.Data()
	require.NoError(t, err)
	var sum uint64
	for id := uint64(1); id <= reg.LastMemberID; id++ {
		p, err := g.Registry.Ledger().PowerAt(id, height)
		require.NoError(t, err)
		sum += p
	}
	total, err := g.Registry.Ledger().TotalAt(height)
	require.NoError(t, err)
	require.Equal(t, sum, total, "total power at height %d", height)
}
