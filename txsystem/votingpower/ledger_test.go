package votingpower

import (
	"hash"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/guild/state"
	txtypes "github.com/alphabill-org/guild/txsystem/types"
)

func Test_History_ValueAt(t *testing.T) {
	var h *History
	require.Zero(t, h.ValueAt(10))

	h = &History{}
	require.Zero(t, h.ValueAt(10))

	require.NoError(t, h.push(5, 8))
	require.NoError(t, h.push(7, 16))
	require.NoError(t, h.push(10, 0))

	require.Zero(t, h.ValueAt(0))
	require.Zero(t, h.ValueAt(4))
	require.EqualValues(t, 8, h.ValueAt(5))
	require.EqualValues(t, 8, h.ValueAt(6))
	require.EqualValues(t, 16, h.ValueAt(7))
	require.EqualValues(t, 16, h.ValueAt(9))
	require.Zero(t, h.ValueAt(10))
	require.Zero(t, h.ValueAt(1000))
}

func Test_History_push(t *testing.T) {
	h := &History{}
	require.NoError(t, h.push(5, 8))
	// same height overwrites
	require.NoError(t, h.push(5, 4))
	require.Len(t, h.Checkpoints, 1)
	require.EqualValues(t, 4, h.Latest())

	require.ErrorIs(t, h.push(4, 1), ErrCheckpointOutOfOrder)
	require.ErrorIs(t, h.push(4, 1), txtypes.ErrIntegrity)
	require.Len(t, h.Checkpoints, 1)

	cp := h.Copy().(*History)
	require.NoError(t, cp.push(6, 1))
	require.Len(t, h.Checkpoints, 1, "copy must not share the checkpoints")
}

func Test_Ledger_RecordPower(t *testing.T) {
	s := state.NewEmptyState()
	l := NewLedger(s)

	total, err := l.TotalAt(100)
	require.NoError(t, err)
	require.Zero(t, total)

	require.NoError(t, s.Apply(RecordPower(1, 8, 0), RecordPower(2, 2, 0)))
	require.NoError(t, s.Apply(RecordPower(1, 16, 3)))
	require.NoError(t, s.Apply(RecordPower(2, 0, 5)))

	p, err := l.PowerAt(1, 2)
	require.NoError(t, err)
	require.EqualValues(t, 8, p)
	p, err = l.PowerAt(1, 3)
	require.NoError(t, err)
	require.EqualValues(t, 16, p)
	p, err = l.Power(2)
	require.NoError(t, err)
	require.Zero(t, p)

	for h, exp := range map[uint64]uint64{0: 10, 2: 10, 3: 18, 4: 18, 5: 16, 9: 16} {
		total, err = l.TotalAt(h)
		require.NoError(t, err)
		require.Equal(t, exp, total, "total at %d", h)
	}

	// unknown member has no power
	p, err = l.PowerAt(99, 5)
	require.NoError(t, err)
	require.Zero(t, p)

	// out of order write is rejected and doesn't modify total
	err = s.Apply(RecordPower(1, 1, 2))
	require.ErrorIs(t, err, ErrCheckpointOutOfOrder)
	total, err = l.TotalAt(10)
	require.NoError(t, err)
	require.EqualValues(t, 16, total)

	cps, err := l.History(1)
	require.NoError(t, err)
	require.Equal(t, []Checkpoint{{Height: 0, Value: 8}, {Height: 3, Value: 16}}, cps)
}

func Test_Ledger_sumInvariant(t *testing.T) {
	s := state.NewEmptyState()
	l := NewLedger(s)
	rnd := rand.New(rand.NewSource(42))

	const members = 8
	height := uint64(0)
	for range 200 {
		if rnd.Intn(3) == 0 {
			height++
		}
		id := uint64(rnd.Intn(members) + 1)
		require.NoError(t, s.Apply(RecordPower(id, uint64(1)<<rnd.Intn(10), height)))
	}

	for h := uint64(0); h <= height+1; h++ {
		var sum uint64
		for id := uint64(1); id <= members; id++ {
			p, err := l.PowerAt(id, h)
			require.NoError(t, err)
			sum += p
		}
		total, err := l.TotalAt(h)
		require.NoError(t, err)
		require.Equal(t, sum, total, "height %d", h)
	}
}

func Test_Ledger_invalidUnitData(t *testing.T) {
	s := state.NewEmptyState()
	require.NoError(t, s.Apply(state.AddUnit(NewMemberPowerID(1), &otherData{})))
	err := s.Apply(RecordPower(1, 1, 1))
	require.ErrorContains(t, err, "expected power history")
}

type otherData struct{}

func (d *otherData) Write(hash.Hash) error { return nil }
func (d *otherData) Copy() state.UnitData { return &otherData{} }
