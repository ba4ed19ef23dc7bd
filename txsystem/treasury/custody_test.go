package treasury

import (
	"testing"

	"github.com/stretchr/testify/require"

	testsig "github.com/alphabill-org/guild/internal/testutils/sig"
	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/txsystem/params"
	txtypes "github.com/alphabill-org/guild/txsystem/types"
	"github.com/alphabill-org/guild/types"
)

func newTestCustody(t *testing.T, balances map[string]uint64) (*Custody, *state.State) {
	t.Helper()
	s := state.NewEmptyState()
	c := NewCustody(s)
	for asset, v := range balances {
		require.NoError(t, c.Deposit(asset, NewAmount(v)))
	}
	return c, s
}

func outbound(t *testing.T, s *state.State, id types.UnitID) *Outbound {
	t.Helper()
	u, err := s.GetUnit(id, false)
	require.NoError(t, err)
	out, ok := u.Data().(*Outbound)
	require.True(t, ok)
	return out
}

func Test_Custody_Deposit(t *testing.T) {
	c, _ := newTestCustody(t, nil)
	f, err := c.Fund()
	require.NoError(t, err)
	require.True(t, f.Balance(NativeAsset).IsZero())

	require.NoError(t, c.Deposit("B", NewAmount(5)))
	require.NoError(t, c.Deposit("A", NewAmount(7)))
	require.NoError(t, c.Deposit("B", NewAmount(5)))
	require.ErrorIs(t, c.Deposit("", NewAmount(5)), txtypes.ErrInvalidArgument)
	require.ErrorIs(t, c.Deposit("A", NewAmount(0)), txtypes.ErrInvalidArgument)

	f, err = c.Fund()
	require.NoError(t, err)
	require.Len(t, f.Balances, 2)
	require.Equal(t, "A", f.Balances[0].Asset)
	require.EqualValues(t, "7", f.Balance("A").String())
	require.EqualValues(t, "10", f.Balance("B").String())

	// deposits are accepted while the fund is locked
	require.NoError(t, c.Lock())
	require.NoError(t, c.Deposit("A", NewAmount(1)))
}

func Test_Custody_Transfer(t *testing.T) {
	_, to := testsig.CreateSignerAndIdentity(t)

	t.Run("success", func(t *testing.T) {
		c, s := newTestCustody(t, map[string]uint64{NativeAsset: 100})
		id, err := c.Transfer(SpenderProposal, NativeAsset, to, NewAmount(60), 5)
		require.NoError(t, err)
		require.Equal(t, NewOutboundID(1), id)
		out := outbound(t, s, id)
		require.Equal(t, OutboundTransfer, out.Kind)
		require.Equal(t, SpenderProposal, out.Spender)
		require.Equal(t, to, out.To)
		require.EqualValues(t, 5, out.Round)
		require.EqualValues(t, "60", out.Amount.String())

		id, err = c.Transfer(SpenderTreasurer, NativeAsset, to, NewAmount(40), 6)
		require.NoError(t, err)
		require.Equal(t, NewOutboundID(2), id)
		f, err := c.Fund()
		require.NoError(t, err)
		require.True(t, f.Balance(NativeAsset).IsZero())
	})

	t.Run("insufficient funds", func(t *testing.T) {
		c, _ := newTestCustody(t, map[string]uint64{NativeAsset: 100})
		_, err := c.Transfer(SpenderProposal, NativeAsset, to, NewAmount(101), 5)
		require.ErrorIs(t, err, ErrInsufficientFunds)
		_, err = c.Transfer(SpenderProposal, "other", to, NewAmount(1), 5)
		require.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		c, _ := newTestCustody(t, map[string]uint64{NativeAsset: 100})
		_, err := c.Transfer(0, NativeAsset, to, NewAmount(1), 5)
		require.ErrorIs(t, err, ErrInvalidSpender)
		_, err = c.Transfer(SpenderProposal, NativeAsset, to, NewAmount(0), 5)
		require.ErrorIs(t, err, txtypes.ErrInvalidArgument)
		_, err = c.Transfer(SpenderProposal, NativeAsset, types.Identity{}, NewAmount(1), 5)
		require.ErrorIs(t, err, txtypes.ErrInvalidArgument)
	})

	t.Run("fund locked", func(t *testing.T) {
		c, _ := newTestCustody(t, map[string]uint64{NativeAsset: 100})
		require.NoError(t, c.Lock())
		_, err := c.Transfer(SpenderProposal, NativeAsset, to, NewAmount(1), 5)
		require.ErrorIs(t, err, ErrFundLocked)
		require.NoError(t, c.Unlock())
		_, err = c.Transfer(SpenderProposal, NativeAsset, to, NewAmount(1), 5)
		require.NoError(t, err)
	})

	t.Run("transfers disabled", func(t *testing.T) {
		c, s := newTestCustody(t, map[string]uint64{NativeAsset: 100})
		require.NoError(t, s.Apply(params.Set(params.TransfersEnabled, 0)))
		_, err := c.Transfer(SpenderTreasurer, NativeAsset, to, NewAmount(1), 5)
		require.ErrorIs(t, err, ErrFeatureDisabled)
		require.ErrorIs(t, err, txtypes.ErrPolicy)
	})
}

func Test_Custody_Call(t *testing.T) {
	_, target := testsig.CreateSignerAndIdentity(t)

	c, s := newTestCustody(t, map[string]uint64{NativeAsset: 100})
	// calls are disabled by default
	_, err := c.Call(SpenderProposal, target, NewAmount(1), []byte{1}, 3)
	require.ErrorIs(t, err, ErrFeatureDisabled)

	require.NoError(t, s.Apply(params.Set(params.CallsEnabled, 1)))
	_, err = c.Call(SpenderProposal, target, NewAmount(1), []byte{1}, 3)
	require.ErrorIs(t, err, ErrTargetNotAllowed)

	require.NoError(t, c.SetCallTarget(target, true))
	id, err := c.Call(SpenderProposal, target, NewAmount(10), []byte{1, 2}, 3)
	require.NoError(t, err)
	out := outbound(t, s, id)
	require.Equal(t, OutboundCall, out.Kind)
	require.Equal(t, NativeAsset, out.Asset)
	require.EqualValues(t, []byte{1, 2}, out.Payload)

	// zero value call
	_, err = c.Call(SpenderProposal, target, nil, nil, 3)
	require.NoError(t, err)
	f, err := c.Fund()
	require.NoError(t, err)
	require.EqualValues(t, "90", f.Balance(NativeAsset).String())

	require.NoError(t, c.SetCallTarget(target, false))
	_, err = c.Call(SpenderProposal, target, NewAmount(1), nil, 3)
	require.ErrorIs(t, err, ErrTargetNotAllowed)
	require.ErrorIs(t, c.SetCallTarget(types.Identity{}, true), txtypes.ErrInvalidArgument)
}

func Test_Fund_CallTargets(t *testing.T) {
	f := &Fund{}
	a, b := types.Identity{1}, types.Identity{2}
	f.setCallTarget(b, true)
	f.setCallTarget(a, true)
	f.setCallTarget(a, true)
	require.Len(t, f.CallTargets, 2)
	require.EqualValues(t, a, f.CallTargets[0])
	require.True(t, f.CallAllowed(a))

	c := f.Copy().(*Fund)
	f.setCallTarget(a, false)
	require.False(t, f.CallAllowed(a))
	require.True(t, c.CallAllowed(a))
}
