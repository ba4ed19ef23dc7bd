package types

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/types"
)

type stateInfo struct{}

func (s *stateInfo) GetUnit(id types.UnitID, committed bool) (*state.Unit, error) {
	return nil, fmt.Errorf("unit does not exist")
}

func (s *stateInfo) CurrentRound() uint64 { return 1 }

func (s *stateInfo) CurrentTimestamp() uint64 { return 1700000000 }

func Test_newExecutionContext(t *testing.T) {
	caller := types.IdentityFromPubKey([]byte{1, 2, 3})
	execCtx := NewExecutionContext(&stateInfo{}, caller)
	require.NotNil(t, execCtx)
	require.EqualValues(t, 1, execCtx.CurrentRound())
	require.EqualValues(t, 1700000000, execCtx.Now())
	require.Equal(t, caller, execCtx.Caller())
	u, err := execCtx.GetUnit(types.UnitID{2}, false)
	require.Error(t, err)
	require.Nil(t, u)
}

type testAttr struct {
	_     struct{} `cbor:",toarray"`
	Value uint64
}

func Test_TxHandler(t *testing.T) {
	txo := &types.TransactionOrder{Payload: &types.Payload{Type: "test"}}
	require.NoError(t, txo.Payload.SetAttributes(&testAttr{Value: 5}))
	exeCtx := NewExecutionContext(&stateInfo{}, types.Identity{})

	t.Run("validate error", func(t *testing.T) {
		expErr := NewCondition(ErrPolicy, "too big")
		h := NewTxHandler[testAttr](
			func(tx *types.TransactionOrder, attr *testAttr, _ ExecutionContext) error {
				if attr.Value > 3 {
					return expErr
				}
				return nil
			},
			nil,
		)
		executors := TxExecutors{}
		require.NoError(t, executors.Add(TxExecutors{"test": h}))
		attr, err := executors.Validate(txo, exeCtx)
		require.ErrorIs(t, err, expErr)
		require.Nil(t, attr)
	})

	t.Run("validate and execute", func(t *testing.T) {
		h := NewTxHandler[testAttr](nil,
			func(tx *types.TransactionOrder, attr *testAttr, _ ExecutionContext) (*types.ServerMetadata, error) {
				return SuccessMetadata(types.NewUnitID(1, attr.Value)), nil
			},
		)
		executors := TxExecutors{"test": h}
		attr, err := executors.Validate(txo, exeCtx)
		require.NoError(t, err)
		sm, err := executors.ExecuteWithAttr(txo, attr, exeCtx)
		require.NoError(t, err)
		require.Equal(t, types.TxStatusSuccessful, sm.SuccessIndicator)
		require.Equal(t, []types.UnitID{types.NewUnitID(1, 5)}, sm.TargetUnits)

		_, err = executors.ExecuteWithAttr(txo, &struct{}{}, exeCtx)
		require.EqualError(t, err, "'test' execution failed: incorrect attribute type: *struct {} for transaction order test")
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := TxExecutors{}.Validate(txo, exeCtx)
		require.EqualError(t, err, "unknown transaction type test")
	})

	t.Run("registering", func(t *testing.T) {
		executors := TxExecutors{"test": NewTxHandler[testAttr](nil, nil)}
		require.EqualError(t, executors.Add(TxExecutors{"test": NewTxHandler[testAttr](nil, nil)}), `transaction executor for "test" is already registered`)
		require.EqualError(t, executors.Add(TxExecutors{"": NewTxHandler[testAttr](nil, nil)}), `transaction executor must have non-empty transaction type name`)
		require.EqualError(t, executors.Add(TxExecutors{"foo": nil}), `transaction executor must not be nil (foo)`)
	})
}

func Test_NextID(t *testing.T) {
	s := state.NewEmptyState()
	id := types.NewUnitID(0x33, 0)
	var v uint64
	require.NoError(t, s.Apply(NextID(id, &v)))
	require.EqualValues(t, 1, v)
	require.NoError(t, s.Apply(NextID(id, &v)))
	require.EqualValues(t, 2, v)

	// allocation is rolled back with the state
	sp := s.Savepoint()
	require.NoError(t, s.Apply(NextID(id, &v)))
	require.EqualValues(t, 3, v)
	s.RollbackToSavepoint(sp)
	require.NoError(t, s.Apply(NextID(id, &v)))
	require.EqualValues(t, 3, v)
}
