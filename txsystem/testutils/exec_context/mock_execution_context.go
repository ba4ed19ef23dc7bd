package exec_context

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/guild/state"
	txtypes "github.com/alphabill-org/guild/txsystem/types"
	"github.com/alphabill-org/guild/types"
)

/*
MockExecContext is execution context for calling transaction handlers directly
in tests. Units are read from the State (when assigned) or the Unit field.
*/
type MockExecContext struct {
	State       *state.State
	Unit        *state.Unit
	RoundNumber uint64
	Timestamp   uint64
	CallerID    types.Identity
	mockErr     error
}

func (m *MockExecContext) GetUnit(id types.UnitID, committed bool) (*state.Unit, error) {
	if m.mockErr != nil {
		return nil, m.mockErr
	}
	if m.State != nil {
		return m.State.GetUnit(id, committed)
	}
	return m.Unit, nil
}

func (m *MockExecContext) CurrentRound() uint64 { return m.RoundNumber }

func (m *MockExecContext) Now() uint64 { return m.Timestamp }

func (m *MockExecContext) Caller() types.Identity { return m.CallerID }

type TestOption func(*MockExecContext) error

func WithCurrentRound(round uint64) TestOption {
	return func(m *MockExecContext) error {
		m.RoundNumber = round
		return nil
	}
}

func WithTimestamp(ts uint64) TestOption {
	return func(m *MockExecContext) error {
		m.Timestamp = ts
		return nil
	}
}

func WithCaller(id types.Identity) TestOption {
	return func(m *MockExecContext) error {
		m.CallerID = id
		return nil
	}
}

func WithState(s *state.State) TestOption {
	return func(m *MockExecContext) error {
		m.State = s
		return nil
	}
}

func WithUnit(u *state.Unit) TestOption {
	return func(m *MockExecContext) error {
		m.Unit = u
		return nil
	}
}

func WithErr(err error) TestOption {
	return func(m *MockExecContext) error {
		m.mockErr = err
		return nil
	}
}

func NewMockExecutionContext(t *testing.T, options ...TestOption) *MockExecContext {
	execCtx := &MockExecContext{}
	for _, o := range options {
		require.NoError(t, o(execCtx))
	}
	return execCtx
}

var _ txtypes.ExecutionContext = (*MockExecContext)(nil)
