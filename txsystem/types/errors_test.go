package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Condition(t *testing.T) {
	errA := NewCondition(ErrPolicy, "A")
	errB := NewCondition(ErrPolicy, "B")

	err := fmt.Errorf("executing: %w", fmt.Errorf("%w: details", errA))
	require.ErrorIs(t, err, errA)
	require.ErrorIs(t, err, ErrPolicy)
	require.NotErrorIs(t, err, errB)
	require.NotErrorIs(t, err, ErrTemporal)
	require.EqualError(t, err, "executing: A: details")

	require.Equal(t, ErrPolicy, Category(err))
	require.Equal(t, ErrPolicy, errA.Category())
	require.Nil(t, Category(errors.New("plain")))
}

func Test_sharedConditions(t *testing.T) {
	cases := map[error]error{
		ErrNotMember:       ErrUnauthorized,
		ErrMemberInactive:  ErrUnauthorized,
		ErrRankTooLow:      ErrUnauthorized,
		ErrNotAuthority:    ErrUnauthorized,
		ErrPendingAction:   ErrStateConflict,
		ErrTooEarly:        ErrTemporal,
		ErrTooLate:         ErrTemporal,
		ErrOutOfBounds:     ErrPolicy,
		ErrQuotaExceeded:   ErrPolicy,
		ErrMemberNotFound:  ErrIntegrity,
		ErrIdentityClaimed: ErrIntegrity,
	}
	categories := []error{ErrUnauthorized, ErrStateConflict, ErrTemporal, ErrPolicy, ErrIntegrity}
	for cond, cat := range cases {
		for _, c := range categories {
			require.Equal(t, c == cat, errors.Is(cond, c), "%s in %s", cond, c)
		}
	}
}
