package test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	WaitDuration = 2 * time.Second
	WaitTick     = 50 * time.Millisecond
)

// WaitForRound fails the test when the latest round doesn't reach round
// within WaitDuration.
func WaitForRound(t *testing.T, latest func() uint64, round uint64) {
	t.Helper()
	require.Eventually(t, func() bool { return latest() >= round }, WaitDuration, WaitTick, "round %d was not reached", round)
}
