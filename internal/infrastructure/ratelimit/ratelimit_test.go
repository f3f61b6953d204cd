package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllow_BurstThenBlocked(t *testing.T) {
	t.Parallel()
	p := NewPerClient(60, 2)
	require.True(t, p.Allow("1.2.3.4"))
	require.True(t, p.Allow("1.2.3.4"))
	require.False(t, p.Allow("1.2.3.4"))
}

func TestAllow_ClientsAreIndependent(t *testing.T) {
	t.Parallel()
	p := NewPerClient(60, 1)
	require.True(t, p.Allow("1.2.3.4"))
	require.False(t, p.Allow("1.2.3.4"))
	require.True(t, p.Allow("5.6.7.8"))
}
