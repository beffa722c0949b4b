package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRefreshTestMode(t *testing.T) {
	t.Cleanup(func() { RefreshTestMode() })

	t.Setenv(TestModeEnv, "true")
	require.True(t, RefreshTestMode())
	require.True(t, InTestMode())

	t.Setenv(TestModeEnv, "0")
	require.True(t, InTestMode(), "cached until refreshed")
	require.False(t, RefreshTestMode())

	t.Setenv(TestModeEnv, "maybe")
	require.False(t, RefreshTestMode())
}
