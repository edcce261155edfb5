package util_test

import (
	"os/user"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/babylonchain/btc-bridge/util"
)

func TestCleanAndExpandPath(t *testing.T) {
	t.Setenv("BRIDGE_TEST_DIR", "/tmp/bridge")
	require.Equal(t, "", util.CleanAndExpandPath(""))
	require.Equal(t, "/tmp/bridge/data", util.CleanAndExpandPath("$BRIDGE_TEST_DIR/./data/"))

	u, err := user.Current()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(u.HomeDir, "bridge"), util.CleanAndExpandPath("~/bridge"))
}

func TestMakeDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.False(t, util.FileExists(dir))
	require.NoError(t, util.MakeDirectory(dir))
	require.True(t, util.FileExists(dir))
	// creating it again is fine
	require.NoError(t, util.MakeDirectory(dir))
}
