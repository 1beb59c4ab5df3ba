package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestCommandTree(t *testing.T) {
	root := FilemapctlCmd()
	for _, path := range [][]string{{"identity"}, {"record"}, {"provenance"}, {"blame"}, {"stat"}, {"dump"}, {"extents"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, "%v", path)
		require.True(t, cmd.Runnable(), "%v", path)
	}
	for _, flag := range []string{"db", "config", "metrics", "verbose", "verbose-for"} {
		require.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestVerboseFor(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })
	t.Setenv("FILEMAP_LOG_LEVEL", "info")
	path := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))

	root := FilemapctlCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--verbose-for", "1h", "identity", path})
	require.NoError(t, root.Execute())
	require.NotEmpty(t, out.String())
	require.True(t, zap.L().Core().Enabled(zapcore.DebugLevel), "debug logging should be on for the window")
}
