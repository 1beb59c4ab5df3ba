package replayenv

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/replayfs/replayfs/src/internal/cmdutil"
	"github.com/replayfs/replayfs/src/internal/filemap"
	"github.com/replayfs/replayfs/src/internal/pctx"
	"github.com/replayfs/replayfs/src/internal/replayerr"
)

func TestDefaults(t *testing.T) {
	c, err := ConfigFromOptions()
	require.NoError(t, err)
	require.Equal(t, BackendBolt, c.Backend)
	require.Equal(t, cmdutil.ByteSize(4096), c.PageSize)
	require.Equal(t, 1024, c.CacheSize)
	require.Equal(t, "info", c.LogLevel)
}

func TestPopulateFromEnv(t *testing.T) {
	t.Setenv("FILEMAP_BACKEND", "memory")
	t.Setenv("FILEMAP_MAX_FRAGMENTS", "64")
	c := NewConfiguration()
	require.NoError(t, cmdutil.Populate(c))
	require.Equal(t, BackendMemory, c.Backend)
	require.Equal(t, 64, c.MaxFragments)
}

func TestNewBackends(t *testing.T) {
	for name, opt := range map[string]ConfigOption{
		BackendMemory: WithMemoryBackend(),
		BackendBolt:   WithDBPath(filepath.Join(t.TempDir(), "filemap.db")),
	} {
		t.Run(name, func(t *testing.T) {
			ctx := pctx.TestContext(t)
			c, err := ConfigFromOptions(opt, WithNoSync(), WithMaxFragments(32))
			require.NoError(t, err)
			env, err := New(ctx, c)
			require.NoError(t, err)
			defer func() { require.NoError(t, env.Close()) }()
			require.Equal(t, name, env.Backend())
			if name == BackendBolt {
				require.NotEqual(t, uuid.Nil, env.StoreID())
			}

			f, err := env.Service().Init(ctx, filemap.FileIdentity{Inode: 1, Device: 1})
			require.NoError(t, err)
			require.NoError(t, f.Write(ctx, filemap.ProvenanceRecord{PID: 1}, 0, 10))
			res, err := f.Read(ctx, 0, 10)
			require.NoError(t, err)
			require.Equal(t, 1, res.Len())
			require.NoError(t, f.Destroy(ctx))
		})
	}
}

func TestNewUnknownBackend(t *testing.T) {
	c, err := ConfigFromOptions(func(c *Configuration) { c.Backend = "tape" })
	require.NoError(t, err)
	_, err = New(pctx.TestContext(t), c)
	require.True(t, replayerr.IsInvalid(err), "got %v", err)
}
