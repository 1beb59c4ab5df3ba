package cmds

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/replayfs/replayfs/src/internal/cmdutil"
	"github.com/replayfs/replayfs/src/internal/filemap"
	"github.com/replayfs/replayfs/src/internal/pctx"
	"github.com/replayfs/replayfs/src/server/filemap/pretty"
)

type fixture struct {
	t    *testing.T
	cfg  *Config
	file string
}

func newFixture(t *testing.T) *fixture {
	dir := t.TempDir()
	file := filepath.Join(dir, "traced")
	require.NoError(t, os.WriteFile(file, make([]byte, 100), 0o600))
	conf := filepath.Join(dir, "filemap.yaml")
	require.NoError(t, os.WriteFile(conf, []byte("FILEMAP_NO_SYNC: true\nFILEMAP_LOG_LEVEL: debug\n"), 0o600))
	return &fixture{
		t:    t,
		cfg:  &Config{DBPath: filepath.Join(dir, "filemap.db"), ConfigPath: conf},
		file: file,
	}
}

// run executes a fresh command tree, so flag values never leak between invocations.
func (f *fixture) run(args ...string) string {
	root := &cobra.Command{Use: "filemapctl"}
	cmdutil.MergeCommands(root, Cmds(f.cfg))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	require.NoError(f.t, root.ExecuteContext(pctx.TestContext(f.t)))
	return out.String()
}

func TestConfiguration(t *testing.T) {
	f := newFixture(t)
	conf, err := f.cfg.Configuration()
	require.NoError(t, err)
	require.Equal(t, f.cfg.DBPath, conf.DBPath)
	require.True(t, conf.NoSync)
	require.Equal(t, "debug", conf.LogLevel)
}

func TestIdentity(t *testing.T) {
	f := newFixture(t)
	id, err := filemap.IdentityOf(f.file)
	require.NoError(t, err)
	require.Equal(t, id.String()+"\n", f.run("identity", f.file))

	var got filemap.FileIdentity
	require.NoError(t, json.Unmarshal([]byte(f.run("identity", "--raw", f.file)), &got))
	require.Equal(t, id, got)
}

func TestRecordAndExplain(t *testing.T) {
	f := newFixture(t)
	f.run("record", f.file, "--pid", "5", "--syscall", "1", "--unique-id", "50", "--size", "10", "-q")
	out := f.run("record", f.file, "--offset", "10", "--pid", "6", "--syscall", "1", "--unique-id", "60")
	require.Contains(t, out, "recorded [10, 100)")

	var res filemap.ReadResult
	require.NoError(t, json.Unmarshal([]byte(f.run("provenance", f.file, "--size", "20", "--raw")), &res))
	require.Equal(t, []filemap.ReconstructedEntry{
		{Record: filemap.ProvenanceRecord{UniqueID: 50, PID: 5, Syscall: 1, Kind: 'w'}, SourceOffset: 0, Size: 10},
		{Record: filemap.ProvenanceRecord{UniqueID: 60, PID: 6, Syscall: 1, Kind: 'w'}, SourceOffset: 10, Size: 10},
	}, res.Entries)

	table := f.run("blame", f.file, "--offset", "7", "--size", "6")
	lines := strings.Split(strings.TrimSpace(table), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "RANGE"))
	require.True(t, strings.HasPrefix(lines[1], "[7, 10)"), lines[1])
	require.True(t, strings.HasPrefix(lines[2], "[10, 13)"), lines[2])

	var extents []filemap.Extent
	require.NoError(t, json.Unmarshal([]byte(f.run("dump", f.file, "--raw")), &extents))
	require.Len(t, extents, 2)
	require.Equal(t, int64(90), extents[1].Size)

	var st pretty.FileStat
	require.NoError(t, json.Unmarshal([]byte(f.run("stat", f.file, "--raw")), &st))
	require.True(t, st.Tracked)
	require.Equal(t, 2, st.Extents)
	require.Equal(t, int64(100), st.Bytes)
	require.Equal(t, uint64(1), st.Pages.Allocated)
	require.NotEmpty(t, st.StoreID)
}

func TestStatUntracked(t *testing.T) {
	f := newFixture(t)
	out := f.run("stat", f.file)
	require.Contains(t, out, "Range tree: none")
	require.Contains(t, out, "Store: bolt")
}

func TestWriteMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "replayfs_test_total", Help: "test"})
	reg.MustRegister(c, prometheus.NewCounter(prometheus.CounterOpts{Name: "other_total", Help: "other"}))
	c.Add(3)
	var buf bytes.Buffer
	require.NoError(t, WriteMetrics(&buf, reg, "replayfs_"))
	require.Contains(t, buf.String(), "replayfs_test_total 3")
	require.NotContains(t, buf.String(), "other_total")
}
