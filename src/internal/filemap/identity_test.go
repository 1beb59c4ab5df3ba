//go:build unix

package filemap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentityOf(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	require.NoError(t, os.WriteFile(a, []byte("x"), 0o600))
	b := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(b, []byte("y"), 0o600))

	idA, err := IdentityOf(a)
	require.NoError(t, err)
	idB, err := IdentityOf(b)
	require.NoError(t, err)
	require.NotEqual(t, idA, idB)
	require.Equal(t, idA.Device, idB.Device)

	link := filepath.Join(dir, "link")
	require.NoError(t, os.Link(a, link))
	idLink, err := IdentityOf(link)
	require.NoError(t, err)
	require.Equal(t, idA, idLink, "hard links share an identity")

	f, err := os.Open(a)
	require.NoError(t, err)
	defer f.Close()
	idF, err := IdentityOfFile(f)
	require.NoError(t, err)
	require.Equal(t, idA, idF)

	_, err = IdentityOf(filepath.Join(dir, "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
