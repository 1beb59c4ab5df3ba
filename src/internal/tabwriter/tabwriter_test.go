package tabwriter

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAligns(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, "A\tBB\t\n")
	fmt.Fprintf(w, "%s\t%s\t\n", "long value", "x")
	require.NoError(t, w.Flush())
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, strings.Index(lines[1], "x"), strings.Index(lines[0], "BB"))
}

func TestRepeatsHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewStreamingWriter(&buf, 3, "H\t\n")
	for i := 0; i < 4; i++ {
		fmt.Fprintf(w, "%d\t\n", i)
	}
	require.NoError(t, w.Flush())
	require.Equal(t, 2, strings.Count(buf.String(), "H"))
}
