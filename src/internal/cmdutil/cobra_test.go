package cmdutil

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestMergeAliases(t *testing.T) {
	root := &cobra.Command{Use: "filemapctl"}
	stat := CreateAlias(&cobra.Command{Use: "{{alias}} <path>", Short: "stat", Example: "\t{{alias}} /tmp/out"}, "stat")
	dump := CreateAlias(&cobra.Command{Use: "{{alias}} <path>", Short: "dump"}, "dump", "extents")
	record := CreateAlias(&cobra.Command{Short: "record"}, "record")
	MergeCommands(root, []*cobra.Command{stat, dump, record})

	require.Equal(t, []string{"dump", "record", "stat"}, names(root.Commands()))
	cmd, _, err := root.Find([]string{"stat"})
	require.NoError(t, err)
	require.Equal(t, "stat <path>", cmd.Use)
	require.Contains(t, cmd.Example, " stat /tmp/out")
	cmd, _, err = root.Find([]string{"extents"})
	require.NoError(t, err)
	require.Equal(t, "dump", cmd.Short)
	cmd, _, err = root.Find([]string{"record"})
	require.NoError(t, err)
	require.Equal(t, "record", cmd.Use)
}

func TestMergeReplacesSameName(t *testing.T) {
	root := &cobra.Command{Use: "filemapctl"}
	MergeCommands(root, []*cobra.Command{CreateAlias(&cobra.Command{Short: "old"}, "stat")})
	MergeCommands(root, []*cobra.Command{CreateAlias(&cobra.Command{Short: "new"}, "stat")})
	require.Len(t, root.Commands(), 1)
	require.Equal(t, "new", root.Commands()[0].Short)
}

func names(cmds []*cobra.Command) []string {
	var out []string
	for _, c := range cmds {
		out = append(out, c.Name())
	}
	return out
}
