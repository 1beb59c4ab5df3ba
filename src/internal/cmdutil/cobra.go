package cmdutil

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/replayfs/replayfs/src/internal/errors"
)

// PrintErrorStacks should be set to true if you want to print out a stack for
// errors that are returned by the run commands.
var PrintErrorStacks bool

// RunFixedArgs wraps a function in a function
// that checks its exact argument count.
func RunFixedArgs(numArgs int, run func(*cobra.Command, []string) error) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		if len(args) != numArgs {
			fmt.Printf("expected %d arguments, got %d\n\n", numArgs, len(args))
			cmd.Usage() //nolint:errcheck
		} else {
			if err := run(cmd, args); err != nil {
				ErrorAndExit("%v", err)
			}
		}
	}
}

var errorColor = color.New(color.FgRed)

// ErrorAndExit errors with the given format and args, and then exits.  The message is red when
// stderr is a terminal.
func ErrorAndExit(format string, args ...any) {
	if errString := strings.TrimSpace(fmt.Sprintf(format, args...)); errString != "" {
		errorColor.Fprintf(os.Stderr, "%s\n", errString) //nolint:errcheck
	}
	if len(args) > 0 && PrintErrorStacks {
		if err, ok := args[0].(error); ok {
			errors.ForEachStackFrame(err, func(frame errors.Frame) {
				fmt.Fprintf(os.Stderr, "%+v\n", frame)
			})
		}
	}
	os.Exit(1)
}

// CreateAlias returns a copy of cmd named name.  '{{alias}}' in cmd's Use is replaced with name
// and in its Example with the full invocation.  synonyms become the command's aliases.
func CreateAlias(cmd *cobra.Command, name string, synonyms ...string) *cobra.Command {
	alias := *cmd
	alias.Use = name
	if cmd.Use != "" {
		alias.Use = strings.ReplaceAll(cmd.Use, "{{alias}}", name)
	}
	alias.Example = strings.ReplaceAll(cmd.Example, "{{alias}}", os.Args[0]+" "+name)
	alias.Aliases = append([]string(nil), synonyms...)
	return &alias
}

// MergeCommands adds children to root in name order.  A child replaces any command root already
// has under the same name.
func MergeCommands(root *cobra.Command, children []*cobra.Command) {
	sorted := append([]*cobra.Command(nil), children...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name() < sorted[j].Name() })
	for _, child := range sorted {
		for _, existing := range root.Commands() {
			if existing.Name() == child.Name() {
				root.RemoveCommand(existing)
			}
		}
		root.AddCommand(child)
	}
}
