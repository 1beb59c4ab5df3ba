package main

import (
	"os"

	"github.com/spf13/pflag"
	_ "go.uber.org/automaxprocs"

	"github.com/replayfs/replayfs/src/internal/cmdutil"
	"github.com/replayfs/replayfs/src/internal/pctx"
	"github.com/replayfs/replayfs/src/server/cmd/filemapctl/cmd"
)

func main() {
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	ctx := pctx.Background("filemapctl")
	if err := cmd.FilemapctlCmd().ExecuteContext(ctx); err != nil {
		cmdutil.ErrorAndExit("%v", err)
	}
}
