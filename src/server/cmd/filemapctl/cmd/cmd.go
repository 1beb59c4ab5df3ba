// Package cmd builds the filemapctl command tree.
package cmd

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/replayfs/replayfs/src/internal/cmdutil"
	"github.com/replayfs/replayfs/src/internal/log"
	"github.com/replayfs/replayfs/src/internal/pctx"
	filemapcmds "github.com/replayfs/replayfs/src/server/filemap/cmds"
)

// FilemapctlCmd creates a cobra.Command which records and explains file provenance (it
// implements the filemapctl binary).
func FilemapctlCmd() *cobra.Command {
	var (
		cfg     filemapcmds.Config
		verbose    bool
		verboseFor time.Duration
		metrics    bool
	)
	rootCmd := &cobra.Command{
		Use: "filemapctl",
		Long: `Record and explain which traced events wrote the bytes of a file.

Environment variables:
  FILEMAP_DB=<path>, the filemap database (overridden by --db).
  FILEMAP_BACKEND=bolt|memory, where filemap data lives.
  FILEMAP_PAGE_SIZE, FILEMAP_MAX_PAGES, FILEMAP_CACHE_SIZE, FILEMAP_MAX_FRAGMENTS tune storage.
  FILEMAP_LOG_LEVEL, FILEMAP_LOG_FORMAT control logging.
`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			conf, err := cfg.Configuration()
			if err != nil {
				return err
			}
			level := conf.LogLevel
			if verbose {
				level = "debug"
			}
			cmdutil.PrintErrorStacks = verbose
			if err := log.InitLogger(level, conf.LogFormat); err != nil {
				return err
			}
			if verboseFor > 0 && !verbose {
				log.SetLevelFor(zapcore.DebugLevel, verboseFor)
			}
			// The context was built before the logger existed.
			cmd.SetContext(pctx.Child(log.AddLogger(cmd.Context()), cmd.Name()))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !metrics {
				return nil
			}
			return filemapcmds.WriteMetrics(os.Stderr, prometheus.DefaultGatherer, "replayfs_")
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfg.DBPath, "db", "", "Path of the filemap database (default: $FILEMAP_DB).")
	rootCmd.PersistentFlags().StringVar(&cfg.ConfigPath, "config", "", "YAML file of FILEMAP_* settings.")
	rootCmd.PersistentFlags().BoolVar(&metrics, "metrics", false, "Print filemap metrics to stderr when the command finishes.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Output verbose logs and error stacks.")
	rootCmd.PersistentFlags().DurationVar(&verboseFor, "verbose-for", 0, "Output debug logs for this long, then return to the configured level.")

	cmdutil.MergeCommands(rootCmd, filemapcmds.Cmds(&cfg))
	return rootCmd
}
