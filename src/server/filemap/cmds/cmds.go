// Package cmds implements filemapctl commands.
package cmds

import (
	"context"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/replayfs/replayfs/src/internal/cmdutil"
	"github.com/replayfs/replayfs/src/internal/errors"
	"github.com/replayfs/replayfs/src/internal/filemap"
	"github.com/replayfs/replayfs/src/internal/replayenv"
	"github.com/replayfs/replayfs/src/internal/replayerr"
	"github.com/replayfs/replayfs/src/internal/tabwriter"
	"github.com/replayfs/replayfs/src/server/filemap/pretty"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config is the state shared by every command, filled in from global flags.
type Config struct {
	// DBPath overrides the configured database path when set.
	DBPath string
	// ConfigPath is a YAML file of FILEMAP_* settings.
	ConfigPath string
}

// Configuration reads the environment configuration, applying the config file and flags.
func (c *Config) Configuration() (*replayenv.Configuration, error) {
	conf := replayenv.NewConfiguration()
	var decoders []cmdutil.Decoder
	if c.ConfigPath != "" {
		decoders = append(decoders, cmdutil.YAMLDecoder{Path: c.ConfigPath})
	}
	if err := cmdutil.Populate(conf, decoders...); err != nil {
		return nil, errors.Wrap(err, "read configuration")
	}
	if c.DBPath != "" {
		replayenv.ApplyOptions(conf, replayenv.WithDBPath(c.DBPath))
	}
	return conf, nil
}

// Env opens the configured environment.
func (c *Config) Env(ctx context.Context) (*replayenv.Env, error) {
	conf, err := c.Configuration()
	if err != nil {
		return nil, err
	}
	return replayenv.New(ctx, conf)
}

type envCloser struct{ env *replayenv.Env }

func (c envCloser) Close() error { return c.env.Close() }

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.EnsureStack(enc.Encode(v))
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, errors.EnsureStack(err)
	}
	return info.Size(), nil
}

// defaultSize is the size of a command's range: the flag if given, else the rest of the file.
func defaultSize(path string, offset int64, flag *cmdutil.ByteSizeFlag) (int64, error) {
	if flag.Bytes() > 0 {
		return flag.Bytes(), nil
	}
	size, err := fileSize(path)
	if err != nil {
		return 0, err
	}
	if size <= offset {
		return 0, replayerr.Invalidf("offset %d is at or past the end of %s (%d bytes); pass --size", offset, path, size)
	}
	return size - offset, nil
}

// Cmds returns a slice containing filemap commands.
func Cmds(cfg *Config) []*cobra.Command {
	var commands []*cobra.Command

	var raw bool
	rawFlag := func(cmd *cobra.Command) {
		cmd.Flags().BoolVar(&raw, "raw", false, "Disable pretty printing; print raw JSON.")
	}

	identity := &cobra.Command{
		Use:   "{{alias}} <path>",
		Short: "Print the identity a file is tracked under.",
		Long:  "Print the device and inode a file is tracked under.  Hard links share an identity.",
		Run: cmdutil.RunFixedArgs(1, func(cmd *cobra.Command, args []string) error {
			id, err := filemap.IdentityOf(args[0])
			if err != nil {
				return err
			}
			if raw {
				return encodeJSON(cmd.OutOrStdout(), id)
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		}),
	}
	rawFlag(identity)
	commands = append(commands, cmdutil.CreateAlias(identity, "identity"))

	var (
		offset   int64
		size     cmdutil.ByteSizeFlag
		rec      filemap.ProvenanceRecord
		kind     string
		quietRec bool
	)
	record := &cobra.Command{
		Use:   "{{alias}} <path>",
		Short: "Record the provenance of a range of a file.",
		Long: "Record that a traced event produced a range of a file.  The range defaults to " +
			"everything from --offset to the end of the file.  Provenance previously recorded " +
			"for the range is replaced.",
		Example: "\t{{alias}} /tmp/out --offset 4096 --size 1KiB --pid 42 --syscall 1 --unique-id 7",
		Run: cmdutil.RunFixedArgs(1, func(cmd *cobra.Command, args []string) (retErr error) {
			if len(kind) != 1 {
				return replayerr.Invalidf("--kind must be a single character, got %q", kind)
			}
			rec.Kind = kind[0]
			n, err := defaultSize(args[0], offset, &size)
			if err != nil {
				return err
			}
			id, err := filemap.IdentityOf(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			env, err := cfg.Env(ctx)
			if err != nil {
				return err
			}
			defer errors.Close(&retErr, envCloser{env}, "close filemap environment")
			f, err := env.Service().Init(ctx, id)
			if err != nil {
				return err
			}
			defer func() {
				if err := f.Destroy(ctx); err != nil && retErr == nil {
					retErr = err
				}
			}()
			if err := f.Write(ctx, rec, offset, n); err != nil {
				return err
			}
			if !quietRec {
				fmt.Fprintf(cmd.OutOrStdout(), "recorded [%d, %d) of %s (%v) as pid %d syscall %d\n",
					offset, offset+n, args[0], id, rec.PID, rec.Syscall)
			}
			return nil
		}),
	}
	record.Flags().Int64Var(&offset, "offset", 0, "Offset of the first byte written.")
	record.Flags().Var(&size, "size", "Number of bytes written, like 512 or 4KiB (default: to the end of the file).")
	record.Flags().Int32Var(&rec.PID, "pid", 0, "Process that wrote the bytes.")
	record.Flags().Int64Var(&rec.Syscall, "syscall", 0, "Number of the system call that wrote the bytes.")
	record.Flags().Int64Var(&rec.UniqueID, "unique-id", 0, "Unique id of the traced event.")
	record.Flags().StringVar(&kind, "kind", string(filemap.KindWrite), "Mutation kind, a single character.")
	record.Flags().BoolVarP(&quietRec, "quiet", "q", false, "Don't print a confirmation.")
	commands = append(commands, cmdutil.CreateAlias(record, "record"))

	var (
		readOffset int64
		readSize   cmdutil.ByteSizeFlag
	)
	provenance := &cobra.Command{
		Use:   "{{alias}} <path>",
		Short: "Print which traced events wrote a range of a file.",
		Long: "Print, in file order, which traced events wrote each byte of a range.  The command " +
			"fails if any byte of the range was never recorded.",
		Example: "\t{{alias}} /tmp/out --offset 4096 --size 1KiB",
		Run: cmdutil.RunFixedArgs(1, func(cmd *cobra.Command, args []string) (retErr error) {
			n, err := defaultSize(args[0], readOffset, &readSize)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			f, closeFile, err := openTracked(ctx, cfg, args[0])
			if err != nil {
				return err
			}
			defer closeFile(&retErr)
			res, err := f.Read(ctx, readOffset, n)
			if err != nil {
				return err
			}
			if raw {
				return encodeJSON(cmd.OutOrStdout(), res)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), pretty.FragmentHeader)
			pretty.PrintReadResult(w, readOffset, res)
			return w.Flush()
		}),
	}
	provenance.Flags().Int64Var(&readOffset, "offset", 0, "Offset of the first byte to explain.")
	provenance.Flags().Var(&readSize, "size", "Number of bytes to explain (default: to the end of the file).")
	rawFlag(provenance)
	commands = append(commands, cmdutil.CreateAlias(provenance, "provenance", "blame"))

	stat := &cobra.Command{
		Use:   "{{alias}} <path>",
		Short: "Print whether a file is tracked and what the store holds for it.",
		Run: cmdutil.RunFixedArgs(1, func(cmd *cobra.Command, args []string) (retErr error) {
			ctx := cmd.Context()
			id, err := filemap.IdentityOf(args[0])
			if err != nil {
				return err
			}
			env, err := cfg.Env(ctx)
			if err != nil {
				return err
			}
			defer errors.Close(&retErr, envCloser{env}, "close filemap environment")
			s := &pretty.FileStat{
				Path:     args[0],
				Identity: id,
				Backend:  env.Backend(),
				PageSize: env.Allocator().PageSize(),
			}
			if env.Backend() == replayenv.BackendBolt {
				s.StoreID = env.StoreID().String()
			}
			if s.Pages, err = env.Allocator().Stats(ctx); err != nil {
				return err
			}
			loc, found, err := env.Service().Lookup(ctx, id)
			if err != nil {
				return err
			}
			if found {
				s.Tracked, s.Location = true, loc
				f, err := env.Service().Init(ctx, id)
				if err != nil {
					return err
				}
				extents, err := f.Extents(ctx)
				if dErr := f.Destroy(ctx); err == nil {
					err = dErr
				}
				if err != nil {
					return err
				}
				s.Extents = len(extents)
				for _, e := range extents {
					s.Bytes += e.Size
				}
			}
			if raw {
				return encodeJSON(cmd.OutOrStdout(), s)
			}
			pretty.PrintFileStat(cmd.OutOrStdout(), s)
			return nil
		}),
	}
	rawFlag(stat)
	commands = append(commands, cmdutil.CreateAlias(stat, "stat"))

	dump := &cobra.Command{
		Use:   "{{alias}} <path>",
		Short: "List every range recorded for a file.",
		Run: cmdutil.RunFixedArgs(1, func(cmd *cobra.Command, args []string) (retErr error) {
			ctx := cmd.Context()
			f, closeFile, err := openTracked(ctx, cfg, args[0])
			if err != nil {
				return err
			}
			defer closeFile(&retErr)
			extents, err := f.Extents(ctx)
			if err != nil {
				return err
			}
			if raw {
				return encodeJSON(cmd.OutOrStdout(), extents)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), pretty.ExtentHeader)
			for _, e := range extents {
				pretty.PrintExtent(w, e)
			}
			return w.Flush()
		}),
	}
	rawFlag(dump)
	commands = append(commands, cmdutil.CreateAlias(dump, "dump", "extents"))

	return commands
}

// openTracked attaches to the filemap of an already tracked file.  It never starts tracking a
// file.  The returned func releases the filemap and the environment.
func openTracked(ctx context.Context, cfg *Config, path string) (_ *filemap.Filemap, _ func(*error), retErr error) {
	id, err := filemap.IdentityOf(path)
	if err != nil {
		return nil, nil, err
	}
	env, err := cfg.Env(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if retErr != nil {
			errors.Close(&retErr, envCloser{env}, "close filemap environment")
		}
	}()
	if _, found, err := env.Service().Lookup(ctx, id); err != nil {
		return nil, nil, err
	} else if !found {
		return nil, nil, replayerr.NotFoundf("no provenance recorded for %s (%v)", path, id)
	}
	f, err := env.Service().Init(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return f, func(retErr *error) {
		if err := f.Destroy(ctx); err != nil {
			*retErr = errors.Join(*retErr, err)
		}
		errors.Close(retErr, envCloser{env}, "close filemap environment")
	}, nil
}
