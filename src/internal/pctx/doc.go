// Package pctx creates the contexts used across replayfs.
//
// A context is what carries the logger (see package log).  Binaries start from Background and
// tests from TestContext; everything else is derived from one of those.  context.WithTimeout,
// context.WithCancel and friends keep the logger of their parent.
//
// Use Child to give a long-running operation its own logger name and fields.  Names nest with
// dots, so a read issued by the CLI logs as "filemapctl.provenance.filemap.read".  The
// convention is for the parent to name its child:
//
//	fm, err := svc.Init(pctx.Child(ctx, "bootstrap"), id)
package pctx
