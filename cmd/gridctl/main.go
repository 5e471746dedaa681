// Command gridctl inspects gridgo datasets.
//
// Usage:
//
//	gridctl dump   [-config gridctl.yaml] <path>
//	gridctl verify [-config gridctl.yaml] <path>
//
// dump prints the dataset's metadata tree: dimensions, variables, user
// types and attributes with their values. verify checks the structural
// invariants of every name index and the manifest, exiting 2 on failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hupe1980/gridgo"
)

const (
	exitOK     = 0
	exitUsage  = 1
	exitFailed = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		usage()
		return exitUsage
	}
	cmd, rest := args[0], args[1:]

	fs := flag.NewFlagSet("gridctl "+cmd, flag.ContinueOnError)
	configPath := fs.String("config", "", "path to gridctl config file")
	if err := fs.Parse(rest); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		usage()
		return exitUsage
	}
	path := fs.Arg(0)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gridctl: %v\n", err)
		return exitUsage
	}

	switch cmd {
	case "dump":
		return withDataset(cfg, path, func(ctx context.Context, ds *gridgo.Dataset) int {
			if err := dump(ctx, os.Stdout, ds); err != nil {
				fmt.Fprintf(os.Stderr, "gridctl: dump: %v\n", err)
				return exitFailed
			}
			return exitOK
		})
	case "verify":
		return withDataset(cfg, path, func(ctx context.Context, ds *gridgo.Dataset) int {
			if err := ds.Verify(); err != nil {
				fmt.Fprintf(os.Stderr, "gridctl: verify: %v\n", err)
				return exitFailed
			}
			fmt.Println("ok")
			return exitOK
		})
	default:
		usage()
		return exitUsage
	}
}

func withDataset(cfg *Config, path string, fn func(context.Context, *gridgo.Dataset) int) int {
	ctx := context.Background()
	if timeout := cfg.openTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	store, err := cfg.openStore(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gridctl: open store: %v\n", err)
		return exitFailed
	}

	ds, err := gridgo.Open(ctx, store, gridgo.ReadOnly(), gridgo.WithLogger(cfg.logger()))
	if err != nil {
		_ = store.Close()
		fmt.Fprintf(os.Stderr, "gridctl: open dataset: %v\n", err)
		return exitFailed
	}
	defer ds.Close(ctx)

	return fn(ctx, ds)
}

// openTimeout returns the configured store open timeout, zero when unset.
func (cfg *Config) openTimeout() time.Duration {
	if cfg.Store.Type != "badger" {
		return 0
	}
	opts, err := cfg.badgerOptions()
	if err != nil {
		return 0
	}
	return opts.OpenTimeout
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  gridctl dump   [-config gridctl.yaml] <path>
  gridctl verify [-config gridctl.yaml] <path>`)
}
