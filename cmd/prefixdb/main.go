package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/eigerco/prefixdb/pkg/kv"
	"github.com/eigerco/prefixdb/pkg/kv/mergeop"
	"github.com/eigerco/prefixdb/pkg/log"
)

const usage = `usage: prefixdb [flags] <command> [args]

commands:
  put <ns> <key> <value>
  get <ns> <key>
  rm <ns> <key>
  rmprefix <ns>
  rmrange <ns> <start> <end>
  add <ns> <key> <n>      merge n into an int64 counter
  scan [ns]
  size
`

var errUsage = errors.New("invalid usage")

type config struct {
	path     string
	engine   string
	kind     string
	file     string
	options  string
	create   bool
	logLevel string
}

func main() {
	var cfg config
	fs := flag.NewFlagSet("prefixdb", flag.ExitOnError)
	fs.StringVar(&cfg.path, "path", "", "store location (empty for in-memory engines)")
	fs.StringVar(&cfg.engine, "engine", "", "storage engine: pebble, leveldb, bolt or memory")
	fs.StringVar(&cfg.kind, "kind", "", "collection kind: sorted or hash")
	fs.StringVar(&cfg.file, "config", "", "JSON options file")
	fs.StringVar(&cfg.options, "options", "", "comma separated key=value options")
	fs.BoolVar(&cfg.create, "create", false, "create the store, removing previous contents")
	fs.StringVar(&cfg.logLevel, "log-level", "warn", "log level")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	level, err := log.ParseLogLevel(cfg.logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q: %v\n", cfg.logLevel, err)
		os.Exit(2)
	}
	log.Init(log.Options{LogLevel: level, Type: log.ConsoleLogger})

	if err := run(cfg, fs.Args(), os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fs.Usage()
		}
		log.Root.Fatal().Err(err).Msg("prefixdb failed")
	}
}

func loadOptions(cfg config) (kv.Options, error) {
	opts := kv.DefaultOptions()
	if cfg.file != "" {
		var err error
		if opts, err = kv.LoadOptions(cfg.file); err != nil {
			return opts, err
		}
	}
	opts, err := kv.ParseOptions(opts, cfg.options)
	if err != nil {
		return opts, err
	}
	if cfg.engine != "" {
		opts.Engine = cfg.engine
	}
	if cfg.kind != "" {
		opts.CollectionKind = cfg.kind
	}
	return opts, nil
}

func run(cfg config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	opts, err := loadOptions(cfg)
	if err != nil {
		return err
	}

	store, err := kv.Open(cfg.path, cfg.create, opts)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	return dispatch(store, args, out)
}

func dispatch(store *kv.Store, args []string, out io.Writer) error {
	cmd, args := args[0], args[1:]
	arity := map[string]int{
		"put": 3, "get": 2, "rm": 2, "rmprefix": 1, "rmrange": 3, "add": 3, "size": 0,
	}
	if n, ok := arity[cmd]; ok && len(args) != n {
		return fmt.Errorf("%w: %s takes %d arguments", errUsage, cmd, n)
	}

	switch cmd {
	case "get":
		value, err := store.Get(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", value)
		return nil
	case "scan":
		if len(args) > 1 {
			return fmt.Errorf("%w: scan takes at most 1 argument", errUsage)
		}
		return scan(store, args, out)
	case "size":
		size, err := store.EstimatedSize()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, size)
		return nil
	}

	txn := store.BeginTransaction()
	var err error
	switch cmd {
	case "put":
		err = txn.Set(args[0], args[1], []byte(args[2]))
	case "rm":
		err = txn.Remove(args[0], args[1])
	case "rmprefix":
		err = txn.RemoveByPrefix(args[0])
	case "rmrange":
		err = txn.RemoveRange(args[0], args[1], args[2])
	case "add":
		var n int64
		n, err = strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: add: %w", errUsage, err)
		}
		if err = store.SetMergeOperator(args[0], mergeop.Int64Array{}); err != nil {
			return err
		}
		err = txn.Merge(args[0], args[1], mergeop.EncodeInt64s(n))
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
	if err != nil {
		store.Rollback(txn)
		return err
	}
	log.Root.Debug().Str("command", cmd).Int("ops", txn.Len()).Msg("submitting")
	return store.SubmitSync(txn)
}

func scan(store *kv.Store, args []string, out io.Writer) error {
	if len(args) == 1 {
		it, err := store.PrefixIterator(args[0])
		if err != nil {
			return err
		}
		defer it.Close()
		for ok := it.SeekToFirst(); ok; ok = it.Next() {
			key, err := it.Key()
			if err != nil {
				return err
			}
			value, err := it.Value()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\t%s\n", key, value)
		}
		return it.Err()
	}

	it, err := store.WholeSpaceIterator()
	if err != nil {
		return err
	}
	defer it.Close()
	for ok := it.SeekToFirst(); ok; ok = it.Next() {
		prefix, key, err := it.RawKey()
		if err != nil {
			return err
		}
		value, err := it.Value()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\t%s\t%s\n", prefix, key, value)
	}
	return it.Err()
}
