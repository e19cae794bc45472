// Command osintgraph correlates probe findings in one batch: it imports
// findings files, optionally starting from a saved state, and prints or
// writes the correlation result.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scrypster/osintgraph/internal/attribution"
	"github.com/scrypster/osintgraph/internal/config"
	"github.com/scrypster/osintgraph/internal/connections"
	"github.com/scrypster/osintgraph/internal/engine"
	"github.com/scrypster/osintgraph/internal/importer"
	"github.com/scrypster/osintgraph/internal/notify"
	"github.com/scrypster/osintgraph/internal/storage"
	"github.com/scrypster/osintgraph/internal/storage/file"
	"github.com/scrypster/osintgraph/pkg/types"
)

// errUsage marks invalid invocations; main exits with status 2 for them.
var errUsage = errors.New("usage error")

// options are the parsed command-line flags.
type options struct {
	format  string
	output  string
	graph   bool
	summary bool
	restore string
	save    string
	list    bool
	paths   []string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		log.Fatalf("osintgraph: %v", err)
	}
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("osintgraph", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: osintgraph [flags] <findings file|dir|->...")
		fs.PrintDefaults()
	}

	opts := &options{}
	fs.StringVar(&opts.format, "format", "", "Findings format (json, jsonl, yaml); detected from the extension by default")
	fs.StringVar(&opts.output, "o", "", "Write the output to this file instead of stdout")
	fs.BoolVar(&opts.graph, "graph", false, "Output the node-link graph export instead of the result")
	fs.BoolVar(&opts.summary, "summary", false, "Print only the result summary")
	fs.StringVar(&opts.restore, "restore", "", "Restore this saved snapshot before importing")
	fs.StringVar(&opts.save, "save", "", "Save the final state as this snapshot")
	fs.BoolVar(&opts.list, "list", false, "List saved snapshots and exit")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	opts.paths = fs.Args()

	if opts.graph && opts.summary {
		return nil, fmt.Errorf("%w: -graph and -summary are mutually exclusive", errUsage)
	}
	if !opts.list && len(opts.paths) == 0 && opts.restore == "" {
		fs.Usage()
		return nil, fmt.Errorf("%w: no findings given", errUsage)
	}
	return opts, nil
}

// run executes one invocation. "-" as a path reads findings from stdin.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var store storage.SnapshotStore
	if opts.list || opts.restore != "" || opts.save != "" {
		store, err = connections.Open(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	if opts.list {
		return listSnapshots(ctx, store, stdout)
	}

	eng, err := engine.NewCorrelationEngine(engine.Config{Correlation: cfg.Correlation})
	if err != nil {
		return err
	}
	if opts.restore != "" {
		if err := eng.LoadFrom(ctx, store, opts.restore); err != nil {
			return fmt.Errorf("restore %q: %w", opts.restore, err)
		}
	}

	findings, err := loadFindings(ctx, opts, stdin)
	if err != nil {
		return err
	}

	result := eng.Result()
	if len(findings) > 0 {
		result = eng.ProcessFindings(findings)
	}

	if opts.save != "" {
		snap := eng.Snapshot()
		snap.SavedBy = attribution.DetectAnalyst()
		if err := store.Save(ctx, opts.save, snap); err != nil {
			return fmt.Errorf("save %q: %w", opts.save, err)
		}
		log.Printf("osintgraph: saved snapshot %q", opts.save)
		if err := notify.NewEventWriter(cfg.Storage.DataPath).Notify(notify.EventSnapshotSaved, opts.save); err != nil {
			log.Printf("osintgraph: WARNING: %v", err)
		}
	}

	var out interface{} = result
	switch {
	case opts.graph:
		out = eng.Graph().Export()
	case opts.summary:
		return writeOutput(opts.output, stdout, []byte(result.Summary+"\n"))
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return writeOutput(opts.output, stdout, append(data, '\n'))
}

// loadFindings reads every path in order. A forced format applies to files
// and stdin; directories always detect formats per file.
func loadFindings(ctx context.Context, opts *options, stdin io.Reader) ([]types.Finding, error) {
	var forced importer.Format
	if opts.format != "" {
		f, err := importer.ParseFormat(opts.format)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errUsage, err)
		}
		forced = f
	}

	var all []types.Finding
	for _, path := range opts.paths {
		var (
			findings []types.Finding
			err      error
		)
		switch {
		case path == "-":
			format := forced
			if format == "" {
				format = importer.FormatJSON
			}
			findings, err = importer.ReadFindings(stdin, format)
		case forced != "" && !isDir(path):
			findings, err = importer.LoadFileAs(path, forced)
		default:
			findings, err = importer.LoadPaths(ctx, []string{path})
		}
		if err != nil {
			return nil, err
		}
		all = append(all, findings...)
	}
	return all, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func listSnapshots(ctx context.Context, store storage.SnapshotStore, stdout io.Writer) error {
	infos, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(stdout, "No snapshots found")
		return nil
	}
	for _, info := range infos {
		fmt.Fprintf(stdout, "%s\t%s\t%d bytes\n", info.Name, info.SavedAt.Format(time.RFC3339), info.SizeBytes)
	}
	return nil
}

// writeOutput writes data to path atomically, or to stdout when path is
// empty.
func writeOutput(path string, stdout io.Writer, data []byte) error {
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	return file.WriteFileAtomic(path, data)
}
