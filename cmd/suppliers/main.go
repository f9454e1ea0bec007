package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"suppliers/internal"
	"suppliers/internal/config"
	"suppliers/internal/connectors"
	bqconnector "suppliers/internal/connectors/bigquery"
	gcsconnector "suppliers/internal/connectors/gcs"
	"suppliers/internal/pipeline"
	"suppliers/internal/storage"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		in := pipeline.InputFromConfig(cfg)
		fs.StringVar(&in.Primary, "primary", in.Primary, "primary feed path or gs:// URI")
		fs.StringVar(&in.Auxiliary, "aux", in.Auxiliary, "auxiliary feed path or gs:// URI (.csv|.xlsx)")
		fs.StringVar(&in.FlatOutput, "flat", in.FlatOutput, "flat output path, directory (trailing /) or gs:// URI")
		fs.StringVar(&in.XLSXOutput, "xlsx", in.XLSXOutput, "optional xlsx output path")
		sink := fs.String("sink", cfg.TabularSink, "sqlite|bigquery|none")
		_ = fs.Parse(os.Args[2:])

		opts := []pipeline.Option{}
		tabular, err := makeTabularSink(ctx, cfg, db, *sink)
		must(err)
		if tabular != nil {
			opts = append(opts, pipeline.WithTabularSink(tabular))
		}
		if needsObjectStore(cfg.GCSBucket, in.Primary, in.Auxiliary, in.FlatOutput, in.XLSXOutput) {
			store, err := gcsconnector.NewStore(ctx, cfg)
			must(err)
			opts = append(opts, pipeline.WithObjectStore(store))
		}

		processor := pipeline.NewProcessingService(db, cfg, log.Logger, opts...)
		res, err := processor.Run(ctx, in)
		must(err)
		fmt.Printf("run done trace=%s enriched=%d failed=%d sinks_failed=%d\n", res.TraceID, res.Enriched, len(res.Failures), len(res.SinkErrors))
		must(res.Err())
	case "export:csv", "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output path or gs:// URI")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}
		table, err := db.TableSink(cfg.TableName)
		must(err)
		stored, err := table.ListRows(ctx)
		must(err)
		if len(stored) == 0 {
			must(fmt.Errorf("no rows in table %s", cfg.TableName))
		}
		rows := make([]internal.FlatRow, 0, len(stored))
		for _, row := range stored {
			rows = append(rows, pipeline.FlatFromTabular(row))
		}

		target := *out
		if cmd == "export:csv" {
			target = pipeline.ShardPath(target)
		}
		local := target
		var store connectors.ObjectStore
		if connectors.IsObjectURI(target) {
			s, err := gcsconnector.NewStore(ctx, cfg)
			must(err)
			store = s
			local = filepath.Join(cfg.OutputDir, ".staging", "export", filepath.Base(target))
		}
		if cmd == "export:csv" {
			must(pipeline.ExportRowsToCSV(rows, local, cfg.FlatEscape))
		} else {
			must(pipeline.ExportRowsToXLSX(rows, local))
		}
		must(pipeline.PublishOutput(ctx, store, local, target))
		fmt.Printf("exported %d rows to %s\n", len(rows), target)
	case "gcs:upload":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		bucket := fs.String("bucket", cfg.GCSBucket, "target bucket")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*bucket) == "" || fs.NArg() == 0 {
			must(fmt.Errorf("--bucket and at least one file are required"))
		}
		store, err := gcsconnector.NewStore(ctx, cfg)
		must(err)
		for _, arg := range fs.Args() {
			local, object, ok := strings.Cut(arg, "=")
			if !ok {
				object = filepath.Base(local)
			}
			target := "gs://" + *bucket + "/" + object
			must(pipeline.PublishOutput(ctx, store, local, target))
			fmt.Printf("uploaded %s to %s\n", local, target)
		}
	case "runs:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "max runs")
		_ = fs.Parse(os.Args[2:])
		runs, err := db.ListRuns(*limit)
		must(err)
		for _, r := range runs {
			fmt.Printf("%d\t%s\t%s\tenriched=%d failed=%d sink_failures=%d total_ms=%.0f\n",
				r.ID, r.CreatedAt, r.TraceID, r.Counts["enriched"], r.Counts["failed"], r.Counts["sinkFailures"], r.Timings["totalMs"])
		}
	default:
		usage()
		os.Exit(1)
	}
}

func makeTabularSink(ctx context.Context, cfg config.Config, db *storage.DB, kind string) (connectors.TabularSink, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "sqlite":
		return db.TableSink(cfg.TableName)
	case "bigquery":
		return bqconnector.NewSink(ctx, cfg)
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported tabular sink: %s", kind)
	}
}

func needsObjectStore(bucket string, locations ...string) bool {
	if strings.TrimSpace(bucket) != "" {
		return true
	}
	for _, l := range locations {
		if connectors.IsObjectURI(l) {
			return true
		}
	}
	return false
}

func usage() {
	fmt.Println("usage: suppliers <command>")
	fmt.Println("commands:")
	fmt.Println("  run [--primary=...] [--aux=...] [--flat=...] [--xlsx=...] [--sink=sqlite|bigquery|none]")
	fmt.Println("  export:csv --out=./out/suppliers_data_output.csv")
	fmt.Println("  export:xlsx --out=./out/suppliers.xlsx")
	fmt.Println("  gcs:upload --bucket=... file[=object] ...")
	fmt.Println("  runs:list [--limit=20]")
}

func must(err error) {
	if err == nil {
		return
	}
	log.Error().Err(err).Msg("command failed")
	os.Exit(1)
}
