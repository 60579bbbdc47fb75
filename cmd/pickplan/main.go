/*
main.go - Batch pick planner

PURPOSE:
  Plans a file of orders against a file of inventory and prints one line
  per order, in processing order:

    Order 7: distance = 13
    Order 8: unsatisfiable

  With -db the run is archived in SQLite and the database inventory is
  drawn down, so successive invocations continue from where the last one
  stopped.

INPUTS:
  -inventory  CSV floor,aisle,sku,quantity. With -db it replaces the stored
              inventory; without -db it is required.
  -orders     CSV order_id,sku,quantity. With -db and no -orders, the
              orders staged in the database queue are planned instead.

OUTPUTS:
  -format         text (default) or json (entries, summary, final inventory)
  -out-inventory  write the final inventory as CSV

EXIT CODES:
  0  every order reached a terminal state (rejections included)
  1  bad input, store failure, or interrupted

EXAMPLES:
  pickplan -inventory estoque.csv -orders caixas.csv
  pickplan -inventory stock.csv -orders wave1.csv -db pick.db -format json
  pickplan -orders wave2.csv -db pick.db -out-inventory left.csv
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/warp/pick-engine/config"
	"github.com/warp/pick-engine/loader"
	"github.com/warp/pick-engine/logging"
	"github.com/warp/pick-engine/metrics"
	"github.com/warp/pick-engine/picking"
	"github.com/warp/pick-engine/picking/store"
	"github.com/warp/pick-engine/planner"
	"github.com/warp/pick-engine/store/sqlite"
)

type options struct {
	inventoryPath    string
	ordersPath       string
	format           string
	outInventoryPath string
	dbPath           string
	maxOrders        int
}

func main() {
	var opts options
	configPath := flag.String("config", "", "YAML config file")
	logLevel := flag.String("log-level", "", "Log level (overrides config)")
	flag.StringVar(&opts.inventoryPath, "inventory", "", "Inventory CSV (floor,aisle,sku,quantity)")
	flag.StringVar(&opts.ordersPath, "orders", "", "Orders CSV (order_id,sku,quantity)")
	flag.StringVar(&opts.format, "format", "text", "Report format: text or json")
	flag.StringVar(&opts.outInventoryPath, "out-inventory", "", "Write the final inventory CSV here")
	flag.StringVar(&opts.dbPath, "db", "", "SQLite database to import into and archive the run in")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pickplan: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if opts.dbPath == "" {
		opts.dbPath = cfg.Database.Path
	}
	opts.maxOrders = cfg.Planning.MaxOrdersPerRun

	// stdout carries the report
	if err := logging.Configure(cfg.Log.Level, cfg.Log.Format, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "pickplan: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		logging.Logger().WithError(err).Error("planning failed")
		os.Exit(1)
	}
}

type backend interface {
	picking.Store
	picking.OrderQueue
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	switch opts.format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}

	var db backend
	if opts.dbPath == "" {
		if opts.inventoryPath == "" || opts.ordersPath == "" {
			return errors.New("-inventory and -orders are required without -db")
		}
		db = store.NewMemory()
	} else {
		sq, err := sqlite.New(opts.dbPath)
		if err != nil {
			return err
		}
		defer sq.Close()
		db = sq
	}

	proc := picking.NewProcessor(
		picking.WithLogger(logging.Logger()),
		picking.WithObserver(metrics.Observer{}),
	)
	p := planner.New(db, proc)
	p.MaxOrders = opts.maxOrders

	if opts.inventoryPath != "" {
		inv, err := readFile(opts.inventoryPath, loader.ReadInventoryCSV)
		if err != nil {
			return err
		}
		if err := p.ReplaceInventory(ctx, inv); err != nil {
			return err
		}
	}

	var (
		rec *picking.RunRecord
		err error
	)
	if opts.ordersPath != "" {
		orders, err := readFile(opts.ordersPath, loader.ReadOrdersCSV)
		if err != nil {
			return err
		}
		rec, err = p.Plan(ctx, orders)
		if err != nil {
			return err
		}
	} else {
		if rec, err = p.Dispatch(ctx, db); err != nil {
			return err
		}
		if rec == nil {
			logging.Logger().Info("no staged orders in the database queue")
			return nil
		}
	}

	res := &picking.RunResult{Entries: rec.Entries, Final: rec.Final, Summary: rec.Summary}
	if err := loader.WriteReport(stdout, res, opts.format); err != nil {
		return err
	}

	if opts.outInventoryPath != "" {
		if err := writeFile(opts.outInventoryPath, func(w io.Writer) error {
			return loader.WriteInventoryCSV(w, rec.Final)
		}); err != nil {
			return err
		}
	}

	logging.WithContext(logging.WithRunID(ctx, string(rec.ID))).WithField("summary", loader.SummaryToJSON(rec.Summary)).
		Info("run finished")
	return nil
}

func readFile[T any](path string, parse func(io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Close()

	v, err := parse(f)
	if err != nil {
		return v, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
