/*
Package sqlite provides a SQLite-backed implementation of picking.Store.

PURPOSE:
  Keeps the authoritative inventory and an archive of planning runs so the
  server survives restarts and the batch CLI can import from, and archive
  into, one database file.

KEY TABLES:
  inventory:   current inventory, one row per record, ordered by position
  runs:        one row per committed run with its summary
  run_entries: one row per order of a run, picks stored as JSON
  order_lines: staged order lines waiting for dispatch, ordered by position

RECORD ORDER:
  The allocator is first-fit over record order, so record order is part of
  the data. Inventory and order lines carry an explicit position column and
  are always read back ORDER BY position.

ATOMIC COMMIT:
  CommitRun inserts the run, its entries and the new inventory in a single
  SQL transaction. A failure rolls everything back.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, like the WAL-mode single writer.

USAGE:
  store, err := sqlite.New("./data/pick.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  p := planner.New(store, nil)
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/pick-engine/picking"
)

// Store implements picking.Store and picking.OrderQueue using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ picking.Store      = (*Store)(nil)
	_ picking.OrderQueue = (*Store)(nil)
)

// New opens (and migrates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// ":memory:" is per connection
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS inventory (
		position INTEGER PRIMARY KEY,
		floor INTEGER NOT NULL,
		aisle INTEGER NOT NULL,
		sku TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 0)
	);

	CREATE TABLE IF NOT EXISTS runs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		started_at TEXT NOT NULL,
		completed_at TEXT NOT NULL,
		orders INTEGER NOT NULL,
		committed INTEGER NOT NULL,
		rejected INTEGER NOT NULL,
		flagged INTEGER NOT NULL,
		units_picked INTEGER NOT NULL,
		total_distance INTEGER NOT NULL,
		fill_rate TEXT NOT NULL,
		mean_distance TEXT NOT NULL,
		final_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_entries (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		order_id INTEGER NOT NULL,
		state TEXT NOT NULL,
		distance INTEGER NOT NULL,
		unsatisfiable INTEGER NOT NULL,
		error TEXT,
		error_kind TEXT,
		picks_json TEXT NOT NULL,
		PRIMARY KEY (run_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_run_entries_order
		ON run_entries(order_id);

	CREATE TABLE IF NOT EXISTS order_lines (
		position INTEGER PRIMARY KEY,
		order_id INTEGER NOT NULL,
		sku TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// INVENTORY
// =============================================================================

// LoadInventory returns the current inventory in record order.
func (s *Store) LoadInventory(ctx context.Context) (picking.Inventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT floor, aisle, sku, quantity FROM inventory ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory: %w", err)
	}
	defer rows.Close()

	inv := picking.Inventory{}
	for rows.Next() {
		var r picking.InventoryRecord
		if err := rows.Scan(&r.Location.Floor, &r.Location.Aisle, &r.SKU, &r.Quantity); err != nil {
			return nil, err
		}
		inv = append(inv, r)
	}
	return inv, rows.Err()
}

// ReplaceInventory discards the current inventory and stores inv.
func (s *Store) ReplaceInventory(ctx context.Context, inv picking.Inventory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return writeInventory(ctx, tx, inv)
	})
}

func writeInventory(ctx context.Context, db execer, inv picking.Inventory) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM inventory`); err != nil {
		return fmt.Errorf("failed to clear inventory: %w", err)
	}
	for i, r := range inv {
		_, err := db.ExecContext(ctx,
			`INSERT INTO inventory (position, floor, aisle, sku, quantity) VALUES (?, ?, ?, ?, ?)`,
			i, r.Location.Floor, r.Location.Aisle, string(r.SKU), r.Quantity)
		if err != nil {
			return fmt.Errorf("failed to insert inventory record %d: %w", i, err)
		}
	}
	return nil
}

// =============================================================================
// RUNS
// =============================================================================

// pickRow is the JSON shape of one assignment inside run_entries.picks_json.
type pickRow struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Floor    int    `json:"floor"`
	Aisle    int    `json:"aisle"`
}

type recordRow struct {
	Floor    int    `json:"floor"`
	Aisle    int    `json:"aisle"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// CommitRun stores run and replaces the inventory with final in one transaction.
func (s *Store) CommitRun(ctx context.Context, run picking.RunRecord, final picking.Inventory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	finalJSON, err := json.Marshal(toRecordRows(final))
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		sum := run.Summary
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs
			(id, started_at, completed_at, orders, committed, rejected, flagged,
			 units_picked, total_distance, fill_rate, mean_distance, final_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(run.ID),
			run.StartedAt.UTC().Format(time.RFC3339Nano),
			run.CompletedAt.UTC().Format(time.RFC3339Nano),
			sum.Orders, sum.Committed, sum.Rejected, sum.Flagged,
			sum.UnitsPicked, sum.TotalDistance,
			sum.FillRate.String(), sum.MeanDistance.String(),
			string(finalJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		for i, e := range run.Entries {
			if err := insertEntry(ctx, tx, run.ID, i, e); err != nil {
				return err
			}
		}

		return writeInventory(ctx, tx, final)
	})
}

func insertEntry(ctx context.Context, db execer, id picking.RunID, pos int, e picking.ReportEntry) error {
	picks := make([]pickRow, len(e.Assignments))
	for i, a := range e.Assignments {
		picks[i] = pickRow{
			SKU:      string(a.Line.SKU),
			Quantity: a.Line.Quantity,
			Floor:    a.Location.Floor,
			Aisle:    a.Location.Aisle,
		}
	}
	picksJSON, err := json.Marshal(picks)
	if err != nil {
		return err
	}

	var msg string
	if e.Err != nil {
		msg = e.Err.Error()
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO run_entries
		(run_id, position, order_id, state, distance, unsatisfiable, error, error_kind, picks_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(id), pos, int(e.OrderID), string(e.State), e.Distance, e.Unsatisfiable,
		nullString(msg), nullString(errorKind(e.Err)), string(picksJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry %d of run %s: %w", pos, id, err)
	}
	return nil
}

// GetRun returns a stored run or picking.ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id picking.RunID) (*picking.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, runColumns+` WHERE id = ?`, string(id))
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, picking.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}

	if run.Entries, err = s.loadEntries(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]picking.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := runColumns + ` ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	var runs []picking.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, *run)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// single connection: entries are loaded after the runs cursor is closed
	for i := range runs {
		if runs[i].Entries, err = s.loadEntries(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

const runColumns = `
	SELECT id, started_at, completed_at, orders, committed, rejected, flagged,
	       units_picked, total_distance, fill_rate, mean_distance, final_json
	FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*picking.RunRecord, error) {
	var (
		run                    picking.RunRecord
		id, started, completed string
		fillRate, meanDistance string
		finalJSON              string
	)
	err := row.Scan(&id, &started, &completed,
		&run.Summary.Orders, &run.Summary.Committed, &run.Summary.Rejected, &run.Summary.Flagged,
		&run.Summary.UnitsPicked, &run.Summary.TotalDistance,
		&fillRate, &meanDistance, &finalJSON)
	if err != nil {
		return nil, err
	}

	run.ID = picking.RunID(id)
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("run %s: bad started_at: %w", id, err)
	}
	if run.CompletedAt, err = time.Parse(time.RFC3339Nano, completed); err != nil {
		return nil, fmt.Errorf("run %s: bad completed_at: %w", id, err)
	}
	if run.Summary.FillRate, err = decimal.NewFromString(fillRate); err != nil {
		return nil, fmt.Errorf("run %s: bad fill_rate: %w", id, err)
	}
	if run.Summary.MeanDistance, err = decimal.NewFromString(meanDistance); err != nil {
		return nil, fmt.Errorf("run %s: bad mean_distance: %w", id, err)
	}

	var final []recordRow
	if err := json.Unmarshal([]byte(finalJSON), &final); err != nil {
		return nil, fmt.Errorf("run %s: bad final inventory: %w", id, err)
	}
	run.Final = fromRecordRows(final)
	return &run, nil
}

func (s *Store) loadEntries(ctx context.Context, id picking.RunID) ([]picking.ReportEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, state, distance, unsatisfiable, error, error_kind, picks_json
		FROM run_entries WHERE run_id = ? ORDER BY position`, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query entries of run %s: %w", id, err)
	}
	defer rows.Close()

	var entries []picking.ReportEntry
	for rows.Next() {
		var (
			e         picking.ReportEntry
			state     string
			msg, kind sql.NullString
			picksJSON string
		)
		if err := rows.Scan(&e.OrderID, &state, &e.Distance, &e.Unsatisfiable, &msg, &kind, &picksJSON); err != nil {
			return nil, err
		}
		e.State = picking.OrderState(state)
		if msg.Valid {
			e.Err = &storedError{msg: msg.String, kind: sentinelFor(kind.String)}
		}

		var picks []pickRow
		if err := json.Unmarshal([]byte(picksJSON), &picks); err != nil {
			return nil, fmt.Errorf("run %s order %d: bad picks: %w", id, e.OrderID, err)
		}
		for _, p := range picks {
			e.Assignments = append(e.Assignments, picking.Assignment{
				Line:     picking.OrderLine{OrderID: e.OrderID, SKU: picking.SKU(p.SKU), Quantity: p.Quantity},
				Location: picking.Location{Floor: p.Floor, Aisle: p.Aisle},
			})
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// ORDER QUEUE (staged order lines)
// =============================================================================

// StageOrderLines appends lines to the queue, after any already staged.
func (s *Store) StageOrderLines(ctx context.Context, lines []picking.OrderLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var next int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position) + 1, 0) FROM order_lines`).Scan(&next); err != nil {
			return fmt.Errorf("failed to read queue position: %w", err)
		}
		for i, l := range lines {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO order_lines (position, order_id, sku, quantity) VALUES (?, ?, ?, ?)`,
				next+i, int(l.OrderID), string(l.SKU), l.Quantity)
			if err != nil {
				return fmt.Errorf("failed to stage order line %d: %w", i, err)
			}
		}
		return nil
	})
}

// PendingOrders returns the staged orders without removing them.
func (s *Store) PendingOrders(ctx context.Context) ([]picking.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines, err := queryOrderLines(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return picking.GroupOrders(lines), nil
}

// TakeOrders removes and returns up to limit staged orders in one
// transaction. limit <= 0 takes them all.
func (s *Store) TakeOrders(ctx context.Context, limit int) ([]picking.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lines []picking.OrderLine
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		staged, err := queryOrderLines(ctx, tx)
		if err != nil {
			return err
		}
		lines = staged[:picking.SplitWave(staged, limit)]
		_, err = tx.ExecContext(ctx,
			`DELETE FROM order_lines WHERE position IN (
				SELECT position FROM order_lines ORDER BY position LIMIT ?)`, len(lines))
		return err
	})
	if err != nil {
		return nil, err
	}
	return picking.GroupOrders(lines), nil
}

// RequeueOrderLines inserts lines ahead of every staged line.
func (s *Store) RequeueOrderLines(ctx context.Context, lines []picking.OrderLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var first int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MIN(position), 0) FROM order_lines`).Scan(&first); err != nil {
			return fmt.Errorf("failed to read queue position: %w", err)
		}
		start := first - len(lines)
		for i, l := range lines {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO order_lines (position, order_id, sku, quantity) VALUES (?, ?, ?, ?)`,
				start+i, int(l.OrderID), string(l.SKU), l.Quantity)
			if err != nil {
				return fmt.Errorf("failed to requeue order line %d: %w", i, err)
			}
		}
		return nil
	})
}

func queryOrderLines(ctx context.Context, db interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}) ([]picking.OrderLine, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT order_id, sku, quantity FROM order_lines ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	var lines []picking.OrderLine
	for rows.Next() {
		var l picking.OrderLine
		if err := rows.Scan(&l.OrderID, &l.SKU, &l.Quantity); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Reset clears all tables.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"run_entries", "runs", "inventory", "order_lines"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// storedError is an entry error read back from the archive. It keeps the
// original message and still matches the engine's sentinels with errors.Is.
type storedError struct {
	msg  string
	kind error
}

func (e *storedError) Error() string { return e.msg }
func (e *storedError) Unwrap() error { return e.kind }

var errorKinds = map[string]error{
	"unknown_sku":        picking.ErrUnknownSKU,
	"insufficient_stock": picking.ErrInsufficientStock,
	"inconsistent":       picking.ErrInconsistentInventory,
	"record_not_found":   picking.ErrRecordNotFound,
}

func errorKind(err error) string {
	if err == nil {
		return ""
	}
	for kind, sentinel := range errorKinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return ""
}

func sentinelFor(kind string) error {
	return errorKinds[kind]
}

func toRecordRows(inv picking.Inventory) []recordRow {
	out := make([]recordRow, len(inv))
	for i, r := range inv {
		out[i] = recordRow{Floor: r.Location.Floor, Aisle: r.Location.Aisle, SKU: string(r.SKU), Quantity: r.Quantity}
	}
	return out
}

func fromRecordRows(rows []recordRow) picking.Inventory {
	inv := make(picking.Inventory, len(rows))
	for i, r := range rows {
		inv[i] = picking.InventoryRecord{
			Location: picking.Location{Floor: r.Floor, Aisle: r.Aisle},
			SKU:      picking.SKU(r.SKU),
			Quantity: r.Quantity,
		}
	}
	return inv
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
