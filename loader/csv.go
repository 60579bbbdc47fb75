/*
Package loader reads and writes the engine's records in external formats.

FORMATS:
  Inventory CSV:  floor,aisle,sku,quantity
  Orders CSV:     order_id,sku,quantity
  JSON documents: see document.go

  A first row is a header when none of its integer columns holds an
  integer. It is skipped whatever its column names. A first row with some
  integers and some garbage is a bad data row and is rejected. Every data row is validated with
  the record's Validate method; errors carry the 1-based row number.

ORDER GROUPING:
  Orders are formed from contiguous runs of the same order_id, in file order
  (picking.GroupOrders).
*/
package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/warp/pick-engine/picking"
)

// Column layouts. ints lists the positions that hold integers.
var (
	inventoryColumns = columns{count: 4, ints: []int{0, 1, 3}}
	orderColumns     = columns{count: 3, ints: []int{0, 2}}
)

type columns struct {
	count int
	ints  []int
}

// ReadInventoryCSV parses inventory rows in file order.
func ReadInventoryCSV(r io.Reader) (picking.Inventory, error) {
	var inv picking.Inventory
	err := eachRow(r, inventoryColumns, func(row int, fields []string) error {
		ints, err := atoiFields(fields, inventoryColumns.ints...)
		if err != nil {
			return err
		}
		rec := picking.InventoryRecord{
			Location: picking.Location{Floor: ints[0], Aisle: ints[1]},
			SKU:      picking.SKU(fields[2]),
			Quantity: ints[2],
		}
		if err := rec.Validate(); err != nil {
			return err
		}
		inv = append(inv, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("inventory CSV %w", err)
	}
	return inv, nil
}

// ReadOrderLinesCSV parses order lines in file order without grouping them.
func ReadOrderLinesCSV(r io.Reader) ([]picking.OrderLine, error) {
	var lines []picking.OrderLine
	err := eachRow(r, orderColumns, func(row int, fields []string) error {
		ints, err := atoiFields(fields, orderColumns.ints...)
		if err != nil {
			return err
		}
		line := picking.OrderLine{
			OrderID:  picking.OrderID(ints[0]),
			SKU:      picking.SKU(fields[1]),
			Quantity: ints[1],
		}
		if err := line.Validate(); err != nil {
			return err
		}
		lines = append(lines, line)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("orders CSV %w", err)
	}
	return lines, nil
}

// ReadOrdersCSV parses order lines and groups them into orders.
func ReadOrdersCSV(r io.Reader) ([]picking.Order, error) {
	lines, err := ReadOrderLinesCSV(r)
	if err != nil {
		return nil, err
	}
	return picking.GroupOrders(lines), nil
}

// WriteInventoryCSV writes inv with a header, in record order.
func WriteInventoryCSV(w io.Writer, inv picking.Inventory) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"floor", "aisle", "sku", "quantity"}); err != nil {
		return err
	}
	for _, r := range inv {
		if err := cw.Write([]string{
			strconv.Itoa(r.Location.Floor),
			strconv.Itoa(r.Location.Aisle),
			string(r.SKU),
			strconv.Itoa(r.Quantity),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func eachRow(r io.Reader, cols columns, fn func(row int, fields []string) error) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	row := 0
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		row++
		if err != nil {
			return fmt.Errorf("row %d: %w", row, err)
		}
		if row == 1 && isHeader(fields, cols) {
			continue
		}
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			continue
		}
		if len(fields) != cols.count {
			return fmt.Errorf("row %d: expected %d columns, got %d", row, cols.count, len(fields))
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if err := fn(row, fields); err != nil {
			return fmt.Errorf("row %d: %w", row, err)
		}
	}
}

func isHeader(fields []string, cols columns) bool {
	if len(fields) != cols.count {
		return false
	}
	for _, p := range cols.ints {
		if _, err := strconv.Atoi(strings.TrimSpace(fields[p])); err == nil {
			return false
		}
	}
	return true
}

func atoiFields(fields []string, positions ...int) ([]int, error) {
	out := make([]int, len(positions))
	for i, p := range positions {
		v, err := strconv.Atoi(fields[p])
		if err != nil {
			return nil, fmt.Errorf("%w: column %d: %q is not an integer", picking.ErrInvalidRecord, p+1, fields[p])
		}
		out[i] = v
	}
	return out, nil
}
