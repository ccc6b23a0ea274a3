package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/andresuchdata/otp-service/internal/domain"
	"github.com/andresuchdata/otp-service/internal/supply"
)

// Provider reads stock balances and incoming purchase orders from the supply
// tables. Rows are stored as loaded by cmd/seed.
type Provider struct {
	db *DB
}

func NewProvider(db *DB) *Provider {
	return &Provider{db: db}
}

func (p *Provider) AvailableStock(ctx context.Context, itemCode, warehouse string) (supply.StockBalance, error) {
	const query = `
		SELECT actual_qty, reserved_qty
		FROM supply_stock
		WHERE lower(item_code) = $1 AND lower(warehouse) = $2`

	var row struct {
		ActualQty   float64 `db:"actual_qty"`
		ReservedQty float64 `db:"reserved_qty"`
	}
	err := p.db.GetContext(ctx, &row, query, strings.ToLower(itemCode), strings.ToLower(warehouse))
	if errors.Is(err, sql.ErrNoRows) {
		return supply.StockBalance{}, nil
	}
	if err != nil {
		return supply.StockBalance{}, fmt.Errorf("stock query failed for %s: %w", itemCode, err)
	}

	return supply.StockBalance{
		ActualQty:    row.ActualQty,
		ReservedQty:  row.ReservedQty,
		AvailableQty: row.ActualQty - row.ReservedQty,
	}, nil
}

func (p *Provider) IncomingSupply(ctx context.Context, itemCode string, after domain.Date) (supply.IncomingResult, error) {
	const query = `
		SELECT po_id, item_code, qty, expected_date, warehouse
		FROM supply_purchase_orders
		WHERE lower(item_code) = $1 AND expected_date >= $2
		ORDER BY expected_date, po_id`

	var rows []struct {
		POID         string      `db:"po_id"`
		ItemCode     string      `db:"item_code"`
		Qty          float64     `db:"qty"`
		ExpectedDate domain.Date `db:"expected_date"`
		Warehouse    string      `db:"warehouse"`
	}
	if err := p.db.SelectContext(ctx, &rows, query, strings.ToLower(itemCode), after.Time()); err != nil {
		return supply.IncomingResult{
			Outcome: supply.AccessError,
			Detail:  err.Error(),
		}, nil
	}

	records := make([]supply.IncomingRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, supply.IncomingRecord{
			POID:         row.POID,
			ItemCode:     row.ItemCode,
			Qty:          row.Qty,
			ExpectedDate: row.ExpectedDate,
			Warehouse:    row.Warehouse,
		})
	}

	return supply.IncomingResult{Records: records, Outcome: supply.AccessOK}, nil
}
