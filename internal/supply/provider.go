// Package supply defines the supply data contract the promise engine consumes
// and the providers that implement it (ERPNext, postgres, CSV fixtures).
package supply

import (
	"context"

	"github.com/andresuchdata/otp-service/internal/domain"
)

// StockBalance is a point-in-time stock snapshot for an item in a warehouse.
type StockBalance struct {
	ActualQty    float64 `json:"actual_qty" db:"actual_qty"`
	ReservedQty  float64 `json:"reserved_qty" db:"reserved_qty"`
	AvailableQty float64 `json:"available_qty" db:"available_qty"`
}

// IncomingRecord is future supply backed by an open purchase order.
type IncomingRecord struct {
	POID         string      `json:"po_id" db:"po_id"`
	ItemCode     string      `json:"item_code" db:"item_code"`
	Qty          float64     `json:"qty" db:"qty"`
	ExpectedDate domain.Date `json:"expected_date" db:"expected_date"`
	Warehouse    string      `json:"warehouse" db:"warehouse"`
}

// AccessOutcome tags how an incoming-supply read went. It replaces exception
// inspection: a denied or failed read is ordinary data for the engine.
type AccessOutcome string

const (
	AccessOK     AccessOutcome = "OK"
	AccessDenied AccessOutcome = "DENIED"
	AccessError  AccessOutcome = "ERROR"
)

// IncomingResult is the tagged result of an incoming-supply read. Records is
// empty whenever Outcome is not AccessOK.
type IncomingResult struct {
	Records []IncomingRecord
	Outcome AccessOutcome
	Detail  string
}

// Provider yields current stock and known future supply for an item. Records
// are read-only snapshots; implementations never mutate inventory.
type Provider interface {
	// AvailableStock returns the stock balance for an item, optionally
	// scoped to one warehouse. An empty warehouse means all warehouses.
	AvailableStock(ctx context.Context, itemCode, warehouse string) (StockBalance, error)

	// IncomingSupply returns open purchase-order supply for an item with an
	// expected date on or after the given date, sorted ascending by date.
	IncomingSupply(ctx context.Context, itemCode string, after domain.Date) (IncomingResult, error)
}
