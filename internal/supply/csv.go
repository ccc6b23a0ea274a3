package supply

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/otp-service/internal/domain"
)

// CSVProvider serves supply data from local CSV fixtures: a stock file
// (item_code, warehouse, actual_qty, reserved_qty, projected_qty) and a
// purchase-orders file (po_id, item_code, qty, expected_date, warehouse).
// Used when ERPNext is unavailable or for demos.
type CSVProvider struct {
	stockIndex map[string][]stockRow
	poIndex    map[string][]IncomingRecord
}

type stockRow struct {
	warehouse    string
	actualQty    float64
	reservedQty  float64
	projectedQty float64
}

func NewCSVProvider(dataDir string) (*CSVProvider, error) {
	p := &CSVProvider{
		stockIndex: make(map[string][]stockRow),
		poIndex:    make(map[string][]IncomingRecord),
	}

	if err := p.loadStock(filepath.Join(dataDir, "stock.csv")); err != nil {
		return nil, err
	}
	if err := p.loadPurchaseOrders(filepath.Join(dataDir, "purchase_orders.csv")); err != nil {
		return nil, err
	}

	stockRows := 0
	for _, rows := range p.stockIndex {
		stockRows += len(rows)
	}
	poRows := 0
	for _, recs := range p.poIndex {
		poRows += len(recs)
	}
	log.Info().
		Str("dir", dataDir).
		Int("stock_rows", stockRows).
		Int("purchase_orders", poRows).
		Msg("loaded mock supply data")

	return p, nil
}

func (p *CSVProvider) loadStock(path string) error {
	rows, header, err := readCSV(path)
	if err != nil {
		return err
	}
	if rows == nil {
		log.Warn().Str("path", path).Msg("stock fixture not found")
		return nil
	}

	for _, row := range rows {
		itemCode := strings.TrimSpace(field(row, header, "item_code"))
		warehouse := strings.TrimSpace(field(row, header, "warehouse"))
		if itemCode == "" || warehouse == "" {
			continue
		}
		key := strings.ToLower(itemCode)
		p.stockIndex[key] = append(p.stockIndex[key], stockRow{
			warehouse:    warehouse,
			actualQty:    safeFloat(field(row, header, "actual_qty")),
			reservedQty:  safeFloat(field(row, header, "reserved_qty")),
			projectedQty: safeFloat(field(row, header, "projected_qty")),
		})
	}
	return nil
}

func (p *CSVProvider) loadPurchaseOrders(path string) error {
	rows, header, err := readCSV(path)
	if err != nil {
		return err
	}
	if rows == nil {
		log.Warn().Str("path", path).Msg("purchase order fixture not found")
		return nil
	}

	for _, row := range rows {
		poID := strings.TrimSpace(field(row, header, "po_id"))
		itemCode := strings.TrimSpace(field(row, header, "item_code"))
		expectedRaw := strings.TrimSpace(field(row, header, "expected_date"))
		if poID == "" || itemCode == "" || expectedRaw == "" {
			continue
		}

		expected, err := domain.ParseDate(expectedRaw)
		if err != nil {
			log.Warn().Str("po_id", poID).Str("item", itemCode).Str("date", expectedRaw).
				Msg("skipping purchase order with bad date")
			continue
		}

		key := strings.ToLower(itemCode)
		p.poIndex[key] = append(p.poIndex[key], IncomingRecord{
			POID:         poID,
			ItemCode:     itemCode,
			Qty:          safeFloat(field(row, header, "qty")),
			ExpectedDate: expected,
			Warehouse:    strings.TrimSpace(field(row, header, "warehouse")),
		})
	}

	for key := range p.poIndex {
		recs := p.poIndex[key]
		sort.SliceStable(recs, func(i, j int) bool {
			if !recs[i].ExpectedDate.Equal(recs[j].ExpectedDate) {
				return recs[i].ExpectedDate.Before(recs[j].ExpectedDate)
			}
			return recs[i].POID < recs[j].POID
		})
	}
	return nil
}

// AvailableStock sums matching stock rows. When the requested warehouse has
// no fixture row the item's rows across all warehouses are used instead, so
// demo items remain allocatable regardless of the warehouse asked for.
func (p *CSVProvider) AvailableStock(_ context.Context, itemCode, warehouse string) (StockBalance, error) {
	all := p.stockIndex[strings.ToLower(itemCode)]
	matches := all
	if warehouse != "" {
		matches = nil
		for _, row := range all {
			if strings.EqualFold(row.warehouse, warehouse) {
				matches = append(matches, row)
			}
		}
		if len(matches) == 0 {
			matches = all
		}
	}

	var balance StockBalance
	for _, row := range matches {
		balance.ActualQty += row.actualQty
		balance.ReservedQty += row.reservedQty
		balance.AvailableQty += row.projectedQty
	}
	return balance, nil
}

func (p *CSVProvider) IncomingSupply(_ context.Context, itemCode string, after domain.Date) (IncomingResult, error) {
	var records []IncomingRecord
	for _, rec := range p.poIndex[strings.ToLower(itemCode)] {
		if !after.IsZero() && rec.ExpectedDate.Before(after) {
			continue
		}
		records = append(records, rec)
	}
	return IncomingResult{Records: records, Outcome: AccessOK}, nil
}

func readCSV(path string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	all, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(all) == 0 {
		return [][]string{}, map[string]int{}, nil
	}

	header := make(map[string]int, len(all[0]))
	for i, name := range all[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return all[1:], header, nil
}

func field(row []string, header map[string]int, name string) string {
	idx, ok := header[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func safeFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
