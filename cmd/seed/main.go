package main

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/otp-service/internal/cache"
	"github.com/andresuchdata/otp-service/internal/config"
	"github.com/andresuchdata/otp-service/internal/supply/postgres"
)

type seedFn func(tx *sql.Tx, dataDir string) error

func newDataDirFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "data-dir",
		Usage:   "Directory containing stock.csv and purchase_orders.csv",
		Value:   "./data",
		EnvVars: []string{"SUPPLY_DATA_DIR"},
	}
}

func main() {
	app := &cli.App{
		Name:  "seed",
		Usage: "Load supply fixtures into the database",
		Commands: []*cli.Command{
			{
				Name:  "stock",
				Usage: "Load stock balances from stock.csv",
				Flags: []cli.Flag{newDataDirFlag()},
				Action: func(c *cli.Context) error {
					return seed(c, seedStock)
				},
			},
			{
				Name:  "purchase-orders",
				Usage: "Load incoming purchase orders from purchase_orders.csv",
				Flags: []cli.Flag{newDataDirFlag()},
				Action: func(c *cli.Context) error {
					return seed(c, seedPurchaseOrders)
				},
			},
			{
				Name:  "all",
				Usage: "Load all supply fixtures",
				Flags: []cli.Flag{newDataDirFlag()},
				Action: func(c *cli.Context) error {
					return seed(c, seedStock, seedPurchaseOrders)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// seed runs every step inside one transaction so a half-loaded fixture never
// becomes visible, then drops cached supply entries so the server does not
// serve pre-seed balances for a TTL.
func seed(c *cli.Context, steps ...seedFn) error {
	cfg := config.Load()
	ctx := c.Context

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	dataDir := c.String("data-dir")
	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, step := range steps {
			if err := step(tx, dataDir); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if cfg.Cache.Enabled {
		supplyCache, err := cache.NewSupplyCache(cfg.Cache, postgres.NewProvider(db))
		if err != nil {
			return fmt.Errorf("failed to connect to cache: %w", err)
		}
		defer supplyCache.Close()
		if err := supplyCache.Invalidate(ctx); err != nil {
			return fmt.Errorf("failed to invalidate supply cache: %w", err)
		}
		log.Printf("invalidated cached supply entries")
	}
	return nil
}

func seedStock(tx *sql.Tx, dataDir string) error {
	rows, header, err := readFixture(filepath.Join(dataDir, "stock.csv"))
	if err != nil {
		return err
	}

	const upsert = `
		INSERT INTO supply_stock (item_code, warehouse, actual_qty, reserved_qty)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (item_code, warehouse) DO UPDATE
		SET actual_qty = EXCLUDED.actual_qty, reserved_qty = EXCLUDED.reserved_qty`

	count := 0
	for _, row := range rows {
		itemCode := strings.TrimSpace(cell(row, header, "item_code"))
		warehouse := strings.TrimSpace(cell(row, header, "warehouse"))
		if itemCode == "" || warehouse == "" {
			continue
		}
		_, err := tx.Exec(upsert, itemCode, warehouse,
			parseFloat(cell(row, header, "actual_qty")),
			parseFloat(cell(row, header, "reserved_qty")))
		if err != nil {
			return fmt.Errorf("failed to insert stock row for %s: %w", itemCode, err)
		}
		count++
	}

	log.Printf("seeded %d stock rows", count)
	return nil
}

func seedPurchaseOrders(tx *sql.Tx, dataDir string) error {
	rows, header, err := readFixture(filepath.Join(dataDir, "purchase_orders.csv"))
	if err != nil {
		return err
	}

	const upsert = `
		INSERT INTO supply_purchase_orders (po_id, item_code, qty, expected_date, warehouse)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (po_id, item_code) DO UPDATE
		SET qty = EXCLUDED.qty, expected_date = EXCLUDED.expected_date, warehouse = EXCLUDED.warehouse`

	count := 0
	for _, row := range rows {
		poID := strings.TrimSpace(cell(row, header, "po_id"))
		itemCode := strings.TrimSpace(cell(row, header, "item_code"))
		expected := strings.TrimSpace(cell(row, header, "expected_date"))
		if poID == "" || itemCode == "" || expected == "" {
			continue
		}
		_, err := tx.Exec(upsert, poID, itemCode,
			parseFloat(cell(row, header, "qty")),
			expected,
			strings.TrimSpace(cell(row, header, "warehouse")))
		if err != nil {
			return fmt.Errorf("failed to insert purchase order %s: %w", poID, err)
		}
		count++
	}

	log.Printf("seeded %d purchase orders", count)
	return nil
}

func readFixture(path string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
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
		return nil, nil, fmt.Errorf("%s is empty", path)
	}

	header := make(map[string]int, len(all[0]))
	for i, name := range all[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return all[1:], header, nil
}

func cell(row []string, header map[string]int, name string) string {
	idx, ok := header[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
