package promise

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/otp-service/internal/calendar"
	"github.com/andresuchdata/otp-service/internal/domain"
	"github.com/andresuchdata/otp-service/internal/supply"
	"github.com/andresuchdata/otp-service/internal/warehouse"
)

// accessIssue records a provider-reported inability to read incoming supply.
// It is data, not an error: the item is planned without incoming supply and
// the overall confidence is forced to LOW.
type accessIssue struct {
	itemCode string
	outcome  supply.AccessOutcome
	detail   string
}

// allocation is the result of planning one item: the fulfillment plan,
// explanatory notes for the reason synthesizer, and an access issue if the
// incoming-supply read was denied or failed.
type allocation struct {
	plan        domain.ItemPlan
	notes       []string
	accessIssue *accessIssue
}

// allocateItem builds the fulfillment plan for a single item: stock first
// (subject to the warehouse classification), then incoming purchase orders in
// ascending expected-date order, with the remainder recorded as shortage.
func (s *Service) allocateItem(ctx context.Context, item domain.ItemRequest, rules Rules, today domain.Date) allocation {
	wh := item.Warehouse
	if wh == "" {
		wh = s.opts.DefaultWarehouse
	}

	qtyNeeded := item.Qty
	category := s.warehouses.Classify(wh)
	leadDays := s.resolveProcessingLeadTime(item.ItemCode, wh, rules)

	var (
		fulfillment []domain.FulfillmentSource
		notes       []string
		issue       *accessIssue
	)

	stock, err := s.supply.AvailableStock(ctx, item.ItemCode, wh)
	if err != nil {
		log.Warn().Err(err).Str("item", item.ItemCode).Str("warehouse", wh).
			Msg("stock lookup failed, treating as zero stock")
		stock = supply.StockBalance{}
	}

	switch category {
	case warehouse.Group:
		// Groups must be expanded before allocation; never draw from one.
		note := fmt.Sprintf("Warehouse %s is a group warehouse and cannot hold stock", wh)
		if children := s.warehouses.Children(wh); len(children) > 0 {
			note += "; request one of its child warehouses: " + strings.Join(children, ", ")
		}
		notes = append(notes, note)
	case warehouse.InTransit, warehouse.NotAvailable:
		if stock.AvailableQty > 0 {
			notes = append(notes, s.warehouses.AvailabilityNote(wh, stock.AvailableQty))
		}
	default:
		if stock.AvailableQty > 0 {
			stockLead := leadDays
			if category == warehouse.NeedsProcessing {
				stockLead++
				notes = append(notes, s.warehouses.AvailabilityNote(wh, stock.AvailableQty))
			}
			qty := minFloat(stock.AvailableQty, qtyNeeded)
			fulfillment = append(fulfillment, domain.FulfillmentSource{
				Source:        domain.SourceStock,
				Qty:           qty,
				AvailableDate: today,
				ShipReadyDate: addLeadDays(today, stockLead, rules.NoWeekends),
				Warehouse:     wh,
			})
			qtyNeeded -= qty
		}
	}

	if qtyNeeded > 0 {
		incoming, err := s.supply.IncomingSupply(ctx, item.ItemCode, today)
		if err != nil {
			incoming = supply.IncomingResult{Outcome: supply.AccessError, Detail: err.Error()}
		}

		if incoming.Outcome != supply.AccessOK {
			issue = &accessIssue{itemCode: item.ItemCode, outcome: incoming.Outcome, detail: incoming.Detail}
		} else {
			records := append([]supply.IncomingRecord(nil), incoming.Records...)
			sort.SliceStable(records, func(i, j int) bool {
				if !records[i].ExpectedDate.Equal(records[j].ExpectedDate) {
					return records[i].ExpectedDate.Before(records[j].ExpectedDate)
				}
				return records[i].POID < records[j].POID
			})

			for _, rec := range records {
				if qtyNeeded <= 0 {
					break
				}
				qty := minFloat(rec.Qty, qtyNeeded)
				available := rec.ExpectedDate
				if rules.NoWeekends {
					available = calendar.NextWorkingDay(available)
				}
				expected := rec.ExpectedDate
				fulfillment = append(fulfillment, domain.FulfillmentSource{
					Source:        domain.SourcePurchaseOrder,
					Qty:           qty,
					AvailableDate: available,
					ShipReadyDate: addLeadDays(available, leadDays, rules.NoWeekends),
					Warehouse:     rec.Warehouse,
					POID:          rec.POID,
					ExpectedDate:  &expected,
				})
				qtyNeeded -= qty
			}
		}
	}

	shortage := qtyNeeded
	if shortage < 0 {
		shortage = 0
	}

	return allocation{
		plan: domain.ItemPlan{
			ItemCode:    item.ItemCode,
			QtyRequired: item.Qty,
			Fulfillment: fulfillment,
			Shortage:    shortage,
		},
		notes:       notes,
		accessIssue: issue,
	}
}

// addLeadDays advances a date by n lead-time days, counting working days when
// the business calendar is active.
func addLeadDays(d domain.Date, n int, noWeekends bool) domain.Date {
	if noWeekends {
		return calendar.AddWorkingDays(d, n)
	}
	return d.AddDays(n)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
