package promise

import (
	"fmt"
	"strings"

	"github.com/andresuchdata/otp-service/internal/domain"
	"github.com/andresuchdata/otp-service/internal/supply"
)

const latePODays = 14

type explainInput struct {
	plans   []domain.ItemPlan
	notes   []string
	issues  []accessIssue
	rules   Rules
	today   domain.Date
	base    domain.Date
	raw     domain.Date
	desired *domain.Date
	outcome desiredOutcome
}

// explain synthesizes the human-readable reasons, blockers and remediation
// options for a computed promise.
func explain(in explainInput) (reasons, blockers []string, options []domain.PromiseOption) {
	reasons = itemReasons(in.plans)
	reasons = append(reasons, in.notes...)
	reasons = append(reasons, adjustmentReasons(in)...)
	reasons = append(reasons, desiredReasons(in)...)

	blockers = identifyBlockers(in.plans, in.issues, in.today)
	options = suggestOptions(in.plans, in.today, desiredMissed(in))
	return reasons, blockers, options
}

func desiredMissed(in explainInput) bool {
	return in.desired != nil && in.outcome.onTime != nil && !*in.outcome.onTime
}

func itemReasons(plans []domain.ItemPlan) []string {
	var reasons []string
	for _, plan := range plans {
		if len(plan.Fulfillment) == 0 {
			reasons = append(reasons, fmt.Sprintf(
				"Item %s: No stock or incoming supply available", plan.ItemCode))
			continue
		}

		parts := make([]string, 0, len(plan.Fulfillment))
		for _, f := range plan.Fulfillment {
			switch f.Source {
			case domain.SourceStock:
				parts = append(parts, fmt.Sprintf(
					"%g units from stock in %s (ship-ready %s)", f.Qty, f.Warehouse, f.ShipReadyDate))
			case domain.SourcePurchaseOrder:
				parts = append(parts, fmt.Sprintf(
					"%g units from %s (arriving %s, ship-ready %s)",
					f.Qty, f.POID, f.ExpectedDate, f.ShipReadyDate))
			}
		}
		reasons = append(reasons, fmt.Sprintf("Item %s: %s", plan.ItemCode, strings.Join(parts, ", ")))
	}
	return reasons
}

func adjustmentReasons(in explainInput) []string {
	var reasons []string
	if in.rules.LeadTimeBufferDays > 0 {
		reasons = append(reasons, fmt.Sprintf(
			"Added %d day(s) lead time buffer", in.rules.LeadTimeBufferDays))
	}
	if !in.raw.Equal(in.base) {
		reasons = append(reasons, fmt.Sprintf(
			"Adjusted from %s to %s (business rules applied)", in.base, in.raw))
	}
	if in.rules.NoWeekends {
		reasons = append(reasons, "Weekend delivery avoided (Friday and Saturday are non-working days)")
	}
	return reasons
}

func desiredReasons(in explainInput) []string {
	if in.desired == nil {
		return nil
	}

	var reasons []string
	switch {
	case in.outcome.adjusted:
		reasons = append(reasons, fmt.Sprintf(
			"Can deliver earlier (%s); holding delivery until %s as requested (no early delivery)",
			in.raw, in.outcome.promise))
	case desiredMissed(in):
		reasons = append(reasons, fmt.Sprintf(
			"Desired date %s missed by %d day(s); earliest achievable is %s",
			in.desired, in.desired.DaysUntil(in.raw), in.raw))
	default:
		reasons = append(reasons, fmt.Sprintf("Meets desired date %s", in.desired))
	}
	return reasons
}

func identifyBlockers(plans []domain.ItemPlan, issues []accessIssue, today domain.Date) []string {
	var blockers []string
	for _, plan := range plans {
		if plan.Shortage > 0 {
			blockers = append(blockers, fmt.Sprintf(
				"Item %s: shortage of %g units", plan.ItemCode, plan.Shortage))
		}
		for _, f := range plan.Fulfillment {
			if f.Source != domain.SourcePurchaseOrder || f.ExpectedDate == nil {
				continue
			}
			if days := today.DaysUntil(*f.ExpectedDate); days > latePODays {
				blockers = append(blockers, fmt.Sprintf(
					"Item %s: PO %s arrives in %d days", plan.ItemCode, f.POID, days))
			}
		}
	}

	for _, issue := range issues {
		switch issue.outcome {
		case supply.AccessDenied:
			blockers = append(blockers, fmt.Sprintf(
				"Item %s: incoming supply inaccessible (permission denied on purchase orders)", issue.itemCode))
		default:
			blockers = append(blockers, fmt.Sprintf(
				"Item %s: incoming supply could not be read (%s)", issue.itemCode, issue.detail))
		}
	}
	return blockers
}

func suggestOptions(plans []domain.ItemPlan, today domain.Date, desiredMissed bool) []domain.PromiseOption {
	var options []domain.PromiseOption

	anyFromStockOnly := false
	anyWaiting := false

	for _, plan := range plans {
		fromStockOnly := plan.Shortage == 0
		for _, f := range plan.Fulfillment {
			if f.Source != domain.SourceStock {
				fromStockOnly = false
			}
		}
		if fromStockOnly && len(plan.Fulfillment) > 0 {
			anyFromStockOnly = true
		} else {
			anyWaiting = true
		}

		if plan.Shortage > 0 {
			options = append(options, domain.PromiseOption{
				Type:        "alternate_warehouse",
				Description: fmt.Sprintf("Check alternate warehouses for %s", plan.ItemCode),
				Impact:      "Could reduce promise date if stock is available elsewhere",
			})
		}

		for _, f := range plan.Fulfillment {
			if f.Source != domain.SourcePurchaseOrder || f.ExpectedDate == nil {
				continue
			}
			days := today.DaysUntil(*f.ExpectedDate)
			if days > nearTermDays || desiredMissed {
				improvement := days - 3
				if improvement < 1 {
					improvement = 1
				}
				options = append(options, domain.PromiseOption{
					Type:        "expedite_po",
					POID:        f.POID,
					Description: fmt.Sprintf("Expedite %s for %s", f.POID, plan.ItemCode),
					Impact:      fmt.Sprintf("Could reduce promise date by up to %d days", improvement),
				})
			}
		}
	}

	if desiredMissed && anyFromStockOnly && anyWaiting {
		options = append(options, domain.PromiseOption{
			Type:        "split_shipment",
			Description: "Ship in-stock items now and the remainder when supply arrives",
			Impact:      "Delivers part of the order by the desired date",
		})
	}
	return options
}
