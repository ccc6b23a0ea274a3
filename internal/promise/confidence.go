package promise

import "github.com/andresuchdata/otp-service/internal/domain"

const nearTermDays = 7

// scoreConfidence rates the promise from the composition of fulfillment
// sources: HIGH when effectively everything ships from stock, LOW when the
// order leans on distant purchase orders or a material shortage, MEDIUM in
// between. An access issue on incoming supply forces LOW unconditionally.
func scoreConfidence(plans []domain.ItemPlan, today domain.Date, hasAccessIssue bool) domain.Confidence {
	if hasAccessIssue {
		return domain.ConfidenceLow
	}

	var total, stockQty, nearPOQty, farPOQty, shortageQty float64
	for _, plan := range plans {
		total += plan.QtyRequired
		shortageQty += plan.Shortage
		for _, f := range plan.Fulfillment {
			switch f.Source {
			case domain.SourceStock:
				stockQty += f.Qty
			case domain.SourcePurchaseOrder:
				if f.ExpectedDate != nil && today.DaysUntil(*f.ExpectedDate) <= nearTermDays {
					nearPOQty += f.Qty
				} else {
					farPOQty += f.Qty
				}
			}
		}
	}

	if total <= 0 {
		return domain.ConfidenceLow
	}

	stockPct := stockQty / total
	shortagePct := shortageQty / total

	switch {
	case stockPct >= 0.99 && shortagePct < 0.01:
		return domain.ConfidenceHigh
	case shortagePct > 0.10 || farPOQty > nearPOQty+stockQty:
		return domain.ConfidenceLow
	default:
		return domain.ConfidenceMedium
	}
}
