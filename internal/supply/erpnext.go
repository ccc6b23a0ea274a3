package supply

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/otp-service/internal/domain"
	"github.com/andresuchdata/otp-service/internal/erpnext"
)

// ERPNextProvider serves supply data from a live ERPNext site. Client-side
// failures are absorbed into the data contract: stock reads degrade to a zero
// balance and incoming reads carry a DENIED or ERROR outcome.
type ERPNextProvider struct {
	client *erpnext.Client
}

func NewERPNextProvider(client *erpnext.Client) *ERPNextProvider {
	return &ERPNextProvider{client: client}
}

func (p *ERPNextProvider) AvailableStock(ctx context.Context, itemCode, warehouse string) (StockBalance, error) {
	bin, err := p.client.GetBinDetails(ctx, itemCode, warehouse)
	if err != nil {
		log.Error().Err(err).Str("item", itemCode).Str("warehouse", warehouse).
			Msg("stock lookup failed, treating as zero stock")
		return StockBalance{}, nil
	}
	return StockBalance{
		ActualQty:    bin.ActualQty,
		ReservedQty:  bin.ReservedQty,
		AvailableQty: bin.ProjectedQty,
	}, nil
}

func (p *ERPNextProvider) IncomingSupply(ctx context.Context, itemCode string, after domain.Date) (IncomingResult, error) {
	poItems, err := p.client.GetIncomingPurchaseOrders(ctx, itemCode)
	if err != nil {
		if errors.Is(err, erpnext.ErrPermissionDenied) {
			log.Warn().Str("item", itemCode).Msg("purchase order access denied")
			return IncomingResult{Outcome: AccessDenied, Detail: err.Error()}, nil
		}
		log.Error().Err(err).Str("item", itemCode).Msg("incoming supply lookup failed")
		return IncomingResult{Outcome: AccessError, Detail: err.Error()}, nil
	}

	var records []IncomingRecord
	for _, po := range poItems {
		if po.ScheduleDate == "" {
			continue
		}
		expected, err := domain.ParseDate(po.ScheduleDate)
		if err != nil {
			log.Warn().Str("po_id", po.POID).Str("date", po.ScheduleDate).
				Msg("skipping purchase order with bad schedule date")
			continue
		}
		if !after.IsZero() && expected.Before(after) {
			continue
		}
		records = append(records, IncomingRecord{
			POID:         po.POID,
			ItemCode:     po.ItemCode,
			Qty:          po.PendingQty,
			ExpectedDate: expected,
			Warehouse:    po.Warehouse,
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].ExpectedDate.Equal(records[j].ExpectedDate) {
			return records[i].ExpectedDate.Before(records[j].ExpectedDate)
		}
		return records[i].POID < records[j].POID
	})

	return IncomingResult{Records: records, Outcome: AccessOK}, nil
}
