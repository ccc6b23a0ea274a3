package promise

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/otp-service/internal/domain"
	"github.com/andresuchdata/otp-service/internal/supply"
	"github.com/andresuchdata/otp-service/internal/warehouse"
)

type stubProvider struct {
	stock    map[string]supply.StockBalance
	incoming map[string]supply.IncomingResult
	stockErr error
}

func (p *stubProvider) AvailableStock(_ context.Context, itemCode, _ string) (supply.StockBalance, error) {
	if p.stockErr != nil {
		return supply.StockBalance{}, p.stockErr
	}
	return p.stock[itemCode], nil
}

func (p *stubProvider) IncomingSupply(_ context.Context, itemCode string, _ domain.Date) (supply.IncomingResult, error) {
	if res, ok := p.incoming[itemCode]; ok {
		return res, nil
	}
	return supply.IncomingResult{Outcome: supply.AccessOK}, nil
}

// monday is the fixed "today" for most tests, 2026-01-26.
var monday = domain.NewDate(2026, time.January, 26)

func newTestService(provider supply.Provider, opts Options) *Service {
	if opts.DefaultWarehouse == "" {
		opts.DefaultWarehouse = "Stores - WH"
	}
	if opts.DefaultRules.Timezone == "" {
		opts.DefaultRules.Timezone = "UTC"
	}
	svc := NewService(provider, warehouse.DefaultRuleset(), opts)
	svc.now = func(loc *time.Location) time.Time {
		return time.Date(2026, time.January, 26, 9, 0, 0, 0, loc)
	}
	return svc
}

func intPtr(n int) *int { return &n }

func boolPtr(b bool) *bool { return &b }

func datePtr(d domain.Date) *domain.Date { return &d }

func TestPromiseFromStock(t *testing.T) {
	provider := &stubProvider{
		stock: map[string]supply.StockBalance{
			"ITEM-A": {ActualQty: 90, AvailableQty: 90},
		},
	}
	svc := newTestService(provider, Options{DefaultProcessingLeadTimeDays: 1})

	result, err := svc.CalculatePromise(context.Background(), domain.PromiseRequest{
		Customer: "ACME",
		Items:    []domain.ItemRequest{{ItemCode: "ITEM-A", Qty: 50}},
		Rules: &domain.PromiseRules{
			LeadTimeBufferDays:     intPtr(1),
			ProcessingLeadTimeDays: intPtr(1),
			Timezone:               "UTC",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusOK, result.Status)
	assert.True(t, result.CanFulfill)
	require.NotNil(t, result.PromiseDate)
	assert.Equal(t, monday.AddDays(2), *result.PromiseDate)
	assert.Equal(t, domain.ConfidenceHigh, result.Confidence)

	require.Len(t, result.Plan, 1)
	assert.Zero(t, result.Plan[0].Shortage)
	require.Len(t, result.Plan[0].Fulfillment, 1)
	assert.Equal(t, domain.SourceStock, result.Plan[0].Fulfillment[0].Source)
	assert.Equal(t, 50.0, result.Plan[0].Fulfillment[0].Qty)
}

func TestPromiseFromIncomingPO(t *testing.T) {
	provider := &stubProvider{
		incoming: map[string]supply.IncomingResult{
			"ITEM-B": {
				Outcome: supply.AccessOK,
				Records: []supply.IncomingRecord{
					{POID: "PO-0001", ItemCode: "ITEM-B", Qty: 40, ExpectedDate: monday.AddDays(5)},
				},
			},
		},
	}
	svc := newTestService(provider, Options{DefaultProcessingLeadTimeDays: 1})

	result, err := svc.CalculatePromise(context.Background(), domain.PromiseRequest{
		Customer: "ACME",
		Items:    []domain.ItemRequest{{ItemCode: "ITEM-B", Qty: 30}},
		Rules: &domain.PromiseRules{
			LeadTimeBufferDays:     intPtr(1),
			ProcessingLeadTimeDays: intPtr(1),
			Timezone:               "UTC",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusOK, result.Status)
	require.NotNil(t, result.PromiseDate)
	assert.Equal(t, monday.AddDays(7), *result.PromiseDate)
	assert.Equal(t, domain.ConfidenceMedium, result.Confidence)

	require.Len(t, result.Plan[0].Fulfillment, 1)
	assert.Equal(t, domain.SourcePurchaseOrder, result.Plan[0].Fulfillment[0].Source)
	assert.Equal(t, "PO-0001", result.Plan[0].Fulfillment[0].POID)
	assert.Equal(t, 30.0, result.Plan[0].Fulfillment[0].Qty)
}

func TestShortageCannotFulfill(t *testing.T) {
	provider := &stubProvider{
		stock: map[string]supply.StockBalance{
			"ITEM-C": {ActualQty: 90, AvailableQty: 90},
		},
	}
	svc := newTestService(provider, Options{DefaultProcessingLeadTimeDays: 1})

	result, err := svc.CalculatePromise(context.Background(), domain.PromiseRequest{
		Customer: "ACME",
		Items:    []domain.ItemRequest{{ItemCode: "ITEM-C", Qty: 500}},
		Rules:    &domain.PromiseRules{Timezone: "UTC"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCannotFulfill, result.Status)
	assert.False(t, result.CanFulfill)
	assert.Nil(t, result.PromiseDate)
	assert.Equal(t, domain.ConfidenceLow, result.Confidence)
	assert.Equal(t, 410.0, result.Plan[0].Shortage)

	require.NotEmpty(t, result.Blockers)
	assert.Contains(t, result.Blockers[0], "410")
}

func TestNoEarlyDeliveryHoldsDate(t *testing.T) {
	provider := &stubProvider{
		stock: map[string]supply.StockBalance{
			"ITEM-A": {AvailableQty: 100},
		},
	}
	svc := newTestService(provider, Options{DefaultProcessingLeadTimeDays: 1})

	result, err := svc.CalculatePromise(context.Background(), domain.PromiseRequest{
		Customer:    "ACME",
		Items:       []domain.ItemRequest{{ItemCode: "ITEM-A", Qty: 10}},
		DesiredDate: datePtr(monday.AddDays(10)),
		Rules: &domain.PromiseRules{
			LeadTimeBufferDays:     intPtr(1),
			ProcessingLeadTimeDays: intPtr(1),
			Timezone:               "UTC",
			DesiredDateMode:        domain.DesiredDateNoEarlyDelivery,
		},
	})
	require.NoError(t, err)

	require.NotNil(t, result.PromiseDate)
	assert.Equal(t, monday.AddDays(10), *result.PromiseDate)
	assert.Equal(t, monday.AddDays(2), result.PromiseDateRaw)
	assert.True(t, result.AdjustedDueToNoEarlyDelivery)
	require.NotNil(t, result.OnTime)
	assert.True(t, *result.OnTime)
}

func TestAccessDeniedCannotPromiseReliably(t *testing.T) {
	provider := &stubProvider{
		incoming: map[string]supply.IncomingResult{
			"ITEM-X": {Outcome: supply.AccessDenied},
		},
	}
	svc := newTestService(provider, Options{DefaultProcessingLeadTimeDays: 1})

	result, err := svc.CalculatePromise(context.Background(), domain.PromiseRequest{
		Customer: "ACME",
		Items:    []domain.ItemRequest{{ItemCode: "ITEM-X", Qty: 5}},
		Rules:    &domain.PromiseRules{Timezone: "UTC"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCannotPromiseReliably, result.Status)
	assert.Nil(t, result.PromiseDate)
	assert.Equal(t, domain.ConfidenceLow, result.Confidence)

	found := false
	for _, b := range result.Blockers {
		if strings.Contains(strings.ToLower(b), "permission") {
			found = true
		}
	}
	assert.True(t, found, "expected a permission blocker, got %v", result.Blockers)
}

func TestWeekendOrderDateNormalized(t *testing.T) {
	provider := &stubProvider{
		stock: map[string]supply.StockBalance{
			"ITEM-A": {AvailableQty: 100},
		},
	}
	svc := newTestService(provider, Options{})
	// Friday.
	svc.now = func(loc *time.Location) time.Time {
		return time.Date(2026, time.January, 30, 9, 0, 0, 0, loc)
	}

	result, err := svc.CalculatePromise(context.Background(), domain.PromiseRequest{
		Customer: "ACME",
		Items:    []domain.ItemRequest{{ItemCode: "ITEM-A", Qty: 10}},
		Rules: &domain.PromiseRules{
			NoWeekends:             boolPtr(true),
			ProcessingLeadTimeDays: intPtr(0),
			Timezone:               "UTC",
		},
	})
	require.NoError(t, err)

	require.NotNil(t, result.PromiseDate)
	assert.Equal(t, domain.NewDate(2026, time.February, 1), *result.PromiseDate)
	assert.Equal(t, time.Sunday, result.PromiseDate.Weekday())
}

func TestProcessingLeadTimeHierarchy(t *testing.T) {
	provider := &stubProvider{
		stock: map[string]supply.StockBalance{
			"SPECIAL": {AvailableQty: 100},
			"PLAIN":   {AvailableQty: 100},
		},
	}

	tests := []struct {
		name     string
		opts     Options
		item     string
		rules    *domain.PromiseRules
		wantDays int
	}{
		{
			name: "item override wins",
			opts: Options{
				DefaultProcessingLeadTimeDays: 1,
				ItemLeadTimes:                 map[string]int{"SPECIAL": 5},
				WarehouseLeadTimes:            map[string]int{"Stores - WH": 3},
			},
			item:     "SPECIAL",
			rules:    &domain.PromiseRules{ProcessingLeadTimeDays: intPtr(2), Timezone: "UTC"},
			wantDays: 5,
		},
		{
			name: "warehouse override beats rule",
			opts: Options{
				DefaultProcessingLeadTimeDays: 1,
				WarehouseLeadTimes:            map[string]int{"Stores - WH": 3},
			},
			item:     "PLAIN",
			rules:    &domain.PromiseRules{ProcessingLeadTimeDays: intPtr(2), Timezone: "UTC"},
			wantDays: 3,
		},
		{
			name:     "rule beats default",
			opts:     Options{DefaultProcessingLeadTimeDays: 1},
			item:     "PLAIN",
			rules:    &domain.PromiseRules{ProcessingLeadTimeDays: intPtr(2), Timezone: "UTC"},
			wantDays: 2,
		},
		{
			name:     "system default",
			opts:     Options{DefaultProcessingLeadTimeDays: 1},
			item:     "PLAIN",
			rules:    &domain.PromiseRules{Timezone: "UTC"},
			wantDays: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(provider, tt.opts)
			result, err := svc.CalculatePromise(context.Background(), domain.PromiseRequest{
				Customer: "ACME",
				Items:    []domain.ItemRequest{{ItemCode: tt.item, Qty: 1}},
				Rules:    tt.rules,
			})
			require.NoError(t, err)
			require.NotNil(t, result.PromiseDate)
			assert.Equal(t, monday.AddDays(tt.wantDays), *result.PromiseDate)
		})
	}
}

func TestStrictFailRejectsLatePromise(t *testing.T) {
	provider := &stubProvider{
		incoming: map[string]supply.IncomingResult{
			"ITEM-B": {
				Outcome: supply.AccessOK,
				Records: []supply.IncomingRecord{
					{POID: "PO-0001", ItemCode: "ITEM-B", Qty: 40, ExpectedDate: monday.AddDays(5)},
				},
			},
		},
	}
	svc := newTestService(provider, Options{DefaultProcessingLeadTimeDays: 1})

	_, err := svc.CalculatePromise(context.Background(), domain.PromiseRequest{
		Customer:    "ACME",
		Items:       []domain.ItemRequest{{ItemCode: "ITEM-B", Qty: 30}},
		DesiredDate: datePtr(monday.AddDays(2)),
		Rules: &domain.PromiseRules{
			LeadTimeBufferDays:     intPtr(1),
			ProcessingLeadTimeDays: intPtr(1),
			Timezone:               "UTC",
			DesiredDateMode:        domain.DesiredDateStrictFail,
		},
	})

	var unmet *domain.DesiredDateUnmetError
	require.ErrorAs(t, err, &unmet)
	assert.Equal(t, monday.AddDays(2), unmet.Desired)
	assert.Equal(t, monday.AddDays(7), unmet.EarliestPossible)
	assert.Equal(t,
		"Cannot meet desired delivery date 2026-01-28. Earliest possible promise: 2026-02-02",
		err.Error())
}

func TestLatestAcceptableReportsLate(t *testing.T) {
	provider := &stubProvider{
		incoming: map[string]supply.IncomingResult{
			"ITEM-B": {
				Outcome: supply.AccessOK,
				Records: []supply.IncomingRecord{
					{POID: "PO-0001", ItemCode: "ITEM-B", Qty: 40, ExpectedDate: monday.AddDays(5)},
				},
			},
		},
	}
	svc := newTestService(provider, Options{DefaultProcessingLeadTimeDays: 1})

	result, err := svc.CalculatePromise(context.Background(), domain.PromiseRequest{
		Customer:    "ACME",
		Items:       []domain.ItemRequest{{ItemCode: "ITEM-B", Qty: 30}},
		DesiredDate: datePtr(monday.AddDays(2)),
		Rules: &domain.PromiseRules{
			LeadTimeBufferDays:     intPtr(1),
			ProcessingLeadTimeDays: intPtr(1),
			Timezone:               "UTC",
			DesiredDateMode:        domain.DesiredDateLatestAcceptable,
		},
	})
	require.NoError(t, err)

	require.NotNil(t, result.PromiseDate)
	assert.Equal(t, monday.AddDays(7), *result.PromiseDate)
	require.NotNil(t, result.OnTime)
	assert.False(t, *result.OnTime)
}

func TestCutoffPushesSameDayPromise(t *testing.T) {
	provider := &stubProvider{
		stock: map[string]supply.StockBalance{
			"ITEM-A": {AvailableQty: 100},
		},
	}
	svc := newTestService(provider, Options{})
	svc.now = func(loc *time.Location) time.Time {
		return time.Date(2026, time.January, 26, 15, 0, 0, 0, loc)
	}

	result, err := svc.CalculatePromise(context.Background(), domain.PromiseRequest{
		Customer: "ACME",
		Items:    []domain.ItemRequest{{ItemCode: "ITEM-A", Qty: 10}},
		Rules: &domain.PromiseRules{
			CutoffTime:             "14:00",
			ProcessingLeadTimeDays: intPtr(0),
			Timezone:               "UTC",
		},
	})
	require.NoError(t, err)

	require.NotNil(t, result.PromiseDate)
	assert.Equal(t, monday.AddDays(1), *result.PromiseDate)
}

func TestPartialRulesInheritDefaults(t *testing.T) {
	provider := &stubProvider{
		stock: map[string]supply.StockBalance{
			"ITEM-A": {AvailableQty: 100},
		},
	}
	svc := newTestService(provider, Options{
		DefaultRules: Rules{NoWeekends: true, LeadTimeBufferDays: 1, Timezone: "UTC"},
	})
	// Thursday.
	svc.now = func(loc *time.Location) time.Time {
		return time.Date(2026, time.January, 29, 9, 0, 0, 0, loc)
	}

	// A rules block that only picks a mode must not reset the configured
	// weekend rule or buffer.
	result, err := svc.CalculatePromise(context.Background(), domain.PromiseRequest{
		Customer: "ACME",
		Items:    []domain.ItemRequest{{ItemCode: "ITEM-A", Qty: 10}},
		Rules:    &domain.PromiseRules{DesiredDateMode: domain.DesiredDateLatestAcceptable},
	})
	require.NoError(t, err)

	require.NotNil(t, result.PromiseDate)
	assert.Equal(t, domain.NewDate(2026, time.February, 1), *result.PromiseDate)
	assert.Equal(t, time.Sunday, result.PromiseDate.Weekday())
}

func TestCutoffExactMinuteShipsSameDay(t *testing.T) {
	provider := &stubProvider{
		stock: map[string]supply.StockBalance{
			"ITEM-A": {AvailableQty: 100},
		},
	}
	svc := newTestService(provider, Options{})
	svc.now = func(loc *time.Location) time.Time {
		return time.Date(2026, time.January, 26, 14, 0, 0, 0, loc)
	}

	result, err := svc.CalculatePromise(context.Background(), domain.PromiseRequest{
		Customer: "ACME",
		Items:    []domain.ItemRequest{{ItemCode: "ITEM-A", Qty: 10}},
		Rules: &domain.PromiseRules{
			CutoffTime:             "14:00",
			ProcessingLeadTimeDays: intPtr(0),
			Timezone:               "UTC",
		},
	})
	require.NoError(t, err)

	require.NotNil(t, result.PromiseDate)
	assert.Equal(t, monday, *result.PromiseDate)
}

func TestCutoffSkippedWhenPromiseBeyondToday(t *testing.T) {
	provider := &stubProvider{
		stock: map[string]supply.StockBalance{
			"ITEM-A": {AvailableQty: 100},
		},
	}
	svc := newTestService(provider, Options{})
	svc.now = func(loc *time.Location) time.Time {
		return time.Date(2026, time.January, 26, 15, 0, 0, 0, loc)
	}

	result, err := svc.CalculatePromise(context.Background(), domain.PromiseRequest{
		Customer: "ACME",
		Items:    []domain.ItemRequest{{ItemCode: "ITEM-A", Qty: 10}},
		Rules: &domain.PromiseRules{
			CutoffTime:             "14:00",
			ProcessingLeadTimeDays: intPtr(2),
			Timezone:               "UTC",
		},
	})
	require.NoError(t, err)

	require.NotNil(t, result.PromiseDate)
	assert.Equal(t, monday.AddDays(2), *result.PromiseDate)
}

func TestIncomingConsumedInExpectedDateOrder(t *testing.T) {
	provider := &stubProvider{
		incoming: map[string]supply.IncomingResult{
			"ITEM-B": {
				Outcome: supply.AccessOK,
				Records: []supply.IncomingRecord{
					{POID: "PO-0009", ItemCode: "ITEM-B", Qty: 20, ExpectedDate: monday.AddDays(9)},
					{POID: "PO-0002", ItemCode: "ITEM-B", Qty: 20, ExpectedDate: monday.AddDays(3)},
					{POID: "PO-0001", ItemCode: "ITEM-B", Qty: 20, ExpectedDate: monday.AddDays(3)},
				},
			},
		},
	}
	svc := newTestService(provider, Options{})

	result, err := svc.CalculatePromise(context.Background(), domain.PromiseRequest{
		Customer: "ACME",
		Items:    []domain.ItemRequest{{ItemCode: "ITEM-B", Qty: 50}},
		Rules:    &domain.PromiseRules{ProcessingLeadTimeDays: intPtr(0), Timezone: "UTC"},
	})
	require.NoError(t, err)

	fulfillment := result.Plan[0].Fulfillment
	require.Len(t, fulfillment, 3)
	assert.Equal(t, "PO-0001", fulfillment[0].POID)
	assert.Equal(t, "PO-0002", fulfillment[1].POID)
	assert.Equal(t, "PO-0009", fulfillment[2].POID)
	assert.Equal(t, 10.0, fulfillment[2].Qty)
}

func TestAllocationConservesQuantity(t *testing.T) {
	provider := &stubProvider{
		stock: map[string]supply.StockBalance{
			"ITEM-A": {AvailableQty: 15},
		},
		incoming: map[string]supply.IncomingResult{
			"ITEM-A": {
				Outcome: supply.AccessOK,
				Records: []supply.IncomingRecord{
					{POID: "PO-0001", ItemCode: "ITEM-A", Qty: 20, ExpectedDate: monday.AddDays(4)},
				},
			},
		},
	}
	svc := newTestService(provider, Options{})

	result, err := svc.CalculatePromise(context.Background(), domain.PromiseRequest{
		Customer: "ACME",
		Items:    []domain.ItemRequest{{ItemCode: "ITEM-A", Qty: 50}},
		Rules:    &domain.PromiseRules{Timezone: "UTC"},
	})
	require.NoError(t, err)

	plan := result.Plan[0]
	var allocated float64
	for _, f := range plan.Fulfillment {
		allocated += f.Qty
	}
	assert.Equal(t, plan.QtyRequired, allocated+plan.Shortage)
	assert.Equal(t, 15.0, plan.Shortage)
}

func TestDeterministicResults(t *testing.T) {
	provider := &stubProvider{
		stock: map[string]supply.StockBalance{
			"ITEM-A": {AvailableQty: 30},
			"ITEM-B": {AvailableQty: 5},
		},
		incoming: map[string]supply.IncomingResult{
			"ITEM-B": {
				Outcome: supply.AccessOK,
				Records: []supply.IncomingRecord{
					{POID: "PO-0001", ItemCode: "ITEM-B", Qty: 50, ExpectedDate: monday.AddDays(6)},
				},
			},
		},
	}
	svc := newTestService(provider, Options{DefaultProcessingLeadTimeDays: 1})

	req := domain.PromiseRequest{
		Customer: "ACME",
		Items: []domain.ItemRequest{
			{ItemCode: "ITEM-A", Qty: 10},
			{ItemCode: "ITEM-B", Qty: 20},
		},
		Rules: &domain.PromiseRules{LeadTimeBufferDays: intPtr(1), Timezone: "UTC"},
	}

	first, err := svc.CalculatePromise(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.CalculatePromise(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestConfidenceLowOnDistantSupply(t *testing.T) {
	provider := &stubProvider{
		incoming: map[string]supply.IncomingResult{
			"ITEM-B": {
				Outcome: supply.AccessOK,
				Records: []supply.IncomingRecord{
					{POID: "PO-0001", ItemCode: "ITEM-B", Qty: 30, ExpectedDate: monday.AddDays(20)},
				},
			},
		},
	}
	svc := newTestService(provider, Options{})

	result, err := svc.CalculatePromise(context.Background(), domain.PromiseRequest{
		Customer: "ACME",
		Items:    []domain.ItemRequest{{ItemCode: "ITEM-B", Qty: 30}},
		Rules:    &domain.PromiseRules{Timezone: "UTC"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ConfidenceLow, result.Confidence)
	require.NotEmpty(t, result.Options)
	assert.Equal(t, "expedite_po", result.Options[0].Type)
}

func TestValidation(t *testing.T) {
	svc := newTestService(&stubProvider{}, Options{})

	tests := []struct {
		name  string
		req   domain.PromiseRequest
		field string
	}{
		{
			name:  "empty customer",
			req:   domain.PromiseRequest{Items: []domain.ItemRequest{{ItemCode: "A", Qty: 1}}},
			field: "customer",
		},
		{
			name:  "no items",
			req:   domain.PromiseRequest{Customer: "ACME"},
			field: "items",
		},
		{
			name: "non-positive qty",
			req: domain.PromiseRequest{
				Customer: "ACME",
				Items:    []domain.ItemRequest{{ItemCode: "A", Qty: 0}},
			},
			field: "items[0].qty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CalculatePromise(context.Background(), tt.req)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestGroupWarehouseHoldsNoStock(t *testing.T) {
	provider := &stubProvider{
		stock: map[string]supply.StockBalance{
			"ITEM-A": {AvailableQty: 100},
		},
	}
	svc := newTestService(provider, Options{})

	result, err := svc.CalculatePromise(context.Background(), domain.PromiseRequest{
		Customer: "ACME",
		Items:    []domain.ItemRequest{{ItemCode: "ITEM-A", Qty: 10, Warehouse: "All Warehouses - WH"}},
		Rules:    &domain.PromiseRules{Timezone: "UTC"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCannotFulfill, result.Status)
	assert.Equal(t, 10.0, result.Plan[0].Shortage)

	found := false
	for _, r := range result.Reasons {
		if strings.Contains(r, "group warehouse") && strings.Contains(r, "Stores - WH") {
			found = true
		}
	}
	assert.True(t, found, "expected a reason naming the child warehouses, got %v", result.Reasons)
}
