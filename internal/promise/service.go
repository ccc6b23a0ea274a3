package promise

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/otp-service/internal/calendar"
	"github.com/andresuchdata/otp-service/internal/domain"
	"github.com/andresuchdata/otp-service/internal/supply"
	"github.com/andresuchdata/otp-service/internal/warehouse"
)

// Rules is a fully resolved set of business rules for one calculation:
// the per-call overrides merged over the configured defaults.
// ProcessingLeadTimeDays stays a pointer because it is one level of the
// lead-time override hierarchy, not a final value.
type Rules struct {
	NoWeekends             bool
	CutoffTime             string
	Timezone               string
	LeadTimeBufferDays     int
	ProcessingLeadTimeDays *int
	DesiredDateMode        domain.DesiredDateMode
}

// Options configure a promise Service. Lead-time override maps are keyed by
// item code and warehouse name respectively; lookups are case-insensitive.
type Options struct {
	DefaultWarehouse              string
	DefaultProcessingLeadTimeDays int
	DefaultRules                  Rules
	ItemLeadTimes                 map[string]int
	WarehouseLeadTimes            map[string]int
}

// Service computes order promise dates from a supply provider and a warehouse
// ruleset. The clock is injected so calculations are reproducible in tests.
type Service struct {
	supply     supply.Provider
	warehouses *warehouse.Ruleset
	opts       Options

	itemLeadTimes      map[string]int
	warehouseLeadTimes map[string]int

	now func(*time.Location) time.Time
}

func NewService(provider supply.Provider, warehouses *warehouse.Ruleset, opts Options) *Service {
	return &Service{
		supply:             provider,
		warehouses:         warehouses,
		opts:               opts,
		itemLeadTimes:      normalizeLeadTimes(opts.ItemLeadTimes),
		warehouseLeadTimes: normalizeLeadTimes(opts.WarehouseLeadTimes),
		now: func(loc *time.Location) time.Time {
			return time.Now().In(loc)
		},
	}
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeLeadTimes(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[normalizeKey(k)] = v
	}
	return out
}

// CalculatePromise runs the full pipeline for one request: validate, allocate
// each item, aggregate ship-ready dates into a single promise, reconcile with
// the desired date, score confidence and synthesize the explanation.
//
// Identical inputs at the same clock reading always produce identical results;
// items are planned in request order and incoming supply is consumed in a
// stable order.
func (s *Service) CalculatePromise(ctx context.Context, req domain.PromiseRequest) (*domain.PromiseResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	rules := s.effectiveRules(req.Rules)

	loc, err := time.LoadLocation(rules.Timezone)
	if err != nil {
		return nil, &domain.ValidationError{Field: "rules.timezone", Reason: fmt.Sprintf("unknown timezone %q", rules.Timezone)}
	}
	nowLocal := s.now(loc)

	today := domain.DateOf(nowLocal)
	if rules.NoWeekends && !calendar.IsWorkingDay(today) {
		today = calendar.NextWorkingDay(today)
	}

	plans := make([]domain.ItemPlan, 0, len(req.Items))
	var notes []string
	var issues []accessIssue
	for _, item := range req.Items {
		alloc := s.allocateItem(ctx, item, rules, today)
		plans = append(plans, alloc.plan)
		notes = append(notes, alloc.notes...)
		if alloc.accessIssue != nil {
			issues = append(issues, *alloc.accessIssue)
		}
	}

	base, raw := s.aggregate(plans, rules, today, nowLocal)

	outcome, err := resolveDesired(raw, req.DesiredDate, rules.DesiredDateMode)
	if err != nil {
		return nil, err
	}

	confidence := scoreConfidence(plans, today, len(issues) > 0)

	canFulfill := true
	for _, plan := range plans {
		if plan.Shortage > 0 {
			canFulfill = false
			break
		}
	}

	status := domain.StatusOK
	if !canFulfill {
		status = domain.StatusCannotFulfill
		if len(issues) > 0 {
			status = domain.StatusCannotPromiseReliably
		}
	}

	var promiseDate *domain.Date
	if canFulfill {
		p := outcome.promise
		promiseDate = &p
	}

	reasons, blockers, options := explain(explainInput{
		plans:   plans,
		notes:   notes,
		issues:  issues,
		rules:   rules,
		today:   today,
		base:    base,
		raw:     raw,
		desired: req.DesiredDate,
		outcome: outcome,
	})

	log.Info().
		Str("customer", req.Customer).
		Int("items", len(req.Items)).
		Str("status", string(status)).
		Str("confidence", string(confidence)).
		Str("promise_date_raw", raw.String()).
		Msg("promise calculated")

	return &domain.PromiseResult{
		Status:                       status,
		CanFulfill:                   canFulfill,
		PromiseDate:                  promiseDate,
		PromiseDateRaw:               raw,
		DesiredDate:                  req.DesiredDate,
		DesiredDateMode:              rules.DesiredDateMode,
		OnTime:                       outcome.onTime,
		AdjustedDueToNoEarlyDelivery: outcome.adjusted,
		Confidence:                   confidence,
		Plan:                         plans,
		Reasons:                      reasons,
		Blockers:                     blockers,
		Options:                      options,
	}, nil
}

func validate(req domain.PromiseRequest) error {
	if strings.TrimSpace(req.Customer) == "" {
		return &domain.ValidationError{Field: "customer", Reason: "must not be empty"}
	}
	if len(req.Items) == 0 {
		return &domain.ValidationError{Field: "items", Reason: "must contain at least one item"}
	}
	for i, item := range req.Items {
		if strings.TrimSpace(item.ItemCode) == "" {
			return &domain.ValidationError{
				Field:  fmt.Sprintf("items[%d].item_code", i),
				Reason: "must not be empty",
			}
		}
		if item.Qty <= 0 {
			return &domain.ValidationError{
				Field:  fmt.Sprintf("items[%d].qty", i),
				Reason: "must be greater than zero",
			}
		}
	}
	return nil
}

// effectiveRules merges per-call rules over the configured defaults. A nil
// rules block means "use the defaults"; a present block wins only for the
// fields it actually supplies.
func (s *Service) effectiveRules(override *domain.PromiseRules) Rules {
	rules := s.opts.DefaultRules
	if override == nil {
		return rules
	}

	if override.NoWeekends != nil {
		rules.NoWeekends = *override.NoWeekends
	}
	if override.CutoffTime != "" {
		rules.CutoffTime = override.CutoffTime
	}
	if override.Timezone != "" {
		rules.Timezone = override.Timezone
	}
	if override.LeadTimeBufferDays != nil {
		rules.LeadTimeBufferDays = *override.LeadTimeBufferDays
	}
	if override.ProcessingLeadTimeDays != nil {
		rules.ProcessingLeadTimeDays = override.ProcessingLeadTimeDays
	}
	if override.DesiredDateMode != "" {
		rules.DesiredDateMode = override.DesiredDateMode
	}
	return rules
}

// aggregate folds per-item plans into the order-level promise: the base is the
// latest ship-ready date across all sources, then the lead-time buffer, the
// same-day cutoff and the weekend snap are applied in that order. Both the
// base and the final raw promise are returned for the explanation layer.
func (s *Service) aggregate(plans []domain.ItemPlan, rules Rules, today domain.Date, nowLocal time.Time) (base, raw domain.Date) {
	base = today
	for _, plan := range plans {
		for _, f := range plan.Fulfillment {
			if f.ShipReadyDate.After(base) {
				base = f.ShipReadyDate
			}
		}
	}

	raw = addLeadDays(base, rules.LeadTimeBufferDays, rules.NoWeekends)

	// The cutoff only matters for same-day promises: an order placed after
	// the cutoff cannot ship today.
	if raw.Equal(today) && pastCutoff(nowLocal, rules.CutoffTime) {
		raw = raw.AddDays(1)
	}

	if rules.NoWeekends && !calendar.IsWorkingDay(raw) {
		raw = calendar.NextWorkingDay(raw)
	}
	return base, raw
}

// pastCutoff reports whether the local clock is strictly past a "HH:MM"
// cutoff; an order at the cutoff minute still ships same-day. A missing or
// malformed cutoff never blocks same-day shipping.
func pastCutoff(nowLocal time.Time, cutoff string) bool {
	if cutoff == "" {
		return false
	}
	parsed, err := time.Parse("15:04", cutoff)
	if err != nil {
		log.Warn().Str("cutoff", cutoff).Msg("ignoring malformed cutoff time")
		return false
	}
	nowMinutes := nowLocal.Hour()*60 + nowLocal.Minute()
	cutoffMinutes := parsed.Hour()*60 + parsed.Minute()
	return nowMinutes > cutoffMinutes
}
