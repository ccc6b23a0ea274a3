package promise

import "github.com/andresuchdata/otp-service/internal/domain"

// desiredOutcome is the reconciliation of a raw promise against the
// customer's desired date. OnTime is nil when no desired date was supplied.
type desiredOutcome struct {
	promise  domain.Date
	onTime   *bool
	adjusted bool
}

// desiredDateStrategy is one pure reconciliation policy. STRICT_FAIL is the
// only strategy that can fail, with a DesiredDateUnmetError.
type desiredDateStrategy func(raw, desired domain.Date) (desiredOutcome, error)

// resolveDesired dispatches on the desired-date mode. Without a desired date
// the raw promise passes through unchanged.
func resolveDesired(raw domain.Date, desired *domain.Date, mode domain.DesiredDateMode) (desiredOutcome, error) {
	if desired == nil {
		return desiredOutcome{promise: raw}, nil
	}
	return strategyFor(mode)(raw, *desired)
}

func strategyFor(mode domain.DesiredDateMode) desiredDateStrategy {
	switch mode {
	case domain.DesiredDateStrictFail:
		return strictFail
	case domain.DesiredDateNoEarlyDelivery:
		return noEarlyDelivery
	default:
		return latestAcceptable
	}
}

// latestAcceptable treats the desired date as a deadline: the raw promise
// always stands and on_time reports whether the deadline is met.
func latestAcceptable(raw, desired domain.Date) (desiredOutcome, error) {
	onTime := !raw.After(desired)
	return desiredOutcome{promise: raw, onTime: &onTime}, nil
}

// strictFail behaves like latestAcceptable on time, and rejects the whole
// calculation otherwise, carrying the earliest achievable date.
func strictFail(raw, desired domain.Date) (desiredOutcome, error) {
	if raw.After(desired) {
		return desiredOutcome{}, &domain.DesiredDateUnmetError{
			Desired:          desired,
			EarliestPossible: raw,
		}
	}
	return latestAcceptable(raw, desired)
}

// noEarlyDelivery holds delivery at the desired date when the order could
// ship earlier; a late raw promise stands unadjusted.
func noEarlyDelivery(raw, desired domain.Date) (desiredOutcome, error) {
	if raw.Before(desired) {
		onTime := true
		return desiredOutcome{promise: desired, onTime: &onTime, adjusted: true}, nil
	}
	onTime := raw.Equal(desired)
	return desiredOutcome{promise: raw, onTime: &onTime}, nil
}
