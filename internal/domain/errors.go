package domain

import "fmt"

// ValidationError rejects caller input before any allocation runs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DesiredDateUnmetError is the STRICT_FAIL rejection: a policy violation, not
// a data or shortage problem. EarliestPossible carries the raw promise so the
// caller can renegotiate.
type DesiredDateUnmetError struct {
	Desired          Date
	EarliestPossible Date
}

func (e *DesiredDateUnmetError) Error() string {
	return fmt.Sprintf(
		"Cannot meet desired delivery date %s. Earliest possible promise: %s",
		e.Desired, e.EarliestPossible,
	)
}
