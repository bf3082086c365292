package catalog

// Unlimited is the plan limit meaning "no ceiling".
const Unlimited = -1

// Slots is the outcome of a quota evaluation.
type Slots struct {
	Allowed int `json:"allowed"`
	Blocked int `json:"blocked"`
}

// EvaluateSlots computes how many of requested items fit under limit given
// currentTotal. A negative limit is unlimited.
func EvaluateSlots(currentTotal, requested, limit int) Slots {
	if requested < 0 {
		requested = 0
	}
	if limit < 0 {
		return Slots{Allowed: requested}
	}
	free := limit - currentTotal
	if free < 0 {
		free = 0
	}
	allowed := requested
	if free < allowed {
		allowed = free
	}
	return Slots{Allowed: allowed, Blocked: requested - allowed}
}
