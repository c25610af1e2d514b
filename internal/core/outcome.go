package core

// Outcome is the result of one book update.
type Outcome uint16

const (
	OutcomeUnknown Outcome = iota
	// OutcomeStaleBook: the two instruments are not on the same sequence yet.
	OutcomeStaleBook
	// OutcomeEmptyBook: a required top-of-book price is the no-quote sentinel.
	OutcomeEmptyBook
	// OutcomeNoSignal: the strategy found nothing to trade.
	OutcomeNoSignal
	// OutcomeKillSwitch: signals were updated but trading is halted.
	OutcomeKillSwitch
	// OutcomeDecided: at least one order was submitted.
	OutcomeDecided
	// OutcomeIgnored: the update named an unknown instrument.
	OutcomeIgnored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStaleBook:
		return "stale_book"
	case OutcomeEmptyBook:
		return "empty_book"
	case OutcomeNoSignal:
		return "no_signal"
	case OutcomeKillSwitch:
		return "kill_switch"
	case OutcomeDecided:
		return "decided"
	case OutcomeIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// OutcomeName adapts Outcome.String for metric labels.
func OutcomeName(code uint16) string {
	return Outcome(code).String()
}
