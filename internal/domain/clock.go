package domain

import "github.com/jonboulle/clockwork"

// clock is the time source for run metadata such as manifest timestamps and
// generated data windows. The transform stages never read it; they only use
// the timestamps carried by the records.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Clock returns the current time source.
func Clock() clockwork.Clock {
	return clock
}
