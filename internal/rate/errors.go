package rate

import "errors"

// ErrCounterUnavailable wraps backend failures from a Counter.
var ErrCounterUnavailable = errors.New("rate counter unavailable")
