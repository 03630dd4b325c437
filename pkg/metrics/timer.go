package metrics

import "time"

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since the timer was started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveOperation records the elapsed time in seconds under
// OperationDuration with the given op label.
func (t *Timer) ObserveOperation(op string) {
	OperationDuration.WithLabelValues(op).Observe(t.Duration().Seconds())
}
