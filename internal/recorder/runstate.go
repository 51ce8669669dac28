package recorder

import "sync/atomic"

// RunState is the shared "keep recording" flag. Signal handlers and the
// service only ever call Stop on it.
type RunState struct {
	running atomic.Bool
}

// NewRunState returns a RunState that is running
func NewRunState() *RunState {
	rs := &RunState{}
	rs.running.Store(true)
	return rs
}

// Stop asks the session to finish. It is safe to call from any goroutine,
// any number of times.
func (rs *RunState) Stop() {
	rs.running.Store(false)
}

func (rs *RunState) Running() bool {
	return rs.running.Load()
}
