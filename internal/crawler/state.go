package crawler

import "fmt"

// State is the lifecycle phase of a Crawler.
type State int

const (
	// StateRunning is the initial phase. Crawl pumps work into the pool.
	StateRunning State = iota

	// StatePaused defers pumping until Resume. Tasks already in the pool
	// keep running.
	StatePaused

	// StateAborted stops pumping for good. Pending tasks are dropped and the
	// crawl completes once in-flight tasks finish.
	StateAborted

	// StateCompleted is terminal.
	StateCompleted
)

// String returns the lower-case name of the state.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateAborted:
		return "aborted"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so states encode as names.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for the names
// produced by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateRunning, StatePaused, StateAborted, StateCompleted} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown crawler state %q", text)
}

// Terminal reports whether no further work will be pumped.
func (s State) Terminal() bool {
	return s == StateAborted || s == StateCompleted
}
