package strategy

import "sync"

// State is the lifecycle position of a strategy instance.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateAnalyzing
	StateIdle
	StateCleanedUp
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateAnalyzing:
		return "analyzing"
	case StateIdle:
		return "idle"
	case StateCleanedUp:
		return "cleaned_up"
	default:
		return "unknown"
	}
}

// lifecycle guards the state transitions shared by every strategy.
type lifecycle struct {
	mu    sync.Mutex
	state State
}

func (l *lifecycle) current() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *lifecycle) initialize() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case StateCleanedUp:
		return ErrCleanedUp
	case StateAnalyzing:
		return ErrAnalysisInProgress
	}
	l.state = StateInitialized
	return nil
}

func (l *lifecycle) usable() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.usableLocked()
}

func (l *lifecycle) usableLocked() error {
	switch l.state {
	case StateUninitialized:
		return ErrNotInitialized
	case StateCleanedUp:
		return ErrCleanedUp
	}
	return nil
}

func (l *lifecycle) beginAnalyze() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.usableLocked(); err != nil {
		return err
	}
	if l.state == StateAnalyzing {
		return ErrAnalysisInProgress
	}
	l.state = StateAnalyzing
	return nil
}

func (l *lifecycle) endAnalyze() {
	l.mu.Lock()
	if l.state == StateAnalyzing {
		l.state = StateIdle
	}
	l.mu.Unlock()
}

func (l *lifecycle) cleanup() {
	l.mu.Lock()
	l.state = StateCleanedUp
	l.mu.Unlock()
}
