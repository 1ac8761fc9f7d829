package psql

import "fmt"

// OutcomeKind discriminates how a subprocess ended.
type OutcomeKind int

const (
	// OutcomeCompleted means the process exited on its own.
	OutcomeCompleted OutcomeKind = iota

	// OutcomeKilled means the process was terminated by a signal.
	OutcomeKilled

	// OutcomeTimedOut means the harness killed the process because the
	// configured timeout expired.
	OutcomeTimedOut
)

// ProcessOutcome is the decoded exit state of the external client. The
// platform-specific status-word layout is confined to the decoders in
// outcome_unix.go and outcome_windows.go.
type ProcessOutcome struct {
	Kind       OutcomeKind
	ExitCode   int
	Signal     int
	CoreDumped bool
}

// Completed returns the outcome of a normal exit with code.
func Completed(code int) ProcessOutcome {
	return ProcessOutcome{Kind: OutcomeCompleted, ExitCode: code}
}

// KilledBySignal returns the outcome of a signal death.
func KilledBySignal(sig int, coreDumped bool) ProcessOutcome {
	return ProcessOutcome{Kind: OutcomeKilled, Signal: sig, CoreDumped: coreDumped}
}

// TimedOut returns the outcome of a harness-enforced timeout.
func TimedOut() ProcessOutcome {
	return ProcessOutcome{Kind: OutcomeTimedOut}
}

func (o ProcessOutcome) String() string {
	switch o.Kind {
	case OutcomeKilled:
		return fmt.Sprintf("killed by signal %d (core dumped: %v)", o.Signal, o.CoreDumped)
	case OutcomeTimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("exited with code %d", o.ExitCode)
	}
}
