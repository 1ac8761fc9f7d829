//go:build windows

package psql

import "os"

// decodeWaitStatus on Windows has no signal convention; only the exit code
// is meaningful.
func decodeWaitStatus(state *os.ProcessState) ProcessOutcome {
	return Completed(state.ExitCode())
}
