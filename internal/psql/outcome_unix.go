//go:build unix

package psql

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// decodeWaitStatus unpacks the wait status word: a nonzero low byte is the
// terminating signal, otherwise the next byte carries the exit code.
func decodeWaitStatus(state *os.ProcessState) ProcessOutcome {
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		return Completed(state.ExitCode())
	}

	status := unix.WaitStatus(ws)
	if status.Signaled() {
		return KilledBySignal(int(status.Signal()), status.CoreDump())
	}
	return Completed(status.ExitStatus())
}
