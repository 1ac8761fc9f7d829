// Package psql runs SQL through the external client as a subprocess, with
// timeout enforcement and signal-aware exit decoding.
package psql

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joacominatel/pgharness/internal/cluster"
)

// Options configures one invocation of the external client.
type Options struct {
	// Stdout and Stderr receive the captured output. They are reset at
	// the start of every run so a reused buffer never accumulates output
	// from prior invocations. When nil the runner captures internally.
	Stdout *bytes.Buffer
	Stderr *bytes.Buffer

	// Timeout bounds the run. Zero waits unboundedly.
	Timeout time.Duration

	// TimedOut, when non-nil, receives true if the timeout expired. With
	// the flag supplied a timeout is not an error; without it, it is.
	TimedOut *bool

	// ExtraArgs are appended verbatim after the built-in arguments.
	ExtraArgs []string

	// OnErrorStop makes the client stop at the first SQL error.
	OnErrorStop bool

	// OnErrorDie promotes a nonzero exit code to an error, classified by
	// the client's exit-code convention.
	OnErrorDie bool

	// ConnectionOverride replaces the cluster-built connection
	// descriptor.
	ConnectionOverride string
}

// DefaultOptions returns the defaults: stop at the first SQL error, no
// timeout, nonzero exits left to the caller.
func DefaultOptions() *Options {
	return &Options{OnErrorStop: true}
}

// IsDefault reports whether o carries nothing beyond the defaults. The
// driver uses this to decide fast-path eligibility.
func (o *Options) IsDefault() bool {
	if o == nil {
		return true
	}
	return o.Stdout == nil && o.Stderr == nil &&
		o.Timeout == 0 && o.TimedOut == nil &&
		len(o.ExtraArgs) == 0 && o.OnErrorStop &&
		!o.OnErrorDie && o.ConnectionOverride == ""
}

// RunResult is the uniform outcome of one invocation. Stdout and Stderr
// have one trailing newline stripped.
type RunResult struct {
	Stdout  string
	Stderr  string
	Outcome ProcessOutcome
}

// Runner invokes the external SQL client against a cluster.
type Runner struct {
	cluster  cluster.Cluster
	psqlPath string
	log      *logrus.Entry
}

// NewRunner returns a Runner for the given cluster using the client binary
// at psqlPath.
func NewRunner(c cluster.Cluster, psqlPath string) *Runner {
	return &Runner{
		cluster:  c,
		psqlPath: psqlPath,
		log:      logrus.WithField("component", "psql"),
	}
}

// Run feeds sql to the external client on standard input, configured for
// unaligned, tuples-only, quiet, non-interactive output with no startup
// file. Timeout expiry is the sole cancellation trigger and always
// terminates the subprocess.
func (r *Runner) Run(dbname, sql string, opts *Options) (*RunResult, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	target := opts.ConnectionOverride
	if target == "" {
		target = r.cluster.ConnectionInfoFragment(dbname)
	}

	args := []string{"-X", "-A", "-t", "-q"}
	if opts.OnErrorStop {
		args = append(args, "-v", "ON_ERROR_STOP=1")
	}
	args = append(args, "-d", target, "-f", "-")
	args = append(args, opts.ExtraArgs...)

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	outBuf := opts.Stdout
	if outBuf == nil {
		outBuf = &bytes.Buffer{}
	}
	errBuf := opts.Stderr
	if errBuf == nil {
		errBuf = &bytes.Buffer{}
	}
	outBuf.Reset()
	errBuf.Reset()
	if opts.TimedOut != nil {
		*opts.TimedOut = false
	}

	cmd := exec.CommandContext(ctx, r.psqlPath, args...)
	cmd.Stdin = strings.NewReader(sql)
	cmd.Stdout = outBuf
	cmd.Stderr = errBuf
	if libDir := r.cluster.ClientLibraryDirectory(); libDir != "" {
		cmd.Env = append(os.Environ(), "LD_LIBRARY_PATH="+libDir)
	}

	r.log.WithFields(logrus.Fields{"args": args, "dbname": dbname}).Debug("running external client")
	runErr := cmd.Run()

	res := &RunResult{
		Stdout: trimOneNewline(outBuf.String()),
		Stderr: trimOneNewline(errBuf.String()),
	}
	fullArgs := append([]string{r.psqlPath}, args...)

	if opts.Timeout > 0 && ctx.Err() == context.DeadlineExceeded {
		res.Outcome = TimedOut()
		if opts.TimedOut != nil {
			*opts.TimedOut = true
			return res, nil
		}
		return nil, &RunError{
			Reason:  fmt.Sprintf("timed out after %s", opts.Timeout),
			Args:    fullArgs,
			Stderr:  res.Stderr,
			Outcome: res.Outcome,
		}
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, &RunError{
				Reason: "failed to start",
				Args:   fullArgs,
				Stderr: res.Stderr,
				Cause:  runErr,
			}
		}
		res.Outcome = decodeWaitStatus(exitErr.ProcessState)
	} else {
		res.Outcome = Completed(0)
	}

	// A client crash is an environment fault the test cannot continue
	// past, regardless of OnErrorDie.
	if res.Outcome.Kind == OutcomeKilled {
		return nil, &RunError{
			Reason:  res.Outcome.String(),
			Args:    fullArgs,
			Stderr:  res.Stderr,
			Outcome: res.Outcome,
		}
	}

	if res.Outcome.ExitCode != 0 && opts.OnErrorDie {
		return nil, classifyExit(res.Outcome, fullArgs, res.Stderr, sql)
	}

	return res, nil
}

// classifyExit maps the client's exit-code convention to fatal errors:
// 1 generic failure, 2 connection failure, 3 SQL error, anything else
// unrecognized.
func classifyExit(outcome ProcessOutcome, args []string, stderr, sql string) error {
	e := &RunError{Args: args, Stderr: stderr, Outcome: outcome}
	switch outcome.ExitCode {
	case 1:
		e.Reason = "external SQL client failed"
	case 2:
		e.Reason = "connection to the database failed"
	case 3:
		e.Reason = "error running SQL"
		e.SQL = sql
	default:
		e.Reason = fmt.Sprintf("unrecognized exit status %d", outcome.ExitCode)
	}
	return e
}

// trimOneNewline strips exactly one trailing newline if present.
func trimOneNewline(s string) string {
	return strings.TrimSuffix(s, "\n")
}
