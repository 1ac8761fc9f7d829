// Package driver dispatches SQL to the protocol session (fast path) or the
// external client subprocess (general path) and exposes polling utilities on
// top of the session layer.
package driver

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/joacominatel/pgharness/internal/cluster"
	"github.com/joacominatel/pgharness/internal/config"
	"github.com/joacominatel/pgharness/internal/protocol"
	"github.com/joacominatel/pgharness/internal/psql"
	"github.com/joacominatel/pgharness/internal/session"
)

type pathKind int

const (
	fastPath pathKind = iota
	generalPath
)

// classify picks the execution path. The fast path requires a non-empty
// statement with no terminator followed by further content, and no options
// beyond the defaults. This is a deliberate terminator scan, not SQL
// parsing: a ";" inside a string or comment literal sends the statement down
// the general path, which is always correct, only slower.
func classify(sql string, opts *psql.Options) pathKind {
	if !opts.IsDefault() {
		return generalPath
	}
	if strings.TrimSpace(sql) == "" {
		return generalPath
	}
	if i := strings.IndexByte(sql, ';'); i >= 0 && strings.TrimSpace(sql[i+1:]) != "" {
		return generalPath
	}
	return fastPath
}

// Driver gives test code uniform SQL execution over both paths. It caches
// one session per database so repeated fast-path calls skip connection
// setup.
type Driver struct {
	cluster  cluster.Cluster
	cfg      *config.Config
	dial     protocol.Dialer
	runner   *psql.Runner
	sessions map[string]*session.Session
	log      *logrus.Entry
}

// New returns a Driver for the given cluster. dial supplies protocol
// connections for the fast path.
func New(clu cluster.Cluster, cfg *config.Config, dial protocol.Dialer) *Driver {
	return &Driver{
		cluster:  clu,
		cfg:      cfg,
		dial:     dial,
		runner:   psql.NewRunner(clu, cfg.PsqlPath),
		sessions: make(map[string]*session.Session),
		log:      logrus.WithField("component", "driver"),
	}
}

// Runner exposes the subprocess runner for callers that need the general
// path explicitly.
func (d *Driver) Runner() *psql.Runner {
	return d.runner
}

// SafeQuery runs sql against dbname and returns its output. Single simple
// statements with default options go through the protocol session; anything
// else is fed to the external client with both error-stop and error-die set,
// so any SQL failure is fatal on either path.
func (d *Driver) SafeQuery(dbname, sql string, opts *psql.Options) (string, error) {
	if classify(sql, opts) == fastPath {
		s, err := d.session(dbname)
		if err != nil {
			return "", err
		}

		qr := s.Query(sql)
		if !qr.Ok() {
			return "", &session.QueryError{SQL: sql, Message: qr.ErrorMessage}
		}
		return qr.Rendered, nil
	}

	// Work on a copy: the caller's options must come back untouched, the
	// same way the captured buffers must not leak state across calls.
	runOpts := psql.DefaultOptions()
	if opts != nil {
		o := *opts
		runOpts = &o
	}
	runOpts.OnErrorStop = true
	runOpts.OnErrorDie = true

	res, err := d.runner.Run(dbname, sql, runOpts)
	if err != nil {
		return "", err
	}
	if res.Stderr != "" {
		// Keep client chatter visible in the harness output.
		fmt.Fprintln(os.Stderr, res.Stderr)
	}
	return res.Stdout, nil
}

// Close releases every cached session.
func (d *Driver) Close() {
	for dbname, s := range d.sessions {
		s.Close()
		delete(d.sessions, dbname)
	}
}

// session returns the cached session for dbname, reconnecting a stale one
// and connecting a missing one.
func (d *Driver) session(dbname string) (*session.Session, error) {
	if s, ok := d.sessions[dbname]; ok {
		if s.Alive() {
			return s, nil
		}
		if err := s.Reconnect(); err != nil {
			delete(d.sessions, dbname)
			return nil, err
		}
		return s, nil
	}

	s, err := session.New(d.dial, d.cluster.ConnectionInfoFragment(dbname))
	if err != nil {
		return nil, err
	}
	d.sessions[dbname] = s
	return s, nil
}
