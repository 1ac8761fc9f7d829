package driver

import (
	"errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/joacominatel/pgharness/internal/cluster"
	"github.com/joacominatel/pgharness/internal/config"
	"github.com/joacominatel/pgharness/internal/protocol"
	"github.com/joacominatel/pgharness/internal/session"
)

var errNoMatch = errors.New("condition not yet met")

// Poller retries queries and connection attempts until they succeed or the
// global timeout budget runs out. Pollers never fail hard: they return a
// boolean and leave the pass/fail judgment to the caller.
type Poller struct {
	cluster cluster.Cluster
	cfg     *config.Config
	dial    protocol.Dialer
	log     *logrus.Entry
}

// NewPoller returns a Poller for the given cluster.
func NewPoller(clu cluster.Cluster, cfg *config.Config, dial protocol.Dialer) *Poller {
	return &Poller{
		cluster: clu,
		cfg:     cfg,
		dial:    dial,
		log:     logrus.WithField("component", "poller"),
	}
}

// PollQueryUntil runs query against dbname until its rendered output equals
// expected (default "t"). One session serves the whole loop. On budget
// exhaustion it reports false and logs the query, the expectation and the
// last observed output.
func (p *Poller) PollQueryUntil(dbname, query, expected string) bool {
	if expected == "" {
		expected = "t"
	}

	s, err := session.New(p.dial, p.cluster.ConnectionInfoFragment(dbname))
	if err != nil {
		p.log.WithError(err).WithField("dbname", dbname).Warn("poll connection failed")
		return false
	}
	defer s.Close()

	var last string
	op := func() error {
		qr := s.Query(query)
		last = qr.Rendered
		if qr.Ok() && qr.Rendered == expected {
			return nil
		}
		return errNoMatch
	}

	if err := backoff.Retry(op, p.budget()); err != nil {
		p.log.WithFields(logrus.Fields{
			"query":    query,
			"expected": expected,
			"last":     last,
		}).Warn("poll budget exhausted")
		return false
	}
	return true
}

// PollUntilConnection attempts to open a brand-new session until one
// succeeds; the connection attempt itself is what is under test.
func (p *Poller) PollUntilConnection(dbname string) bool {
	connString := p.cluster.ConnectionInfoFragment(dbname)

	op := func() error {
		s, err := session.New(p.dial, connString)
		if err != nil {
			return err
		}
		s.Close()
		return nil
	}

	if err := backoff.Retry(op, p.budget()); err != nil {
		p.log.WithError(err).WithField("dbname", dbname).Warn("server never accepted a connection")
		return false
	}
	return true
}

// budget builds a fresh constant-interval retry budget from the current
// configuration. WithMaxRetries counts retries after the first attempt, so
// the retry count is one below the attempt budget.
func (p *Poller) budget() backoff.BackOff {
	b := p.cfg.PollBudget()
	attempts := b.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(b.Interval), uint64(attempts-1))
}
