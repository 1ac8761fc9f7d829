package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joacominatel/pgharness/internal/protocol/fake"
)

func newTestSession(t *testing.T, conn *fake.Conn) *Session {
	t.Helper()
	s, err := New(fake.Dial(conn), "host=localhost dbname='x'")
	require.NoError(t, err)
	s.interval = time.Millisecond
	return s
}

func TestNewFailsOnBadStatus(t *testing.T) {
	conn := &fake.Conn{Bad: true}
	conn.SetErrorMessage("no pg_hba.conf entry")

	s, err := New(fake.Dial(conn), "host=localhost")

	require.Nil(t, s)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Contains(t, connErr.Message, "pg_hba.conf")
	// The half-open connection must still have been released.
	assert.Equal(t, 1, conn.CloseCount)
}

func TestCloseIsIdempotent(t *testing.T) {
	conn := &fake.Conn{}
	s := newTestSession(t, conn)

	s.Close()
	s.Close()
	s.Close()

	assert.Equal(t, 1, conn.CloseCount)
	assert.False(t, s.Alive())
}

func TestReconnect(t *testing.T) {
	first := &fake.Conn{}
	second := &fake.Conn{Queue: []*fake.Result{fake.CommandOK()}}

	s, err := New(fake.DialSequence(first, second), "host=localhost")
	require.NoError(t, err)

	require.NoError(t, s.Reconnect())
	assert.Equal(t, 1, first.CloseCount)
	require.NoError(t, s.ExecSync([]string{"SET search_path TO public"}))
	assert.Equal(t, []string{"SET search_path TO public"}, second.Executed)
}

func TestExecSyncShortCircuits(t *testing.T) {
	conn := &fake.Conn{Queue: []*fake.Result{
		fake.CommandOK(),
		fake.Error("syntax error"),
		fake.CommandOK(),
	}}
	s := newTestSession(t, conn)

	err := s.ExecSync([]string{
		"CREATE TABLE t (i int)",
		"CREATE TABLE t (", // fails
		"DROP TABLE t",
	})

	var qErr *QueryError
	require.ErrorAs(t, err, &qErr)
	assert.Equal(t, "CREATE TABLE t (", qErr.SQL)
	assert.Equal(t, "syntax error", qErr.Message)
	// The third statement must never have run.
	assert.Equal(t, []string{"CREATE TABLE t (i int)", "CREATE TABLE t ("}, conn.Executed)
}

func TestExecSyncRejectsTupleResults(t *testing.T) {
	conn := &fake.Conn{Queue: []*fake.Result{
		fake.Tuples([]string{"x"}, []*string{fake.S("1")}),
	}}
	s := newTestSession(t, conn)

	err := s.ExecSync([]string{"SELECT 1"})

	var qErr *QueryError
	require.ErrorAs(t, err, &qErr)
}

func TestAwaitCompletionDrains(t *testing.T) {
	async := fake.Tuples([]string{"x"}, []*string{fake.S("1")})
	conn := &fake.Conn{
		BusyCycles:   3,
		AsyncResults: []*fake.Result{async, fake.CommandOK()},
		Queue:        []*fake.Result{fake.Tuples([]string{"y"}, []*string{fake.S("2")})},
	}
	s := newTestSession(t, conn)

	require.True(t, s.ExecAsyncSend("SELECT pg_sleep(0)"))
	s.AwaitCompletion()

	// Every pending result was fetched and released.
	assert.Nil(t, conn.NextResult())
	assert.Equal(t, 1, async.Cleared)

	// A fully drained session accepts new work.
	qr := s.Query("SELECT 2")
	assert.Equal(t, "2", qr.Rendered)
}

func TestAwaitCompletionStopsOnDeadConnection(t *testing.T) {
	conn := &fake.Conn{BusyCycles: 1000, FailConsume: true}
	s := newTestSession(t, conn)

	done := make(chan struct{})
	go func() {
		s.AwaitCompletion()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("AwaitCompletion blocked on a dead connection")
	}
}

func TestExecAsyncSendReportsDispatchFailure(t *testing.T) {
	conn := &fake.Conn{FailSend: true}
	s := newTestSession(t, conn)

	assert.False(t, s.ExecAsyncSend("SELECT 1"))
}

func TestQueryMaterializesAndReleases(t *testing.T) {
	res := fake.Tuples([]string{"a", "b"},
		[]*string{fake.S("1"), fake.S("x")},
	)
	conn := &fake.Conn{Queue: []*fake.Result{res}}
	s := newTestSession(t, conn)

	qr := s.Query("SELECT 1, 'x'")

	assert.Equal(t, "1|x", qr.Rendered)
	assert.Equal(t, 1, res.Cleared)
}

func TestQueryScalar(t *testing.T) {
	t.Run("single value", func(t *testing.T) {
		conn := &fake.Conn{Queue: []*fake.Result{
			fake.Tuples([]string{"v"}, []*string{fake.S("42")}),
		}}
		s := newTestSession(t, conn)

		cell, ok, err := s.QueryScalar("SELECT 42", false)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, cell.Valid)
		assert.Equal(t, "42", cell.String)
	})

	t.Run("null value", func(t *testing.T) {
		conn := &fake.Conn{Queue: []*fake.Result{
			fake.Tuples([]string{"v"}, []*string{nil}),
		}}
		s := newTestSession(t, conn)

		cell, ok, err := s.QueryScalar("SELECT NULL", false)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.False(t, cell.Valid)
	})

	t.Run("zero rows is a usage error", func(t *testing.T) {
		conn := &fake.Conn{Queue: []*fake.Result{
			fake.Tuples([]string{"v"}),
		}}
		s := newTestSession(t, conn)

		_, _, err := s.QueryScalar("SELECT v FROM empty", false)
		var uErr *UsageError
		require.ErrorAs(t, err, &uErr)
	})

	t.Run("zero rows with allowMissing", func(t *testing.T) {
		conn := &fake.Conn{Queue: []*fake.Result{
			fake.Tuples([]string{"v"}),
		}}
		s := newTestSession(t, conn)

		cell, ok, err := s.QueryScalar("SELECT v FROM empty", true)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.False(t, cell.Valid)
	})

	t.Run("too many columns is a usage error", func(t *testing.T) {
		conn := &fake.Conn{Queue: []*fake.Result{
			fake.Tuples([]string{"a", "b"}, []*string{fake.S("1"), fake.S("2")}),
		}}
		s := newTestSession(t, conn)

		_, _, err := s.QueryScalar("SELECT 1, 2", false)
		var uErr *UsageError
		require.ErrorAs(t, err, &uErr)
	})

	t.Run("error status is a query error", func(t *testing.T) {
		conn := &fake.Conn{Queue: []*fake.Result{fake.Error("boom")}}
		s := newTestSession(t, conn)

		_, _, err := s.QueryScalar("SELECT broken", false)
		var qErr *QueryError
		require.ErrorAs(t, err, &qErr)
		assert.Equal(t, "boom", qErr.Message)
	})
}

func TestQueryLines(t *testing.T) {
	conn := &fake.Conn{Queue: []*fake.Result{
		fake.Tuples([]string{"a"}, []*string{fake.S("1")}, []*string{fake.S("2")}),
		fake.Tuples([]string{"b"}), // zero rows, skipped
		fake.Tuples([]string{"c"}, []*string{fake.S("3")}),
	}}
	s := newTestSession(t, conn)

	out, err := s.QueryLines("SELECT a", "SELECT b", "SELECT c")

	require.NoError(t, err)
	assert.Equal(t, "1\n2\n\n3", out)
}

func TestQueryLinesFailsOnNonTuples(t *testing.T) {
	conn := &fake.Conn{Queue: []*fake.Result{fake.CommandOK()}}
	s := newTestSession(t, conn)

	_, err := s.QueryLines("SET x TO y")

	var qErr *QueryError
	require.ErrorAs(t, err, &qErr)
}

func TestChangePassword(t *testing.T) {
	conn := &fake.Conn{Queue: []*fake.Result{fake.CommandOK()}}
	s := newTestSession(t, conn)

	qr := s.ChangePassword("alice", "s3cret")

	assert.True(t, qr.Ok())
	require.Len(t, conn.Executed, 1)
	assert.Contains(t, conn.Executed[0], "alice")
}
