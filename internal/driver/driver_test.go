package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joacominatel/pgharness/internal/cluster"
	"github.com/joacominatel/pgharness/internal/config"
	"github.com/joacominatel/pgharness/internal/protocol/fake"
	"github.com/joacominatel/pgharness/internal/psql"
	"github.com/joacominatel/pgharness/internal/session"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.PollIntervalMs = 1
	cfg.TimeoutSeconds = 1 // 10 poll attempts
	return cfg
}

func TestClassify(t *testing.T) {
	withTimeout := psql.DefaultOptions()
	withTimeout.Timeout = 1

	tests := []struct {
		name string
		sql  string
		opts *psql.Options
		want pathKind
	}{
		{"simple statement", "SELECT 1", nil, fastPath},
		{"trailing terminator", "SELECT 1;", nil, fastPath},
		{"terminator plus whitespace", "SELECT 1; \n\t", nil, fastPath},
		{"two statements", "SELECT 1; SELECT 2", nil, generalPath},
		{"empty", "", nil, generalPath},
		{"whitespace only", " \n\t", nil, generalPath},
		{"extra options force general path", "SELECT 1", withTimeout, generalPath},
		{"default options stay fast", "SELECT 1", psql.DefaultOptions(), fastPath},
		// Known limitation of the terminator scan: a terminator inside
		// a literal is misclassified, harmlessly, to the general path.
		{"terminator in literal", "SELECT 'a;b'", nil, generalPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.sql, tt.opts))
		})
	}
}

func TestSafeQueryFastPath(t *testing.T) {
	conn := &fake.Conn{Queue: []*fake.Result{
		fake.Tuples([]string{"x"}, []*string{fake.S("1")}, []*string{fake.S("2")}),
	}}
	d := New(&cluster.Local{Port: 5432}, testConfig(), fake.Dial(conn))
	defer d.Close()

	out, err := d.SafeQuery("postgres", "SELECT x FROM t", nil)

	require.NoError(t, err)
	assert.Equal(t, "1\n2", out)
	assert.Equal(t, []string{"SELECT x FROM t"}, conn.Executed)
}

func TestSafeQueryFastPathCommandOk(t *testing.T) {
	conn := &fake.Conn{Queue: []*fake.Result{fake.CommandOK()}}
	d := New(&cluster.Local{Port: 5432}, testConfig(), fake.Dial(conn))
	defer d.Close()

	out, err := d.SafeQuery("postgres", "CHECKPOINT", nil)

	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSafeQueryFastPathError(t *testing.T) {
	conn := &fake.Conn{Queue: []*fake.Result{fake.Error("division by zero")}}
	d := New(&cluster.Local{Port: 5432}, testConfig(), fake.Dial(conn))
	defer d.Close()

	_, err := d.SafeQuery("postgres", "SELECT 1/0", nil)

	var qErr *session.QueryError
	require.ErrorAs(t, err, &qErr)
	assert.Equal(t, "SELECT 1/0", qErr.SQL)
	assert.Equal(t, "division by zero", qErr.Message)
}

func TestSafeQueryReusesSession(t *testing.T) {
	conn := &fake.Conn{Queue: []*fake.Result{
		fake.Tuples([]string{"a"}, []*string{fake.S("1")}),
		fake.Tuples([]string{"b"}, []*string{fake.S("2")}),
	}}
	dial := fake.Dial(conn)
	d := New(&cluster.Local{Port: 5432}, testConfig(), dial)
	defer d.Close()

	_, err := d.SafeQuery("postgres", "SELECT a", nil)
	require.NoError(t, err)
	out, err := d.SafeQuery("postgres", "SELECT b", nil)
	require.NoError(t, err)

	assert.Equal(t, "2", out)
	assert.Len(t, conn.Executed, 2)
}

func TestCloseReleasesSessions(t *testing.T) {
	conn := &fake.Conn{Queue: []*fake.Result{fake.CommandOK()}}
	d := New(&cluster.Local{Port: 5432}, testConfig(), fake.Dial(conn))

	_, err := d.SafeQuery("postgres", "CHECKPOINT", nil)
	require.NoError(t, err)

	d.Close()
	assert.Equal(t, 1, conn.CloseCount)
}

func TestPollQueryUntilFlips(t *testing.T) {
	conn := &fake.Conn{Queue: []*fake.Result{
		fake.Tuples([]string{"ready"}, []*string{fake.S("f")}),
		fake.Tuples([]string{"ready"}, []*string{fake.S("f")}),
		fake.Tuples([]string{"ready"}, []*string{fake.S("t")}),
	}}
	p := NewPoller(&cluster.Local{Port: 5432}, testConfig(), fake.Dial(conn))

	ok := p.PollQueryUntil("postgres", "SELECT ready FROM probe", "")

	assert.True(t, ok)
	// Exactly three attempts on one session, not one per connection.
	assert.Len(t, conn.Executed, 3)
	assert.Equal(t, 1, conn.CloseCount)
}

func TestPollQueryUntilExhaustsBudget(t *testing.T) {
	conn := &fake.Conn{} // every query fails: queue is empty
	p := NewPoller(&cluster.Local{Port: 5432}, testConfig(), fake.Dial(conn))

	ok := p.PollQueryUntil("postgres", "SELECT ready FROM probe", "t")

	assert.False(t, ok)
	// Exactly 10 × timeout_seconds attempts, no extra try beyond the
	// budget.
	assert.Len(t, conn.Executed, 10)
}

func TestPollUntilConnection(t *testing.T) {
	bad := func() *fake.Conn { return &fake.Conn{Bad: true} }
	dial := fake.DialSequence(bad(), bad(), &fake.Conn{})

	p := NewPoller(&cluster.Local{Port: 5432}, testConfig(), dial)

	assert.True(t, p.PollUntilConnection("postgres"))
}

func TestPollUntilConnectionNeverSucceeds(t *testing.T) {
	dial := fake.DialSequence() // every dial fails
	p := NewPoller(&cluster.Local{Port: 5432}, testConfig(), dial)

	assert.False(t, p.PollUntilConnection("postgres"))
}
