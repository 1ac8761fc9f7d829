// Package cluster defines what the harness needs from the object managing
// the server instance under test. Node lifecycle (starting, configuring and
// stopping the server) lives outside this module; the harness only consumes
// connection targets.
package cluster

import (
	"fmt"
	"sort"
	"strings"
)

// Cluster supplies connection targets for a running server instance.
type Cluster interface {
	// ConnectionInfoFragment returns the space-joined key=value
	// connection descriptor for dbname.
	ConnectionInfoFragment(dbname string) string

	// ClientLibraryDirectory returns the directory holding the server's
	// own client libraries, or the empty string when none is needed. The
	// process runner exports it so the external client loads a matching
	// libpq.
	ClientLibraryDirectory() string
}

// Local describes a server instance reachable on the local machine.
type Local struct {
	Host   string
	Port   int
	LibDir string

	// Extra parameters are appended to every descriptor verbatim. Their
	// values are passed through unescaped; only dbname is quoted.
	Extra map[string]string
}

// ConnectionInfoFragment builds the descriptor: port and host first, extra
// parameters in sorted order, dbname last. The dbname value is escaped and
// wrapped in single quotes; other values are not (a known limitation kept
// for compatibility with the external client's conninfo parsing).
func (l *Local) ConnectionInfoFragment(dbname string) string {
	parts := []string{fmt.Sprintf("port=%d", l.Port)}
	if l.Host != "" {
		parts = append(parts, "host="+l.Host)
	}

	keys := make([]string, 0, len(l.Extra))
	for k := range l.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+l.Extra[k])
	}

	parts = append(parts, "dbname="+quoteConnValue(dbname))
	return strings.Join(parts, " ")
}

// ClientLibraryDirectory implements Cluster.
func (l *Local) ClientLibraryDirectory() string {
	return l.LibDir
}

// quoteConnValue escapes backslashes and single quotes, then wraps the value
// in single quotes, per conninfo quoting rules.
func quoteConnValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
