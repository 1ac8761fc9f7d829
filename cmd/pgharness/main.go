package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/joacominatel/pgharness/internal/cluster"
	"github.com/joacominatel/pgharness/internal/config"
	"github.com/joacominatel/pgharness/internal/driver"
	"github.com/joacominatel/pgharness/internal/protocol/pgwire"
)

func main() {
	host := flag.String("host", "", "server host or socket directory")
	port := flag.Int("port", 5432, "server port")
	dbname := flag.String("dbname", "postgres", "database to run against")
	sqlText := flag.String("sql", "", "SQL to execute (read from stdin when empty)")
	libDir := flag.String("libdir", "", "client library directory exported to the external client")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
	}

	sql := *sqlText
	if sql == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			logrus.WithError(err).Fatal("reading SQL from stdin")
		}
		sql = string(data)
	}

	clu := &cluster.Local{Host: *host, Port: *port, LibDir: *libDir}
	d := driver.New(clu, cfg, pgwire.Connect)

	out, err := d.SafeQuery(*dbname, sql, nil)
	d.Close()
	if err != nil {
		logrus.WithError(err).Fatal("query failed")
	}
	if out != "" {
		fmt.Println(out)
	}
}
