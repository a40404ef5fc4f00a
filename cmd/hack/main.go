// Command hack is a small grab-bag diagnostic tool, kept alongside the
// cobra-based cmd/integration the same way the teacher keeps cmd/hack
// next to cmd/integration: a single-binary-many-verbs tool for the
// kind of one-off inspection query that doesn't earn a permanent
// cobra subcommand. Uses github.com/urfave/cli (v1), the legacy CLI
// framework the rest of the pack (InvisibleSymbol-go-ethereum's
// cmd/geth) wires its own grab-bag commands with, rather than cobra.
package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli"

	"github.com/ledgerwatch/erigon-core/common/dbutils"
	"github.com/ledgerwatch/erigon-core/kv"
	"github.com/ledgerwatch/erigon-core/kv/lmdb"
)

var chaindataFlag = cli.StringFlag{
	Name:  "chaindata",
	Usage: "path to the chaindata database directory",
	Value: "chaindata",
}

func main() {
	app := cli.NewApp()
	app.Name = "hack"
	app.Usage = "one-off diagnostic queries against a chaindata store"
	app.Commands = []cli.Command{
		{
			Name:  "tablesize",
			Usage: "print the row count of every table",
			Flags: []cli.Flag{chaindataFlag},
			Action: func(c *cli.Context) error {
				return tableSize(c.String("chaindata"))
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func tableSize(chaindata string) error {
	db, err := lmdb.Open(chaindata, dbutils.AllTables(), 0)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.View(context.Background(), func(tx kv.Tx) error {
		for table := range dbutils.AllTables() {
			n, err := countRows(tx, table)
			if err != nil {
				return err
			}
			fmt.Printf("%-24s %d\n", table, n)
		}
		return nil
	})
}

func countRows(tx kv.Tx, table string) (int, error) {
	c, err := tx.Cursor(table)
	if err != nil {
		return 0, err
	}
	defer c.Close()
	n := 0
	for k, _, err := c.First(); k != nil; k, _, err = c.Next() {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}
