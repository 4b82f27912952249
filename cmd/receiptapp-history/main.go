package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/chad775/receiptapp/internal/receipt"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// receiptapp-history inspects the extraction history database directly,
// without going through the HTTP API. Useful for reviewing results on the
// machine the server runs on.
func main() {
	fs := ff.NewFlagSet("receiptapp-history")
	var (
		dbPath      = fs.StringLong("db", "receiptapp.db", "Extraction history database path")
		id          = fs.StringLong("id", "", "Show a single record as JSON")
		asJSON      = fs.BoolLong("json", "Emit the full record list as JSON")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPTAPP"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	db, err := receipt.NewBoltDB(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if *id != "" {
		rec, err := db.GetExtraction(*id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		printJSON(rec)
		return
	}

	records, err := db.ListExtractions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	if *asJSON {
		printJSON(records)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tVENDOR\tTOTAL\tMODEL")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.ID,
			rec.CreatedAt.Format("2006-01-02 15:04"),
			orDash(rec.Result.Vendor),
			formatTotal(rec.Result.Total, rec.Result.Currency),
			rec.ModelUsed,
		)
	}
	w.Flush()
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func formatTotal(total *float64, currency *string) string {
	if total == nil {
		return "-"
	}
	if currency != nil && *currency != "" {
		return fmt.Sprintf("%.2f %s", *total, *currency)
	}
	return fmt.Sprintf("%.2f", *total)
}
