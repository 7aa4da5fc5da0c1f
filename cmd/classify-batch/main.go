package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joelkehle/colawatch/internal/classify"
	"github.com/joelkehle/colawatch/internal/entitystore"
)

func main() {
	dbPath := flag.String("db", "", "path to SQLite database file (empty runs in-memory)")
	inputPath := flag.String("input", "-", "path to JSONL filings file (- for stdin)")
	allowRejects := flag.Bool("allow-rejects", false, "exit zero even when malformed filings were skipped")
	verbose := flag.Bool("v", false, "log each filing as it is classified")
	flag.Parse()

	filings, err := readInput(*inputPath)
	if err != nil {
		log.Fatalf("read input: %v", err)
	}

	store, err := openStore(*dbPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var progress classify.ProgressFn
	if *verbose {
		progress = func(filingID, message string) {
			log.Printf("%s %s", filingID, message)
		}
	}

	res, err := classify.NewClassifier(store).ClassifyBatch(ctx, filings, progress)
	if err != nil {
		log.Fatalf("classify batch: %v", err)
	}

	printSummary(res)
	if len(res.Rejected) > 0 && !*allowRejects {
		os.Exit(1)
	}
}

func readInput(path string) ([]entitystore.Filing, error) {
	if path == "-" {
		return classify.ReadFilings(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return classify.ReadFilings(f)
}

func openStore(dbPath string) (entitystore.API, error) {
	if dbPath == "" {
		log.Println("no -db given, using in-memory store (results are not persisted)")
		return entitystore.NewStore(entitystore.Config{}), nil
	}
	return entitystore.NewSQLiteStore(dbPath, entitystore.Config{})
}

func printSummary(res classify.BatchResult) {
	fmt.Printf("processed %d filings in %s\n", res.Total, res.CompletedAt.Sub(res.StartedAt).Round(time.Millisecond))
	for _, sig := range []entitystore.Signal{
		entitystore.SignalNewCompany,
		entitystore.SignalNewBrand,
		entitystore.SignalNewSKU,
		entitystore.SignalRefile,
	} {
		fmt.Printf("  %-12s %d\n", sig, res.BySignal[sig])
	}
	fmt.Printf("  duplicates   %d\n", res.Duplicates)
	fmt.Printf("  low-conf     %d\n", res.LowConfidence)
	if len(res.Rejected) > 0 {
		fmt.Printf("  rejected     %d\n", len(res.Rejected))
		for _, rej := range res.Rejected {
			fmt.Printf("    %s: %s\n", rej.Filing.FilingID, rej.Reason)
		}
	}
}
