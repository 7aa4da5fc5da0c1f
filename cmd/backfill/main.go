package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joelkehle/colawatch/internal/backfill"
	"github.com/joelkehle/colawatch/internal/classify"
	"github.com/joelkehle/colawatch/internal/entitystore"
)

func main() {
	dbPath := flag.String("db", "", "path to SQLite database file holding recorded classifications")
	inputPath := flag.String("input", "", "path to JSONL file with the complete filing history (- for stdin)")
	apply := flag.Bool("apply", false, "replace recorded classifications with the recomputed ones")
	reportPath := flag.String("report", "", "path to write the divergence report markdown (defaults to stdout)")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("missing required -db")
	}
	if *inputPath == "" {
		log.Fatal("missing required -input")
	}

	history, err := readInput(*inputPath)
	if err != nil {
		log.Fatalf("read input: %v", err)
	}

	live, err := entitystore.NewSQLiteStore(*dbPath, entitystore.Config{})
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	previous := live.Filings(entitystore.FilingFilter{})

	// Recompute into a scratch store so the recorded history stays intact
	// unless -apply is given.
	scratch := entitystore.NewStore(entitystore.Config{})
	res, err := backfill.Run(ctx, scratch, history, nil)
	if err != nil {
		log.Fatalf("recompute: %v", err)
	}
	recomputed := scratch.Filings(entitystore.FilingFilter{})

	rep := backfill.Diff(res.RunID, previous, recomputed)
	if err := writeReport(*reportPath, rep.Markdown()); err != nil {
		log.Fatalf("write report: %v", err)
	}

	log.Printf("run %s: %d recorded, %d recomputed, %d changed, %d added, %d missing",
		rep.RunID, rep.Previous, rep.Recomputed, len(rep.Changes), len(rep.Added), len(rep.Missing))

	if !*apply {
		if !rep.Empty() {
			log.Println("divergence found; re-run with -apply to replace recorded history")
		}
		return
	}
	if rep.Empty() {
		log.Println("nothing to apply; recorded history already matches")
		return
	}
	if _, err := backfill.Run(ctx, live, history, nil); err != nil {
		log.Fatalf("apply: %v", err)
	}
	log.Printf("applied: %d classifications replaced", rep.Recomputed)
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

func writeReport(path, markdown string) error {
	if path == "" {
		_, err := fmt.Print(markdown)
		return err
	}
	return os.WriteFile(path, []byte(markdown), 0o644)
}
