package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joelkehle/colawatch/internal/entitystore"
	"github.com/joelkehle/colawatch/internal/queryapi"
)

func main() {
	dbPath := flag.String("db", "", "path to SQLite database file")
	listen := flag.String("listen", ":8080", "address to listen on")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("missing required -db")
	}

	store, err := entitystore.NewSQLiteStore(*dbPath, entitystore.Config{})
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	srv := &http.Server{
		Addr:    *listen,
		Handler: queryapi.NewServer(store, nil),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("query server listening on %s (db=%s)", *listen, *dbPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("serve: %v", err)
	}
	log.Println("query server stopped")
}
