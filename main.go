// Command serve.report serves stored serve-analysis sessions: the JSON API,
// timeline charts and the database admin routes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/serve.report/internal/api"
	"github.com/banshee-data/serve.report/internal/db"
	sqlite "github.com/banshee-data/serve.report/internal/motion/storage/sqlite"
	"github.com/banshee-data/serve.report/internal/units"
	"github.com/banshee-data/serve.report/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "Listen address")
	dbPath      = flag.String("db", "serve_sessions.db", "SQLite database path")
	speedUnits  = flag.String("units", units.MPS, "Default speed units for the API: "+fmt.Sprint(units.ValidSpeedUnits))
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s migrate <command> [args]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("serve.report"))
		return
	}

	if flag.Arg(0) == "migrate" {
		if err := db.RunMigrateCommand(flag.Args()[1:], *dbPath, os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if !units.IsValidSpeed(*speedUnits) {
		log.Fatalf("Invalid -units %q, expected one of %v", *speedUnits, units.ValidSpeedUnits)
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              *listen,
		Handler:           newHandler(database, *speedUnits),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("serve.report %s listening on %s (db %s)", version.Version, *listen, database.Path())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}

// newHandler mounts the admin debugging routes and the session API.
func newHandler(database *db.DB, speedUnits string) http.Handler {
	mux := http.NewServeMux()
	database.AttachAdminRoutes(mux)

	store := sqlite.NewSessionStore(database.DB)
	mux.Handle("/", api.NewServer(store, speedUnits).ServeMux())
	return api.LoggingMiddleware(mux)
}
