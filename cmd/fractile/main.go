package main

import (
	"log"
	"os"

	"github.com/hardwarehavoc/fractile/internal/api"
	"github.com/hardwarehavoc/fractile/internal/config"
	"github.com/hardwarehavoc/fractile/internal/engine"
	"github.com/hardwarehavoc/fractile/internal/store"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("fractile: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	eng := engine.NewEngine(db, logger)
	srv := api.NewServer(cfg.ListenAddr, db, eng, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}

	// Let in-flight runs finish writing their records before the store closes.
	eng.Wait()
	logger.Info("fractile: stopped")
}
