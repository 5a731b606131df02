package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ledgerproof/internal/config"
	"ledgerproof/internal/logger"
	"ledgerproof/internal/refdata"
	"ledgerproof/internal/storage"
	"ledgerproof/internal/watcher"
)

func main() {
	cfg, err := config.Load()
	must(err)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	must(cfg.Require("ACCOUNT_CODE_PATH", cfg.AccountCodePath))
	must(cfg.Require("WATCH_INBOX_DIR", cfg.WatchInboxDir))

	codes, err := refdata.LoadAccountTable(cfg.AccountCodePath)
	must(err)

	log := logger.New()
	ctx, cancel := signal.NotifyContext(logger.WithContext(context.Background(), log), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc := watcher.NewService(db, cfg, codes)
	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
