package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ledgerproof/internal"
	"ledgerproof/internal/aggregate"
	"ledgerproof/internal/config"
	"ledgerproof/internal/logger"
	"ledgerproof/internal/pipeline"
	"ledgerproof/internal/refdata"
	"ledgerproof/internal/storage"
	"ledgerproof/internal/verify"
	"ledgerproof/internal/watcher"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	log := logger.New()
	ctx := logger.WithContext(context.Background(), log)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "batch:ingest":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		manifestPath := fs.String("manifest", "", "batch manifest json")
		out := fs.String("out", "", "ledger json output path (optional)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*manifestPath) == "" {
			must(fmt.Errorf("--manifest is required"))
		}

		manifest, err := pipeline.LoadManifest(*manifestPath)
		must(err)
		must(cfg.Require("ACCOUNT_CODE_PATH", cfg.AccountCodePath))
		codes, err := refdata.LoadAccountTable(cfg.AccountCodePath)
		must(err)
		batch := pipeline.NewBatch(cfg, db, codes)
		result, err := batch.Run(ctx, manifest.Documents)
		must(err)

		if strings.TrimSpace(*out) != "" {
			must(pipeline.WriteLedgerJSON(result, *out))
		}
		fmt.Printf("ingest done documents=%d records=%d unparsed=%d rejected=%d docErrors=%d\n",
			len(manifest.Documents), len(result.Records), len(result.Unparsed), len(result.Rejected), len(result.DocumentErrors))
	case "claims:verify":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		claimsPath := fs.String("claims", "", "claims json")
		out := fs.String("out", "", "verification report output path (optional)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*claimsPath) == "" {
			must(fmt.Errorf("--claims is required"))
		}

		claims, err := pipeline.LoadClaims(*claimsPath)
		must(err)
		ledger, err := db.ListRecords()
		must(err)
		index := aggregate.Build(ledger)
		results := verify.New(cfg, index, ledger).Run(claims)
		must(db.AppendVerification(results))

		if strings.TrimSpace(*out) != "" {
			must(pipeline.WriteVerificationJSON(results, *out))
		}
		counts := map[string]int{}
		for _, r := range results {
			counts[string(r.Verdict)]++
		}
		fmt.Printf("verify done claims=%d verified=%d mismatch=%d unverifiable=%d\n",
			len(results), counts["verified"], counts["mismatch"], counts["unverifiable"])
	case "ledger:export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			*out = filepath.Join(cfg.OutputDir, "ledger.xlsx")
		}

		result, err := loadStoredResult(db)
		must(err)
		must(pipeline.ExportLedgerToXLSX(result, *out))
		jsonOut := strings.TrimSuffix(*out, filepath.Ext(*out)) + ".json"
		must(pipeline.WriteLedgerJSON(result, jsonOut))
		fmt.Printf("exported %d records to %s and %s\n", len(result.Records), *out, jsonOut)
	case "refdata:load":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		path := fs.String("path", cfg.AccountCodePath, "account code csv")
		_ = fs.Parse(os.Args[2:])

		table, err := refdata.LoadAccountTable(*path)
		must(err)
		fmt.Printf("loaded %d account codes from %s\n", table.Len(), *path)
	case "watch":
		must(cfg.Require("ACCOUNT_CODE_PATH", cfg.AccountCodePath))
		must(cfg.Require("WATCH_INBOX_DIR", cfg.WatchInboxDir))
		codes, err := refdata.LoadAccountTable(cfg.AccountCodePath)
		must(err)
		svc := watcher.NewService(db, cfg, codes)
		must(svc.Run(ctx))
	default:
		usage()
		os.Exit(1)
	}
}

// loadStoredResult rebuilds the last persisted batch outcome for export.
func loadStoredResult(db *storage.DB) (internal.BatchResult, error) {
	var result internal.BatchResult
	var err error
	if result.Records, err = db.ListRecords(); err != nil {
		return internal.BatchResult{}, err
	}
	if result.Unparsed, err = db.ListUnparsed(); err != nil {
		return internal.BatchResult{}, err
	}
	if result.Rejected, err = db.ListRejected(); err != nil {
		return internal.BatchResult{}, err
	}
	if result.Ambiguities, err = db.ListAmbiguities(); err != nil {
		return internal.BatchResult{}, err
	}
	if result.Summaries, err = db.ListSummaries(); err != nil {
		return internal.BatchResult{}, err
	}
	return result, nil
}

func usage() {
	fmt.Println("usage: ledgerproof <command>")
	fmt.Println("commands:")
	fmt.Println("  batch:ingest --manifest=./batch.json [--out=./out/ledger.json]")
	fmt.Println("  claims:verify --claims=./claims.json [--out=./out/report.json]")
	fmt.Println("  ledger:export [--out=./out/ledger.xlsx]")
	fmt.Println("  refdata:load [--path=./refdata/accounts.csv]")
	fmt.Println("  watch")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
