package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ledgerproof/internal/config"
	"ledgerproof/internal/logger"
	"ledgerproof/internal/parse"
	"ledgerproof/internal/pipeline"
	"ledgerproof/internal/storage"
)

// Service polls an inbox directory for batch manifests and ingests each one
// once. A manifest is keyed by path plus content hash, so re-dropping an
// edited manifest triggers a fresh ingest while an untouched one is skipped.
type Service struct {
	db    *storage.DB
	cfg   config.Config
	codes parse.CodeSpace
}

func NewService(db *storage.DB, cfg config.Config, codes parse.CodeSpace) *Service {
	return &Service{db: db, cfg: cfg, codes: codes}
}

func (s *Service) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	for {
		if err := s.runCycle(ctx); err != nil {
			log.Error().Err(err).Msg("watcher cycle error")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.WatchIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	log := logger.FromContext(ctx)

	manifests, err := s.pendingManifests()
	if err != nil {
		return err
	}

	for _, path := range manifests {
		if ctx.Err() != nil {
			return nil
		}
		if err := s.ingest(ctx, path); err != nil {
			log.Error().Str("manifest", path).Err(err).Msg("ingest failed")
			continue
		}
		log.Info().Str("manifest", path).Msg("manifest ingested")
	}
	return nil
}

func (s *Service) pendingManifests() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.WatchInboxDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.cfg.WatchInboxDir, entry.Name())
		done, err := s.alreadyIngested(path)
		if err != nil {
			return nil, err
		}
		if !done {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Service) alreadyIngested(path string) (bool, error) {
	hash, err := fileHash(path)
	if err != nil {
		return false, err
	}
	seen, err := s.db.GetMetadata(manifestKey(path))
	if err != nil {
		return false, err
	}
	return seen != nil && *seen == hash, nil
}

func (s *Service) ingest(ctx context.Context, path string) error {
	manifest, err := pipeline.LoadManifest(path)
	if err != nil {
		return err
	}

	batch := pipeline.NewBatch(s.cfg, s.db, s.codes)
	result, err := batch.Run(ctx, manifest.Documents)
	if err != nil {
		return err
	}

	if s.cfg.WatchAutoExport {
		name := manifest.BatchID
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), ".json")
		}
		outputPath := filepath.Join(s.cfg.OutputDir, "watcher", fmt.Sprintf("%s.xlsx", name))
		if err := pipeline.ExportLedgerToXLSX(result, outputPath); err != nil {
			return err
		}
	}

	hash, err := fileHash(path)
	if err != nil {
		return err
	}
	return s.db.SetMetadata(manifestKey(path), hash)
}

func manifestKey(path string) string {
	return "manifest:" + filepath.Base(path)
}

func fileHash(path string) (string, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:]), nil
}
