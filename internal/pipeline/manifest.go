package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"ledgerproof/internal"
)

// Manifest declares one batch: which files to ingest and what each one
// claims about itself. Relative document paths resolve against the manifest's
// own directory.
type Manifest struct {
	BatchID   string              `json:"batch_id"`
	Documents []internal.Document `json:"documents"`
}

func LoadManifest(path string) (Manifest, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}

	var m Manifest
	if err := json.Unmarshal(blob, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	seen := map[string]bool{}
	base := filepath.Dir(path)
	for i, doc := range m.Documents {
		if doc.ID == "" {
			return Manifest{}, fmt.Errorf("manifest %s: document %d has no id", path, i)
		}
		if seen[doc.ID] {
			return Manifest{}, fmt.Errorf("manifest %s: duplicate document id %s", path, doc.ID)
		}
		seen[doc.ID] = true
		if doc.Kind == "" {
			m.Documents[i].Kind = internal.KindRegister
		}
		if doc.Path != "" && !filepath.IsAbs(doc.Path) {
			m.Documents[i].Path = filepath.Join(base, doc.Path)
		}
	}

	return m, nil
}

func LoadClaims(path string) ([]internal.Claim, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var claims []internal.Claim
	if err := json.Unmarshal(blob, &claims); err != nil {
		return nil, fmt.Errorf("parse claims %s: %w", path, err)
	}

	for i, c := range claims {
		if c.ID == "" {
			return nil, fmt.Errorf("claims %s: claim %d has no id", path, i)
		}
		if c.Unit == "" {
			claims[i].Unit = internal.UnitUSD
		}
		if c.Source == "" {
			return nil, fmt.Errorf("claims %s: claim %s cites no source", path, c.ID)
		}
	}

	return claims, nil
}
