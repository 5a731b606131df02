package source

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"ledgerproof/internal"
	"ledgerproof/internal/config"
)

// TesseractSource runs word-level OCR over scanned register pages. The
// document path may be a PDF (rasterized via pdftoppm at the configured DPI,
// the way the registers are print-rendered) or a directory of pre-rendered
// page images.
type TesseractSource struct {
	cfg     config.Config
	limiter *RateLimiter
}

func NewTesseractSource(cfg config.Config) *TesseractSource {
	return &TesseractSource{cfg: cfg, limiter: NewRateLimiter(cfg.OCRRateLimitRPS)}
}

func (s *TesseractSource) Pages(ctx context.Context, doc internal.Document) ([][]internal.RawLine, error) {
	images, cleanup, err := s.pageImages(ctx, doc)
	if err != nil {
		return nil, &internal.AcquisitionError{DocumentID: doc.ID, Err: err}
	}
	defer cleanup()

	// Row gap scales with DPI; the configured value is calibrated to 300.
	yTolerance := s.cfg.RowGapPx * s.cfg.OCRDPI / 300
	if yTolerance < 1 {
		yTolerance = s.cfg.RowGapPx
	}

	pages := make([][]internal.RawLine, 0, len(images))
	for pageIdx, img := range images {
		select {
		case <-ctx.Done():
			return nil, &internal.AcquisitionError{DocumentID: doc.ID, Err: ctx.Err()}
		default:
		}

		words, err := s.recognize(img)
		if err != nil {
			return nil, &internal.AcquisitionError{DocumentID: doc.ID, Err: fmt.Errorf("page %d: %w", pageIdx+1, err)}
		}
		pages = append(pages, groupWordsIntoLines(pageIdx+1, words, yTolerance))
	}
	return pages, nil
}

func (s *TesseractSource) recognize(imagePath string) ([]internal.Word, error) {
	s.limiter.WaitTurn()

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImage(imagePath); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	if len(s.cfg.OCRLanguages) > 0 {
		if err := client.SetLanguage(s.cfg.OCRLanguages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	if s.cfg.OCRDPI > 0 {
		if err := client.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(s.cfg.OCRDPI)); err != nil {
			return nil, fmt.Errorf("set dpi: %w", err)
		}
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("word boxes: %w", err)
	}

	words := make([]internal.Word, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" || b.Confidence <= 0 {
			continue
		}
		words = append(words, internal.Word{
			Text: text,
			Box: internal.BoundingBox{
				X: b.Box.Min.X,
				Y: b.Box.Min.Y,
				W: b.Box.Dx(),
				H: b.Box.Dy(),
			},
			// Tesseract reports 0-100.
			Confidence: b.Confidence / 100.0,
		})
	}
	return words, nil
}

func (s *TesseractSource) pageImages(ctx context.Context, doc internal.Document) ([]string, func(), error) {
	noop := func() {}

	info, err := os.Stat(doc.Path)
	if err != nil {
		return nil, noop, err
	}

	if info.IsDir() {
		images, err := listPageImages(doc.Path)
		return images, noop, err
	}

	if strings.EqualFold(filepath.Ext(doc.Path), ".pdf") {
		tmpDir, err := os.MkdirTemp("", "ledgerproof-ocr-*")
		if err != nil {
			return nil, noop, err
		}
		cleanup := func() { _ = os.RemoveAll(tmpDir) }

		cmd := exec.CommandContext(ctx, "pdftoppm", "-png", "-r", fmt.Sprint(s.cfg.OCRDPI), doc.Path, filepath.Join(tmpDir, "page"))
		if out, err := cmd.CombinedOutput(); err != nil {
			cleanup()
			return nil, noop, fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(out)))
		}

		images, err := listPageImages(tmpDir)
		if err != nil {
			cleanup()
			return nil, noop, err
		}
		return images, cleanup, nil
	}

	// Single image document.
	return []string{doc.Path}, noop, nil
}

func listPageImages(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		matches, err = filepath.Glob(filepath.Join(dir, "*.png"))
		if err != nil {
			return nil, err
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no page images in %s", dir)
	}
	sort.Strings(matches)
	return matches, nil
}
