package source

import (
	"context"
	"fmt"

	"ledgerproof/internal"
)

// MemorySource serves pre-built pages from memory. Used in tests and for
// replaying previously acquired page text.
type MemorySource struct {
	PagesByDoc map[string][][]internal.RawLine
	FailDocs   map[string]error
}

func NewMemorySource() *MemorySource {
	return &MemorySource{
		PagesByDoc: map[string][][]internal.RawLine{},
		FailDocs:   map[string]error{},
	}
}

func (s *MemorySource) Add(docID string, pages [][]internal.RawLine) {
	s.PagesByDoc[docID] = pages
}

func (s *MemorySource) Fail(docID string, err error) {
	s.FailDocs[docID] = err
}

func (s *MemorySource) Pages(_ context.Context, doc internal.Document) ([][]internal.RawLine, error) {
	if err, ok := s.FailDocs[doc.ID]; ok {
		return nil, &internal.AcquisitionError{DocumentID: doc.ID, Err: err}
	}
	pages, ok := s.PagesByDoc[doc.ID]
	if !ok {
		return nil, &internal.AcquisitionError{DocumentID: doc.ID, Err: fmt.Errorf("no pages registered for %s", doc.ID)}
	}
	return pages, nil
}
