package runlog

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve"
)

// Index is a full-text search index over execution log entries, keyed by log
// filename.
type Index struct {
	idx bleve.Index
}

// OpenIndex opens the index at path, creating it on first use.
func OpenIndex(path string) (*Index, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		mapping := bleve.NewIndexMapping()
		idx, err := bleve.New(path, mapping)
		if err != nil {
			return nil, fmt.Errorf("create log index: %w", err)
		}
		return &Index{idx: idx}, nil
	}
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log index: %w", err)
	}
	return &Index{idx: idx}, nil
}

// Add indexes one entry under its log filename.
func (i *Index) Add(filename string, entry Entry) error {
	return i.idx.Index(filename, entry)
}

// Hit is one search match.
type Hit struct {
	Filename string  `json:"filename"`
	Score    float64 `json:"score"`
}

// Search runs a query-string query over indexed entries, best matches first.
func (i *Index) Search(query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	req := bleve.NewSearchRequest(bleve.NewQueryStringQuery(query))
	req.Size = limit
	res, err := i.idx.Search(req)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{Filename: h.ID, Score: h.Score})
	}
	return hits, nil
}

// Close releases the index.
func (i *Index) Close() error { return i.idx.Close() }
