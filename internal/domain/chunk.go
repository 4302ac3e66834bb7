package domain

import (
	"fmt"
	"path/filepath"
)

// DocumentChunk is a bounded slice of a source document used as a retrieval unit.
// Score is only meaningful as the output of a specific search call; it is not
// a persistent attribute of the chunk.
type DocumentChunk struct {
	SourcePath string  `json:"source_path"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// SourceName returns the base name of the chunk's source file for citations.
func (c DocumentChunk) SourceName() string {
	return filepath.Base(c.SourcePath)
}

// PrettyHeader renders the citation header shown to users.
func (c DocumentChunk) PrettyHeader() string {
	return fmt.Sprintf("%s (score %.2f)", c.SourceName(), c.Score)
}
