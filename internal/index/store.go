package index

import (
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/mkravets/safedesk/internal/config"
	"github.com/mkravets/safedesk/internal/domain"
	"go.uber.org/zap"
)

// DefaultSearchLimit is used when Search is called with a non-positive limit.
const DefaultSearchLimit = 3

var supportedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
	".rtf": true,
	".pdf": true,
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

var paragraphPattern = regexp.MustCompile(`\n{2,}`)

// Store is a keyword-search index over a static document corpus. Reload
// rebuilds the chunk set wholesale; readers always see either the old
// complete set or the new one.
type Store struct {
	root         string
	maxChunkLen  int
	pdfPageLimit int
	logger       *zap.Logger

	mu     sync.RWMutex
	chunks []domain.DocumentChunk
}

// NewStore creates a document store rooted at cfg.Root. The index starts
// empty; call Reload to populate it.
func NewStore(cfg config.KnowledgeConfig, logger *zap.Logger) *Store {
	maxLen := cfg.MaxChunkLen
	if maxLen <= 0 {
		maxLen = 1200
	}
	pageLimit := cfg.PDFPageLimit
	if pageLimit <= 0 {
		pageLimit = 40
	}
	return &Store{
		root:         cfg.Root,
		maxChunkLen:  maxLen,
		pdfPageLimit: pageLimit,
		logger:       logger,
	}
}

// Reload rebuilds the in-memory chunk set from the knowledge root. A missing
// root leaves the index empty; a single unreadable file is logged and
// skipped, never aborting the reload.
func (s *Store) Reload() error {
	var chunks []domain.DocumentChunk

	files, err := s.listSourceFiles()
	if err != nil {
		s.logger.Warn("Knowledge root unavailable, index stays empty",
			zap.String("root", s.root), zap.Error(err))
		files = nil
	}

	for _, path := range files {
		text, err := s.readFileText(path)
		if err != nil {
			s.logger.Warn("Failed to load document", zap.String("path", path), zap.Error(err))
			continue
		}
		for _, piece := range splitIntoChunks(text, s.maxChunkLen) {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			chunks = append(chunks, domain.DocumentChunk{SourcePath: path, Text: piece})
		}
	}

	s.mu.Lock()
	s.chunks = chunks
	s.mu.Unlock()

	s.logger.Info("Loaded text chunks",
		zap.Int("chunks", len(chunks)),
		zap.String("root", s.root))
	return nil
}

func (s *Store) listSourceFiles() ([]string, error) {
	if _, err := os.Stat(s.root); err != nil {
		return nil, err
	}
	var files []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("Skipping unreadable path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if supportedExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Deterministic chunk order across reloads.
	sort.Strings(files)
	return files, nil
}

func (s *Store) readFileText(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return extractPDFText(path, s.pdfPageLimit, s.logger)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// splitIntoChunks splits text into paragraph-aligned segments of at most
// maxLen characters. A single paragraph longer than maxLen is hard-sliced.
func splitIntoChunks(text string, maxLen int) []string {
	paragraphs := paragraphPattern.Split(text, -1)

	var out []string
	var buffer []string
	length := 0

	emit := func() {
		if len(buffer) == 0 {
			return
		}
		out = append(out, strings.Join(buffer, "\n\n"))
		buffer = nil
		length = 0
	}

	for _, paragraph := range paragraphs {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		for len(paragraph) > maxLen {
			head := paragraph[:maxLen]
			paragraph = paragraph[maxLen:]
			buffer = append(buffer, head)
			length += len(head)
			if length >= maxLen {
				emit()
			}
		}
		buffer = append(buffer, paragraph)
		length += len(paragraph)
		if length >= maxLen {
			emit()
		}
	}
	emit()
	return out
}

// Search scores every chunk by term frequency of the query tokens and
// returns scored copies of the top limit chunks. Ties keep index order.
// An empty query, all-stopword query, or empty index yields an empty result.
func (s *Store) Search(query string, limit int) []domain.DocumentChunk {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	snapshot := s.snapshot()
	if strings.TrimSpace(query) == "" || len(snapshot) == 0 {
		return nil
	}

	var words []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(query), -1) {
		if len([]rune(w)) > 2 {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return nil
	}

	var scored []domain.DocumentChunk
	for _, chunk := range snapshot {
		textLower := strings.ToLower(chunk.Text)
		matches := 0
		for _, word := range words {
			matches += strings.Count(textLower, word)
		}
		if matches == 0 {
			continue
		}
		scored = append(scored, domain.DocumentChunk{
			SourcePath: chunk.SourcePath,
			Text:       chunk.Text,
			Score:      float64(matches) / float64(len(words)),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// Sample returns a uniform-random subset of chunks without replacement,
// size min(count, total). An empty index yields an empty result.
func (s *Store) Sample(count int) []domain.DocumentChunk {
	snapshot := s.snapshot()
	if len(snapshot) == 0 || count <= 0 {
		return nil
	}
	if count > len(snapshot) {
		count = len(snapshot)
	}
	picked := make([]domain.DocumentChunk, 0, count)
	for _, idx := range rand.Perm(len(snapshot))[:count] {
		picked = append(picked, snapshot[idx])
	}
	return picked
}

// ListFiles returns the distinct source files currently indexed, sorted.
func (s *Store) ListFiles() []string {
	snapshot := s.snapshot()
	seen := make(map[string]bool, len(snapshot))
	var files []string
	for _, chunk := range snapshot {
		if !seen[chunk.SourcePath] {
			seen[chunk.SourcePath] = true
			files = append(files, chunk.SourcePath)
		}
	}
	sort.Strings(files)
	return files
}

// DocumentCount returns the number of distinct indexed source files.
func (s *Store) DocumentCount() int {
	return len(s.ListFiles())
}

// ChunkCount returns the total number of indexed chunks.
func (s *Store) ChunkCount() int {
	return len(s.snapshot())
}

// Describe renders a human-readable listing of indexed documents.
func (s *Store) Describe() string {
	files := s.ListFiles()
	if len(files) == 0 {
		return "Documents: none. Add files to the knowledge base directory."
	}
	lines := []string{"Documents:"}
	for i, path := range files {
		lines = append(lines, fmt.Sprintf("%d) %s", i+1, filepath.Base(path)))
	}
	return strings.Join(lines, "\n")
}

func (s *Store) snapshot() []domain.DocumentChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chunks
}
