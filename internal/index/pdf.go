package index

import (
	"strings"

	"github.com/dslipak/pdf"
	"go.uber.org/zap"
)

// extractPDFText pulls plain text out of a PDF, reading at most pageLimit
// pages to bound reload latency on large scans. Pages that fail to decode
// are skipped.
func extractPDFText(path string, pageLimit int, logger *zap.Logger) (string, error) {
	reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}

	total := reader.NumPage()
	if total > pageLimit {
		logger.Info("Truncating PDF to page limit",
			zap.String("path", path),
			zap.Int("pages", total),
			zap.Int("limit", pageLimit))
		total = pageLimit
	}

	var parts []string
	for pageNum := 1; pageNum <= total; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn("Failed to extract PDF page text",
				zap.String("path", path),
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n"), nil
}
