// Package media holds helpers for multimodal prompt content.
package media

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

var imageMIMEFallbacks = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
}

// ImageFileToDataURL reads an image file and encodes it as an inline data
// URL suitable for a multimodal model message.
func ImageFileToDataURL(imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(imagePath))
	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		mimeType = imageMIMEFallbacks[ext]
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	return fmt.Sprintf("data:%s;base64,%s", mimeType, encoded), nil
}
