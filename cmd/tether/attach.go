package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/germanamz/tether/pkg/chats/content"
	"github.com/germanamz/tether/pkg/validate"
)

// loadAttachment reads an image from disk and validates it. The declared
// media type comes from the file extension and must match the content.
func loadAttachment(path string, limits validate.Limits) (content.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return content.Image{}, fmt.Errorf("attach: %w", err)
	}
	if info.IsDir() {
		return content.Image{}, fmt.Errorf("attach: %s is a directory", path)
	}

	maxBytes := limits.MaxBytes
	if maxBytes <= 0 {
		maxBytes = validate.DefaultMaxBytes
	}
	if info.Size() > int64(maxBytes) {
		return content.Image{}, &validate.Error{
			Field:  "attachment",
			Reason: fmt.Sprintf("%s exceeds %s", fmtBytes(int(info.Size())), fmtBytes(maxBytes)),
		}
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is typed by the user
	if err != nil {
		return content.Image{}, fmt.Errorf("attach: %w", err)
	}

	return validate.Attachment(content.Image{
		Data:      data,
		MediaType: mime.TypeByExtension(filepath.Ext(path)),
	}, limits)
}
