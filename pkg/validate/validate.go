// Package validate checks user input before it reaches a session: model ids
// against the registry and attachments against size and media type limits.
package validate

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/germanamz/tether/pkg/chats/content"
	"github.com/germanamz/tether/pkg/models"
)

// Error reports invalid input.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("validate: %s: %s", e.Field, e.Reason)
}

// DefaultMaxBytes is the attachment size limit used when Limits.MaxBytes is 0.
const DefaultMaxBytes = 5 << 20

// DefaultMediaTypes are the attachment types accepted when Limits.MediaTypes
// is empty.
var DefaultMediaTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// Limits bounds accepted attachments.
type Limits struct {
	MaxBytes   int
	MediaTypes []string
}

func (l Limits) withDefaults() Limits {
	if l.MaxBytes <= 0 {
		l.MaxBytes = DefaultMaxBytes
	}
	if len(l.MediaTypes) == 0 {
		l.MediaTypes = DefaultMediaTypes
	}
	return l
}

// ModelID checks that id names a registered model.
func ModelID(reg *models.Registry, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return &Error{Field: "model", Reason: "is required"}
	}
	if !reg.Has(id) {
		return &Error{Field: "model", Reason: fmt.Sprintf("unknown model %q", id)}
	}
	return nil
}

// Attachment checks an embedded attachment and returns it with MediaType
// filled in. An empty MediaType is sniffed from the data; a declared one must
// agree with the sniffed type.
func Attachment(img content.Image, limits Limits) (content.Image, error) {
	limits = limits.withDefaults()

	if img.Size() == 0 {
		return img, &Error{Field: "attachment", Reason: "is empty"}
	}
	if img.Size() > limits.MaxBytes {
		return img, &Error{
			Field:  "attachment",
			Reason: fmt.Sprintf("is %d bytes, limit is %d", img.Size(), limits.MaxBytes),
		}
	}

	sniffed := baseType(http.DetectContentType(img.Data))
	declared := baseType(img.MediaType)

	switch {
	case declared == "":
		img.MediaType = sniffed
	case declared != sniffed:
		return img, &Error{
			Field:  "attachment",
			Reason: fmt.Sprintf("declared type %s does not match content %s", declared, sniffed),
		}
	default:
		img.MediaType = declared
	}

	if !slices.Contains(limits.MediaTypes, img.MediaType) {
		return img, &Error{
			Field:  "attachment",
			Reason: fmt.Sprintf("type %s is not allowed", img.MediaType),
		}
	}

	return img, nil
}

// baseType drops parameters such as "; charset=utf-8".
func baseType(mediaType string) string {
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}
