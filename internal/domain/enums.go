package domain

import "strings"

// SourceFormat categorizes an uploaded document for extraction purposes.
type SourceFormat string

const (
	FormatPDF   SourceFormat = "pdf"
	FormatImage SourceFormat = "image"
	FormatText  SourceFormat = "text"
)

// DetectSourceFormat maps a resolved MIME type to its extraction category.
// Anything that is neither PDF nor image-prefixed is treated as text.
func DetectSourceFormat(mimeType string) SourceFormat {
	switch {
	case mimeType == "application/pdf":
		return FormatPDF
	case strings.HasPrefix(mimeType, "image/"):
		return FormatImage
	default:
		return FormatText
	}
}
