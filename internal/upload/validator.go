package upload

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"invox/internal/config"
	"invox/internal/domain"
)

// genericTypes are sniffing results that carry no real signal: the detector
// falls back to them when the file signature is ambiguous. For these the
// declared content type decides.
var genericTypes = map[string]struct{}{
	"application/octet-stream": {},
	"text/plain":               {},
	"application/x-empty":      {},
}

// ValidatedFile is the outcome of a successful upload validation: the
// unchanged content plus the MIME type resolved from it.
type ValidatedFile struct {
	Content      []byte
	ResolvedType string
	Filename     string
}

// Validator checks uploaded files for size, emptiness, and true content type
// before any extraction work is spent on them.
type Validator struct {
	maxSize int64
	allowed map[string]struct{}
	logger  *slog.Logger
}

// NewValidator creates a Validator from upload config.
func NewValidator(cfg *config.UploadConfig, logger *slog.Logger) *Validator {
	allowed := make(map[string]struct{}, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowed[normalizeMIME(t)] = struct{}{}
	}
	maxSize := cfg.MaxFileSizeBytes
	if maxSize <= 0 {
		maxSize = 5 * 1024 * 1024
	}
	return &Validator{
		maxSize: maxSize,
		allowed: allowed,
		logger:  logger,
	}
}

// Validate runs the full gate over an uploaded file. Content bytes are
// returned unchanged; the resolved type prefers the sniffed type and falls
// back to the declared one only when sniffing was ambiguous. All failures
// are permanent; nothing here is worth retrying.
func (v *Validator) Validate(content []byte, declaredType, filename string) (*ValidatedFile, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: %q has 0 bytes", domain.ErrEmptyFile, filename)
	}
	if int64(len(content)) > v.maxSize {
		return nil, fmt.Errorf("%w: %q is %d bytes (limit %d)",
			domain.ErrFileTooLarge, filename, len(content), v.maxSize)
	}

	declared := normalizeMIME(declaredType)
	detected := normalizeMIME(mimetype.Detect(content).String())
	_, detectedGeneric := genericTypes[detected]

	// Spoofing check first: a specific sniffed type that contradicts an
	// allowed declared type means someone renamed or re-labeled the file.
	if declared != "" && v.isAllowed(declared) && !detectedGeneric && detected != declared {
		v.logger.Warn("content type mismatch",
			"filename", filename,
			"declared", declared,
			"detected", detected,
		)
		return nil, fmt.Errorf("%w: %q declared %q but content is %q",
			domain.ErrTypeMismatch, filename, declared, detected)
	}

	if !detectedGeneric {
		// The sniffer identified a specific format; it must be allowed.
		if !v.isAllowed(detected) {
			return nil, fmt.Errorf("%w: detected %q in %q", domain.ErrUnsupportedFileType, detected, filename)
		}
	} else {
		// Ambiguous signature; the declared type decides, and must be allowed.
		if declared == "" || !v.isAllowed(declared) {
			return nil, fmt.Errorf("%w: unrecognizable content in %q (detected %q, declared %q)",
				domain.ErrUnsupportedFileType, filename, detected, declared)
		}
	}

	resolved := detected
	if detectedGeneric {
		resolved = declared
	}

	v.logger.Debug("upload validated",
		"filename", filename,
		"size_bytes", len(content),
		"resolved_type", resolved,
	)

	return &ValidatedFile{
		Content:      content,
		ResolvedType: resolved,
		Filename:     filename,
	}, nil
}

func (v *Validator) isAllowed(mimeType string) bool {
	_, ok := v.allowed[mimeType]
	return ok
}

// normalizeMIME strips parameters ("text/plain; charset=utf-8" -> "text/plain").
func normalizeMIME(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
