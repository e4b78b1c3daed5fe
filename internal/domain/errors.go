package domain

import "errors"

var (
	ErrEmptyFile           = errors.New("uploaded file is empty")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrTypeMismatch        = errors.New("declared content type does not match file content")
	ErrExtractionFailed    = errors.New("invoice extraction failed")
	ErrParseTimeout        = errors.New("invoice parsing exceeded the time limit")
)
