package validation

import (
	"path/filepath"
	"strings"
)

var allowedUploadExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
	".flv":  true,
	".wmv":  true,
	".mpeg": true,
	".mpg":  true,
}

var allowedOutputFormats = map[string]bool{
	"mp4":  true,
	"webm": true,
	"gif":  true,
	"avi":  true,
	"mov":  true,
	"mkv":  true,
	"mp3":  true,
}

func ValidateUploadFilename(filename string) error {
	if strings.TrimSpace(filename) == "" {
		return ErrEmptyFilename
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedUploadExtensions[ext] {
		return ErrInvalidFileType
	}
	return nil
}

func ValidateOutputFormat(format string) error {
	if !allowedOutputFormats[strings.ToLower(format)] {
		return ErrUnsupportedFormat
	}
	return nil
}

// SanitizeFilename strips any path components from a client-supplied
// filename.
func SanitizeFilename(filename string) string {
	return filepath.Base(filename)
}
