package validation

import "errors"

var (
	ErrEmptyFilename     = errors.New("filename is required")
	ErrInvalidFileType   = errors.New("file extension is not a supported video type")
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrEmptyInputPath    = errors.New("input_path is required")
	ErrInvalidStatus     = errors.New("unrecognized job status")
)
