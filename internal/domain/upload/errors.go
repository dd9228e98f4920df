package upload

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUploadNotFound = errors.New("upload not found")
	ErrNotOwner       = errors.New("you do not own this upload")
)

// Kind classifies an upload failure.
type Kind string

const (
	KindUnsupportedType   Kind = "UnsupportedType"
	KindFileTooLarge      Kind = "FileTooLarge"
	KindTooManyFiles      Kind = "TooManyFiles"
	KindUnexpectedField   Kind = "UnexpectedField"
	KindInvalidDimensions Kind = "InvalidDimensions"
	KindProcessingFailure Kind = "ProcessingFailure"
)

// Machine-readable codes sent to clients. The LIMIT_* names match what
// frontends already branch on.
const (
	CodeFileSize       = "LIMIT_FILE_SIZE"
	CodeFileCount      = "LIMIT_FILE_COUNT"
	CodeUnexpectedFile = "LIMIT_UNEXPECTED_FILE"
	CodeFieldValue     = "LIMIT_FIELD_VALUE"
	CodeMalformed      = "MALFORMED_REQUEST"
	CodeFileType       = "INVALID_FILE_TYPE"
	CodeDimensions     = "INVALID_DIMENSIONS"
	CodeValidation     = "VALIDATION_FAILED"
	CodeProcessing     = "PROCESSING_FAILED"
	CodeNoFile         = "NO_FILE"
)

// UploadError is the single error type the pipeline reports to clients.
type UploadError struct {
	Kind    Kind
	Message string
	Code    string
	Status  int
	Err     error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UploadError) Unwrap() error { return e.Err }

// IsKind reports whether err is an *UploadError of kind k.
func IsKind(err error, k Kind) bool {
	var ue *UploadError
	return errors.As(err, &ue) && ue.Kind == k
}

func errUnsupportedType(mime string, allowed []string) *UploadError {
	return &UploadError{
		Kind:    KindUnsupportedType,
		Message: fmt.Sprintf("File type not allowed. Allowed types: %s", strings.Join(allowed, ", ")),
		Code:    CodeFileType,
		Status:  http.StatusBadRequest,
		Err:     fmt.Errorf("got %q", mime),
	}
}

func errFileTooLarge(limit int64) *UploadError {
	return &UploadError{
		Kind:    KindFileTooLarge,
		Message: fmt.Sprintf("File too large. Maximum size: %s", formatSize(limit)),
		Code:    CodeFileSize,
		Status:  http.StatusBadRequest,
	}
}

func errFieldTooLarge(limit int64) *UploadError {
	return &UploadError{
		Kind:    KindFileTooLarge,
		Message: fmt.Sprintf("Form fields too large. Maximum size: %s", formatSize(limit)),
		Code:    CodeFieldValue,
		Status:  http.StatusBadRequest,
	}
}

func errTooManyFiles(limit int) *UploadError {
	return &UploadError{
		Kind:    KindTooManyFiles,
		Message: fmt.Sprintf("Too many files. Maximum: %d", limit),
		Code:    CodeFileCount,
		Status:  http.StatusBadRequest,
	}
}

func errUnexpectedField(field string) *UploadError {
	return &UploadError{
		Kind:    KindUnexpectedField,
		Message: fmt.Sprintf("Unexpected field: %s", field),
		Code:    CodeUnexpectedFile,
		Status:  http.StatusBadRequest,
	}
}

func errInvalidDimensions(width, height int, rule DimensionRule) *UploadError {
	return &UploadError{
		Kind:    KindInvalidDimensions,
		Message: fmt.Sprintf("Image dimensions %dx%d are outside the allowed range %s", width, height, rule),
		Code:    CodeDimensions,
		Status:  http.StatusBadRequest,
	}
}

func errMalformed(cause error) *UploadError {
	return &UploadError{
		Kind:    KindUnexpectedField,
		Message: "Malformed multipart request",
		Code:    CodeMalformed,
		Status:  http.StatusBadRequest,
		Err:     cause,
	}
}

// errValidationFailed is returned when the gate itself breaks; the upload is
// rejected rather than left hanging.
func errValidationFailed(cause error) *UploadError {
	return &UploadError{
		Kind:    KindProcessingFailure,
		Message: "File validation failed",
		Code:    CodeValidation,
		Status:  http.StatusBadRequest,
		Err:     cause,
	}
}

func errProcessing(cause error) *UploadError {
	return &UploadError{
		Kind:    KindProcessingFailure,
		Message: "Image processing failed",
		Code:    CodeProcessing,
		Status:  http.StatusInternalServerError,
		Err:     cause,
	}
}

func formatSize(n int64) string {
	const (
		kb = 1 << 10
		mb = 1 << 20
	)
	switch {
	case n >= mb && n%mb == 0:
		return fmt.Sprintf("%dMB", n/mb)
	case n >= mb:
		return fmt.Sprintf("%.1fMB", float64(n)/mb)
	case n >= kb:
		return fmt.Sprintf("%dKB", n/kb)
	}
	return fmt.Sprintf("%dB", n)
}
