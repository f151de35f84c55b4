package document

import "errors"

// Document errors.
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrProjectNotFound  = errors.New("project not found")
	ErrEmptyUpload      = errors.New("upload body is empty")
	ErrNotPDF           = errors.New("only PDF uploads are accepted")
)
