package document

import (
	"bufio"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/clinica/clinica/internal/platform/apperr"
)

// MaxUploadSize is the largest accepted document.
const MaxUploadSize = 5 << 20

// allowedTypes maps accepted extensions to the content types they must sniff as.
var allowedTypes = map[string]string{
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
}

type Document struct {
	ID          int64     `json:"id"`
	HistoryID   *int64    `json:"history_id,omitempty"`
	OwnerID     int64     `json:"owner_id"`
	Name        string    `json:"name"`
	Path        string    `json:"-"`
	MimeType    string    `json:"mime_type"`
	Size        int64     `json:"size"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Patient profile behind the linked history, if any.
	HistoryPatientID *int64 `json:"-"`
}

// UploadInput carries an uploaded file. Body is read once, after validation.
type UploadInput struct {
	Name        string
	Description *string
	HistoryID   *int64
	Filename    string
	Size        int64
	Body        io.Reader

	ext      string
	mimeType string
}

// Validate checks the metadata, the extension, the size and the sniffed
// content type. It buffers Body so the sniffed bytes are not lost.
func (in *UploadInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperr.Validation("name is required")
	}
	if len(in.Name) > 255 {
		return apperr.Validation("name must be at most 255 characters")
	}
	if in.HistoryID != nil && *in.HistoryID <= 0 {
		return apperr.Validation("history_id must be a positive integer")
	}
	if in.Body == nil {
		return apperr.Validation("file is required")
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(in.Filename), "."))
	want, ok := allowedTypes[ext]
	if !ok {
		return apperr.Validation("file must be one of pdf, jpg, jpeg, png")
	}
	if in.Size <= 0 {
		return apperr.Validation("file is empty")
	}
	if in.Size > MaxUploadSize {
		return apperr.Validation("file must be at most 5 MB")
	}

	br := bufio.NewReaderSize(in.Body, 512)
	head, err := br.Peek(512)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return apperr.BadRequest("read upload: %v", err)
	}
	if got := http.DetectContentType(head); got != want {
		return apperr.Validation("file content does not match its extension")
	}
	in.Body = io.LimitReader(br, MaxUploadSize)
	in.ext = ext
	in.mimeType = want
	return nil
}
