package entities

import (
	"time"

	"github.com/aarondl/null/v8"
)

type Attachment struct {
	ID         uint64      `db:"id"`
	RequestID  uint64      `db:"request_id"`
	UploadedBy null.Uint64 `db:"uploaded_by"`
	FileName   string      `db:"file_name"`
	FilePath   string      `db:"file_path"`
	FileSize   int64       `db:"file_size"`
	UploadedAt time.Time   `db:"uploaded_at"`
}
