package dto

import "time"

type ResultFileDTO struct {
	ID         uint64    `json:"id"`
	RequestID  uint64    `json:"request_id"`
	UploadedBy *uint64   `json:"uploaded_by,omitempty"`
	FileName   string    `json:"file_name"`
	FilePath   string    `json:"file_path"`
	FileSize   int64     `json:"file_size"`
	UploadedAt time.Time `json:"uploaded_at"`
}
