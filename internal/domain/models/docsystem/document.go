package docsystem

import (
	"time"
)

// Document is one normalized text file inside a Folder.
//
// CreatedAt and ModifiedAt describe the original file, not the row.
// RemoteBlobRef stays nil until the blob store commits the upload.
type Document struct {
	ID                 string    `json:"id" db:"id"`
	FolderID           string    `json:"folder_id" db:"folder_id"`
	OwnerID            string    `json:"owner_id" db:"owner_id"`
	Filename           string    `json:"filename" db:"filename"`
	RelativePath       string    `json:"path" db:"relative_path"`
	Size               int64     `json:"size" db:"size"`
	CreatedAt          time.Time `json:"created" db:"created_at"`
	ModifiedAt         time.Time `json:"modified" db:"modified_at"`
	RemoteBlobRef      *string   `json:"remote_blob_ref,omitempty" db:"remote_blob_ref"`
	NormalizedTextSize *int64    `json:"normalized_text_size,omitempty" db:"normalized_text_size"`
	InsertedAt         time.Time `json:"inserted_at" db:"inserted_at"`
}
