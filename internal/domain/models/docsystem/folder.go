package docsystem

import (
	"time"
)

// Folder mirrors one directory of an ingested archive.
// Path is relative to the staging root and unique per owner.
type Folder struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	ParentID  *string   `json:"parent_id" db:"parent_id"` // NULL = archive root
	Name      string    `json:"name" db:"name"`
	Path      string    `json:"path" db:"path"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
