package docsystem

// FolderTree is a folder with its documents and nested subfolders
type FolderTree struct {
	ID         string        `json:"id"`
	Path       string        `json:"path"`
	Name       string        `json:"name"`
	ParentID   *string       `json:"parent_id"`
	Documents  []Document    `json:"documents"`
	Subfolders []*FolderTree `json:"subfolders"` // Pointers for proper nesting
}
