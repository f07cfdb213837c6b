package docsystem

import (
	"context"

	"docusight/internal/domain/models/docsystem"
)

// ClassificationService runs sentiment classification over a folder
type ClassificationService interface {
	// ClassifyFolder classifies every document in the folder (and its
	// descendants when Recursive) that has no classification yet, and returns
	// the new classifications together with the existing ones.
	ClassifyFolder(ctx context.Context, req *ClassifyFolderRequest) (*ClassifyFolderResult, error)
}

// ClassifyFolderRequest targets a folder by path
type ClassifyFolderRequest struct {
	OwnerID    string `json:"-"`
	FolderPath string `json:"folder_path"`
	Recursive  bool   `json:"recursive"`
}

// ClassifyFolderResult lists every classification in the folder
type ClassifyFolderResult struct {
	FolderPath          string                     `json:"folder_path"`
	Created             int                        `json:"created"`
	ClassifiedDocuments []docsystem.Classification `json:"classified_documents"`
}
