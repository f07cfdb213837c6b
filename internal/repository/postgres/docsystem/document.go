package docsystem

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docusight/internal/domain"
	models "docusight/internal/domain/models/docsystem"
	docsysRepo "docusight/internal/domain/repositories/docsystem"
	"docusight/internal/repository/postgres"
)

const documentColumns = `id, folder_id, owner_id, filename, relative_path, size, created_at, modified_at,
	remote_blob_ref, normalized_text_size, inserted_at`

// PostgresDocumentRepository implements the DocumentRepository interface
type PostgresDocumentRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(config *postgres.RepositoryConfig) docsysRepo.DocumentRepository {
	return &PostgresDocumentRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create creates a new document
func (r *PostgresDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (folder_id, owner_id, filename, relative_path, size, created_at, modified_at,
			remote_blob_ref, normalized_text_size)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, inserted_at
	`, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		doc.FolderID,
		doc.OwnerID,
		doc.Filename,
		doc.RelativePath,
		doc.Size,
		doc.CreatedAt,
		doc.ModifiedAt,
		doc.RemoteBlobRef,
		doc.NormalizedTextSize,
	).Scan(&doc.ID, &doc.InsertedAt)

	if err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("folder %s: %w", doc.FolderID, domain.ErrNotFound)
		}
		return fmt.Errorf("create document: %w", err)
	}

	return nil
}

// SetRemoteBlob records where the document's text lives in the blob store
func (r *PostgresDocumentRepository) SetRemoteBlob(ctx context.Context, id, ownerID, blobRef string, textSize int64) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET remote_blob_ref = $1, normalized_text_size = $2
		WHERE id = $3 AND owner_id = $4
	`, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, blobRef, textSize, id, ownerID)
	if err != nil {
		return fmt.Errorf("set remote blob: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// ListByFolders lists every document in the given folders
func (r *PostgresDocumentRepository) ListByFolders(ctx context.Context, folderIDs []string, ownerID string) ([]models.Document, error) {
	if len(folderIDs) == 0 {
		return []models.Document{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE folder_id = ANY($1::uuid[]) AND owner_id = $2
		ORDER BY relative_path ASC
	`, documentColumns, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, folderIDs, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return collectDocuments(rows)
}

// ListUnclassifiedByFolders lists documents in the given folders with no classification row
func (r *PostgresDocumentRepository) ListUnclassifiedByFolders(ctx context.Context, folderIDs []string, ownerID string) ([]models.Document, error) {
	if len(folderIDs) == 0 {
		return []models.Document{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s d
		WHERE d.folder_id = ANY($1::uuid[]) AND d.owner_id = $2
			AND NOT EXISTS (SELECT 1 FROM %s c WHERE c.document_id = d.id)
		ORDER BY d.relative_path ASC
	`, prefixColumns("d", documentColumns), r.tables.Documents, r.tables.Classifications)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, folderIDs, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list unclassified documents: %w", err)
	}
	return collectDocuments(rows)
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	var doc models.Document
	err := row.Scan(
		&doc.ID,
		&doc.FolderID,
		&doc.OwnerID,
		&doc.Filename,
		&doc.RelativePath,
		&doc.Size,
		&doc.CreatedAt,
		&doc.ModifiedAt,
		&doc.RemoteBlobRef,
		&doc.NormalizedTextSize,
		&doc.InsertedAt,
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func collectDocuments(rows pgx.Rows) ([]models.Document, error) {
	defer rows.Close()

	docs := make([]models.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return docs, nil
}
