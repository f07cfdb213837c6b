package docsystem

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"docusight/internal/domain"
	models "docusight/internal/domain/models/docsystem"
	docsysRepo "docusight/internal/domain/repositories/docsystem"
	"docusight/internal/repository/postgres"
)

// PostgresClassificationRepository implements the ClassificationRepository interface
type PostgresClassificationRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewClassificationRepository creates a new classification repository
func NewClassificationRepository(config *postgres.RepositoryConfig) docsysRepo.ClassificationRepository {
	return &PostgresClassificationRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a classification. A concurrent run that already classified
// the document wins: its row is loaded into c and created is false.
func (r *PostgresClassificationRepository) Create(ctx context.Context, c *models.Classification) (bool, error) {
	if !c.Label.Valid() {
		return false, fmt.Errorf("%w: label %q is not a sentiment label", domain.ErrValidation, c.Label)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (document_id, owner_id, label, score)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (document_id) DO NOTHING
		RETURNING id, created_at
	`, r.tables.Classifications)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		c.DocumentID,
		c.OwnerID,
		string(c.Label),
		c.Score,
	).Scan(&c.ID, &c.CreatedAt)

	if err == nil {
		return true, nil
	}
	if postgres.IsPgForeignKeyError(err) {
		return false, fmt.Errorf("document %s: %w", c.DocumentID, domain.ErrNotFound)
	}
	if !postgres.IsPgNoRowsError(err) {
		return false, fmt.Errorf("create classification: %w", err)
	}

	r.logger.Warn("document already classified, keeping existing row", "document_id", c.DocumentID)

	existing := fmt.Sprintf(`
		SELECT id, owner_id, label, score, created_at
		FROM %s
		WHERE document_id = $1
	`, r.tables.Classifications)

	var label string
	err = executor.QueryRow(ctx, existing, c.DocumentID).Scan(&c.ID, &c.OwnerID, &label, &c.Score, &c.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("get existing classification: %w", err)
	}
	c.Label = models.SentimentLabel(label)

	return false, nil
}

// ListByFolders lists classifications joined with their documents
func (r *PostgresClassificationRepository) ListByFolders(ctx context.Context, folderIDs []string, ownerID string) ([]models.Classification, error) {
	if len(folderIDs) == 0 {
		return []models.Classification{}, nil
	}

	query := fmt.Sprintf(`
		SELECT c.id, c.document_id, c.owner_id, c.label, c.score, c.created_at, %s
		FROM %s c
		INNER JOIN %s d ON d.id = c.document_id
		WHERE d.folder_id = ANY($1::uuid[]) AND d.owner_id = $2
		ORDER BY d.relative_path ASC
	`, prefixColumns("d", documentColumns), r.tables.Classifications, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, folderIDs, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list classifications: %w", err)
	}
	defer rows.Close()

	results := make([]models.Classification, 0)
	for rows.Next() {
		var c models.Classification
		var label string
		var doc models.Document
		err := rows.Scan(
			&c.ID,
			&c.DocumentID,
			&c.OwnerID,
			&label,
			&c.Score,
			&c.CreatedAt,
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
			return nil, fmt.Errorf("scan classification: %w", err)
		}
		c.Label = models.SentimentLabel(label)
		c.Document = &doc
		results = append(results, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classifications: %w", err)
	}

	return results, nil
}
