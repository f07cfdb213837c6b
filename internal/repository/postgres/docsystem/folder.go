package docsystem

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docusight/internal/domain"
	models "docusight/internal/domain/models/docsystem"
	docsysRepo "docusight/internal/domain/repositories/docsystem"
	"docusight/internal/repository/postgres"
)

const folderColumns = "id, owner_id, parent_id, name, path, created_at"

// PostgresFolderRepository implements the FolderRepository interface
type PostgresFolderRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(config *postgres.RepositoryConfig) docsysRepo.FolderRepository {
	return &PostgresFolderRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create creates a new folder
func (r *PostgresFolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (owner_id, parent_id, name, path)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, r.tables.Folders)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		folder.OwnerID,
		folder.ParentID,
		folder.Name,
		folder.Path,
	).Scan(&folder.ID, &folder.CreatedAt)

	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("folder '%s' already exists", folder.Path),
				ResourceType: "folder",
			}
		}
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("parent folder of '%s': %w", folder.Path, domain.ErrNotFound)
		}
		return fmt.Errorf("create folder: %w", err)
	}

	return nil
}

// GetByPath walks the path segment by segment from the owner's root folders.
// Names match exactly (case-sensitive); there is no partial-path fallback.
func (r *PostgresFolderRepository) GetByPath(ctx context.Context, ownerID, path string) (*models.Folder, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, fmt.Errorf("folder path is empty: %w", domain.ErrValidation)
	}

	var current *models.Folder
	for _, segment := range strings.Split(trimmed, "/") {
		var parentID *string
		if current != nil {
			parentID = &current.ID
		}

		folder, err := r.getFolderByNameAndParent(ctx, ownerID, segment, parentID)
		if err != nil {
			return nil, err
		}
		if folder == nil {
			return nil, fmt.Errorf("folder at path '%s': %w", path, domain.ErrNotFound)
		}
		current = folder
	}

	return current, nil
}

// ListSubtree returns the folder and all its descendants using a recursive CTE
func (r *PostgresFolderRepository) ListSubtree(ctx context.Context, folderID, ownerID string) ([]models.Folder, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE subtree AS (
			SELECT %[1]s, 0 AS depth
			FROM %[2]s
			WHERE id = $1 AND owner_id = $2

			UNION ALL

			SELECT f.id, f.owner_id, f.parent_id, f.name, f.path, f.created_at, s.depth + 1
			FROM %[2]s f
			INNER JOIN subtree s ON f.parent_id = s.id
			WHERE f.owner_id = $2
		)
		SELECT %[1]s
		FROM subtree
		ORDER BY depth ASC, path ASC
	`, folderColumns, r.tables.Folders)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, folderID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list folder subtree: %w", err)
	}

	folders, err := collectFolders(rows)
	if err != nil {
		return nil, err
	}
	if len(folders) == 0 {
		return nil, fmt.Errorf("folder %s: %w", folderID, domain.ErrNotFound)
	}
	return folders, nil
}

// getFolderByNameAndParent finds a folder by name under parentID (nil = root).
// Returns nil, nil when there is no match.
func (r *PostgresFolderRepository) getFolderByNameAndParent(ctx context.Context, ownerID, name string, parentID *string) (*models.Folder, error) {
	var query string
	var args []interface{}

	if parentID == nil {
		query = fmt.Sprintf(`
			SELECT %s
			FROM %s
			WHERE owner_id = $1 AND name = $2 AND parent_id IS NULL
		`, folderColumns, r.tables.Folders)
		args = append(args, ownerID, name)
	} else {
		query = fmt.Sprintf(`
			SELECT %s
			FROM %s
			WHERE owner_id = $1 AND name = $2 AND parent_id = $3
		`, folderColumns, r.tables.Folders)
		args = append(args, ownerID, name, *parentID)
	}

	executor := postgres.GetExecutor(ctx, r.pool)
	folder, err := scanFolder(executor.QueryRow(ctx, query, args...))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get folder by name and parent: %w", err)
	}

	return folder, nil
}

func scanFolder(row pgx.Row) (*models.Folder, error) {
	var folder models.Folder
	err := row.Scan(
		&folder.ID,
		&folder.OwnerID,
		&folder.ParentID,
		&folder.Name,
		&folder.Path,
		&folder.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

func collectFolders(rows pgx.Rows) ([]models.Folder, error) {
	defer rows.Close()

	folders := make([]models.Folder, 0)
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, *folder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}

	return folders, nil
}
