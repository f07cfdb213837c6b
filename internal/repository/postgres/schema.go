package postgres

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"text/template"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

var schemaTemplate = template.Must(template.New("schema").Parse(schemaSQL))

// RenderSchema returns the DDL for the given table names
func RenderSchema(tables *TableNames) (string, error) {
	var buf bytes.Buffer
	if err := schemaTemplate.Execute(&buf, tables); err != nil {
		return "", fmt.Errorf("render schema: %w", err)
	}
	return buf.String(), nil
}

// EnsureSchema creates the prefixed tables if they do not exist yet
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	ddl, err := RenderSchema(tables)
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// DropSchema drops the prefixed tables and everything that depends on them
func DropSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	for _, table := range tables.All() {
		if _, err := pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)); err != nil {
			return fmt.Errorf("drop table %s: %w", table, err)
		}
	}
	return nil
}
