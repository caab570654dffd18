package store

import (
	"context"
	"fmt"

	"clipper/internal/infra"
	"clipper/internal/sqlinline"
)

// EnsureSchema creates missing tables. Each statement is idempotent so
// it is safe to run on every worker start.
func EnsureSchema(ctx context.Context, sql infra.SQLExecutor) error {
	statements := []string{
		sqlinline.QCreateTasksTable,
		sqlinline.QCreateCredentialsTable,
		sqlinline.QCreateArtifactsTable,
		sqlinline.QCreateNoTranscriptTable,
	}
	for _, stmt := range statements {
		if _, err := sql.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
