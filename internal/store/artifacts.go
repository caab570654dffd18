package store

import (
	"context"

	"clipper/internal/domain"
	"clipper/internal/infra"
	"clipper/internal/sqlinline"
)

// ArtifactStore records produced clips. Rows are immutable once written.
type ArtifactStore struct {
	sql infra.SQLExecutor
}

func NewArtifactStore(sql infra.SQLExecutor) *ArtifactStore {
	return &ArtifactStore{sql: sql}
}

func (s *ArtifactStore) Insert(ctx context.Context, a domain.Artifact) (domain.Artifact, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QInsertArtifact,
		a.VideoID, a.Filename, a.Title, a.Description, a.Duration, a.StorageKey, a.PublicURL)
	if err := row.Scan(&a.ID); err != nil {
		return domain.Artifact{}, err
	}
	return a, nil
}

func (s *ArtifactStore) List(ctx context.Context, limit, offset int) ([]domain.Artifact, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.sql.Query(ctx, sqlinline.QListArtifacts, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var artifacts []domain.Artifact
	for rows.Next() {
		var a domain.Artifact
		if err := rows.Scan(&a.ID, &a.VideoID, &a.Filename, &a.Title, &a.Description,
			&a.Duration, &a.StorageKey, &a.PublicURL, &a.CreatedAt); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}
