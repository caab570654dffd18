package store

import (
	"context"
	"errors"
	"strings"

	"clipper/internal/domain"
	"clipper/internal/infra"
	"clipper/internal/sqlinline"
)

// CredentialStore persists API credentials per external service. Disables are
// written through before the in-memory pool forgets a credential, so a
// process restart never resurrects one.
type CredentialStore struct {
	sql infra.SQLExecutor
}

func NewCredentialStore(sql infra.SQLExecutor) *CredentialStore {
	return &CredentialStore{sql: sql}
}

// ActiveForService returns the active working set for one service, least
// recently used first.
func (s *CredentialStore) ActiveForService(ctx context.Context, service string) ([]domain.Credential, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QSelectActiveCredentials, service)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCredentials(rows)
}

func (s *CredentialStore) List(ctx context.Context) ([]domain.Credential, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QListCredentials)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCredentials(rows)
}

// Insert persists a new credential and returns it with the assigned ID.
func (s *CredentialStore) Insert(ctx context.Context, cred domain.Credential) (domain.Credential, error) {
	if strings.TrimSpace(cred.Secret) == "" {
		return domain.Credential{}, errors.New("credential secret is required")
	}
	if strings.TrimSpace(cred.Service) == "" {
		return domain.Credential{}, errors.New("credential service is required")
	}
	status := cred.Status
	if status == "" {
		status = domain.CredentialActive
	}
	row := s.sql.QueryRow(ctx, sqlinline.QInsertCredential,
		cred.Service, strings.TrimSpace(cred.Secret), cred.Email, cred.Password, status)
	if err := row.Scan(&cred.ID); err != nil {
		return domain.Credential{}, err
	}
	cred.Status = status
	return cred, nil
}

func (s *CredentialStore) Disable(ctx context.Context, id int64, reason string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QDisableCredential, id, reason)
	return err
}

func (s *CredentialStore) MarkUsed(ctx context.Context, id int64) error {
	_, err := s.sql.Exec(ctx, sqlinline.QMarkCredentialUsed, id)
	return err
}

type credentialRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanCredentials(rows credentialRows) ([]domain.Credential, error) {
	var creds []domain.Credential
	for rows.Next() {
		var c domain.Credential
		if err := rows.Scan(&c.ID, &c.Service, &c.Secret, &c.Email, &c.Password,
			&c.Status, &c.UsageCount, &c.DisabledReason, &c.LastUsed, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}
