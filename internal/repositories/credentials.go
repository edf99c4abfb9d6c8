package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/rsc/internal/models"
	"github.com/desertthunder/rsc/internal/shared"
	"github.com/google/uuid"
)

// CredentialRepository stores the installation identity and the credential saved by `auth login`.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// InstallationID returns the id of this installation, generating and storing one on first use.
func (r *CredentialRepository) InstallationID(ctx context.Context) (string, error) {
	var id string
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT OR IGNORE INTO installation (id, installation_id, created_at)
			VALUES (1, ?, ?)
		`
		if _, err := tx.ExecContext(ctx, query, uuid.New().String(), time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to create installation: %w", err)
		}

		if err := tx.QueryRowContext(ctx, `SELECT installation_id FROM installation WHERE id = 1`).Scan(&id); err != nil {
			return fmt.Errorf("failed to get installation: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Save inserts or replaces the credential for this installation.
func (r *CredentialRepository) Save(ctx context.Context, cred models.Credential) error {
	if cred.AccessToken == "" || cred.UserID == "" {
		return fmt.Errorf("%w: access token and user id are required", shared.ErrInvalidCredentials)
	}

	installationID, err := r.InstallationID(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO credentials (installation_id, user_id, access_token, refresh_token, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(installation_id) DO UPDATE SET
			user_id = excluded.user_id,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		installationID, cred.UserID, cred.AccessToken, cred.RefreshToken,
		cred.ExpiresAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Load returns the saved credential, or [shared.ErrNotAuthenticated] when none exists.
func (r *CredentialRepository) Load(ctx context.Context) (models.Credential, error) {
	installationID, err := r.InstallationID(ctx)
	if err != nil {
		return models.Credential{}, err
	}

	query := `
		SELECT user_id, access_token, refresh_token, expires_at
		FROM credentials
		WHERE installation_id = ?
	`

	var cred models.Credential
	err = r.db.QueryRowContext(ctx, query, installationID).Scan(
		&cred.UserID, &cred.AccessToken, &cred.RefreshToken, &cred.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Credential{}, shared.ErrNotAuthenticated
	}
	if err != nil {
		return models.Credential{}, fmt.Errorf("failed to load credential: %w", err)
	}
	return cred, nil
}

// Delete removes the saved credential. Deleting when nothing is saved is not an error.
func (r *CredentialRepository) Delete(ctx context.Context) error {
	installationID, err := r.InstallationID(ctx)
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE installation_id = ?`, installationID); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}
