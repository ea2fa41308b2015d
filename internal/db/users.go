package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository is the PostgreSQL credential store.
type UserRepository struct {
	pool *pgxpool.Pool
}

// Get retrieves a user by streaming-provider id.
func (r *UserRepository) Get(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, display_name, email, image_url, image_width, image_height,
		       access_token, refresh_token, token_type, expires_in, issued_at, scope,
		       created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var (
		user        User
		imageURL    *string
		imageWidth  *int
		imageHeight *int
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.DisplayName,
		&user.Email,
		&imageURL,
		&imageWidth,
		&imageHeight,
		&user.Credential.AccessToken,
		&user.Credential.RefreshToken,
		&user.Credential.TokenType,
		&user.Credential.ExpiresIn,
		&user.Credential.IssuedAt,
		&user.Credential.Scope,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	if imageURL != nil {
		img := ProfileImage{URL: *imageURL}
		if imageWidth != nil {
			img.Width = *imageWidth
		}
		if imageHeight != nil {
			img.Height = *imageHeight
		}
		user.Image = &img
	}
	return &user, nil
}

// Upsert creates a user or, when the id already exists, overwrites only the
// credential fields so a re-login never clobbers profile data.
func (r *UserRepository) Upsert(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, display_name, email, image_url, image_width, image_height,
		                   access_token, refresh_token, token_type, expires_in, issued_at, scope,
		                   created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_type = EXCLUDED.token_type,
			expires_in = EXCLUDED.expires_in,
			issued_at = EXCLUDED.issued_at,
			scope = EXCLUDED.scope,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	var (
		imageURL    *string
		imageWidth  *int
		imageHeight *int
	)
	if user.Image != nil {
		imageURL = &user.Image.URL
		imageWidth = &user.Image.Width
		imageHeight = &user.Image.Height
	}

	err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.DisplayName,
		user.Email,
		imageURL,
		imageWidth,
		imageHeight,
		user.Credential.AccessToken,
		user.Credential.RefreshToken,
		user.Credential.TokenType,
		user.Credential.ExpiresIn,
		user.Credential.IssuedAt,
		user.Credential.Scope,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	return nil
}

// UpdateCredential replaces the stored credential. An empty refresh token
// preserves the previous one.
func (r *UserRepository) UpdateCredential(ctx context.Context, id string, cred Credential) error {
	query := `
		UPDATE users
		SET access_token = $2,
		    refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
		    token_type = $4,
		    expires_in = $5,
		    issued_at = $6,
		    scope = $7,
		    updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		id,
		cred.AccessToken,
		cred.RefreshToken,
		cred.TokenType,
		cred.ExpiresIn,
		cred.IssuedAt,
		cred.Scope,
	)
	if err != nil {
		return fmt.Errorf("updating credential: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
