package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexdesk/officeauth/domain"
	"github.com/lexdesk/officeauth/repository"
)

type identityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository instantiates a Postgres-backed identity repository.
func NewIdentityRepository(pool *pgxpool.Pool) repository.IdentityRepository {
	return &identityRepository{pool: pool}
}

func (r *identityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	const query = `
		SELECT id, email, password_hash, metadata, created_at
		FROM identities
		WHERE id = $1
	`
	return scanIdentity(r.pool.QueryRow(ctx, query, id))
}

func (r *identityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	const query = `
		SELECT id, email, password_hash, metadata, created_at
		FROM identities
		WHERE email = $1
	`
	return scanIdentity(r.pool.QueryRow(ctx, query, normalizeEmail(email)))
}

func (r *identityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	if identity == nil || identity.ID == "" || strings.TrimSpace(identity.Email) == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO identities (id, email, password_hash, metadata, created_at)
	VALUES ($1, $2, $3, $4, NOW())
	RETURNING created_at
	`

	identity.Email = normalizeEmail(identity.Email)
	if err := r.pool.QueryRow(ctx, query,
		identity.ID,
		identity.Email,
		identity.PasswordHash,
		marshalMap(identity.Metadata),
	).Scan(&identity.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		return err
	}
	return nil
}

func scanIdentity(row rowScanner) (*domain.Identity, error) {
	var identity domain.Identity
	var metadata []byte

	if err := row.Scan(&identity.ID, &identity.Email, &identity.PasswordHash, &metadata, &identity.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, err
	}
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &identity.Metadata)
	}
	return &identity, nil
}
