package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexdesk/officeauth/domain"
	"github.com/lexdesk/officeauth/repository"
)

type profileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository instantiates a Postgres-backed profile repository.
func NewProfileRepository(pool *pgxpool.Pool) repository.ProfileRepository {
	return &profileRepository{pool: pool}
}

func (r *profileRepository) GetByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	const query = `
		SELECT user_id, email, full_name, role, office_id, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`
	return scanProfile(r.pool.QueryRow(ctx, query, userID))
}

// Ensure creates the profile or, for an existing row, only promotes it to super_admin when forced.
// A single statement keeps concurrent resolutions from producing two rows.
func (r *profileRepository) Ensure(ctx context.Context, input repository.EnsureProfileInput) (*domain.Profile, error) {
	if input.UserID == "" {
		return nil, domain.ErrInvalidPayload
	}
	role := input.Role
	if !role.Valid() {
		role = domain.RoleUser
	}

	const query = `
	INSERT INTO profiles (user_id, email, full_name, role, created_at, updated_at)
	VALUES ($1, $2, $3, $4, NOW(), NOW())
	ON CONFLICT (user_id) DO UPDATE
	SET role = CASE WHEN $5::boolean THEN 'super_admin' ELSE profiles.role END,
		updated_at = CASE
			WHEN $5::boolean AND profiles.role <> 'super_admin' THEN NOW()
			ELSE profiles.updated_at
		END
	RETURNING user_id, email, full_name, role, office_id, created_at, updated_at
	`

	return scanProfile(r.pool.QueryRow(ctx, query,
		input.UserID,
		normalizeEmail(input.Email),
		input.FullName,
		string(role),
		input.ForceSuperAdmin,
	))
}

func (r *profileRepository) UpdateRole(ctx context.Context, userID string, role domain.Role) error {
	if userID == "" || !role.Valid() {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE profiles
	SET role = $2,
		updated_at = NOW()
	WHERE user_id = $1 AND role <> $2
	`
	tag, err := r.pool.Exec(ctx, query, userID, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either already corrected or missing; tell them apart.
		if _, err := r.GetByUserID(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

func scanProfile(row rowScanner) (*domain.Profile, error) {
	var (
		profile domain.Profile
		role    string
	)
	if err := row.Scan(
		&profile.UserID,
		&profile.Email,
		&profile.FullName,
		&role,
		&profile.OfficeID,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, err
	}
	profile.Role = domain.ParseRole(role)
	return &profile, nil
}
