package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mail-auth/internal/domain"
)

// PendingRepository define el contrato de persistencia para registros
// pendientes de verificacion OTP, indexados por email.
type PendingRepository interface {
	Upsert(ctx context.Context, pending domain.PendingRegistration) error
	GetByEmail(ctx context.Context, email string) (domain.PendingRegistration, error)
	Delete(ctx context.Context, email string) error
}

// PgPendingRepository implementa PendingRepository usando pgxpool.
type PgPendingRepository struct {
	pool *pgxpool.Pool
}

func NewPgPendingRepository(pool *pgxpool.Pool) *PgPendingRepository {
	return &PgPendingRepository{pool: pool}
}

func (r *PgPendingRepository) Upsert(ctx context.Context, pending domain.PendingRegistration) error {
	const query = `
		INSERT INTO pending_registrations
			(id, email, password_hash, salt, code_hash, attempts, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (email) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			salt = EXCLUDED.salt,
			code_hash = EXCLUDED.code_hash,
			attempts = EXCLUDED.attempts,
			expires_at = EXCLUDED.expires_at
	`
	_, err := r.pool.Exec(ctx, query,
		pending.ID,
		pending.Email,
		pending.PasswordHash,
		pending.Salt,
		pending.CodeHash,
		pending.Attempts,
		pending.ExpiresAt,
		pending.CreatedAt,
	)
	return err
}

func (r *PgPendingRepository) GetByEmail(ctx context.Context, email string) (domain.PendingRegistration, error) {
	const query = `
		SELECT id, email, password_hash, salt, code_hash, attempts, expires_at, created_at
		FROM pending_registrations
		WHERE email = $1
	`
	var p domain.PendingRegistration
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&p.ID,
		&p.Email,
		&p.PasswordHash,
		&p.Salt,
		&p.CodeHash,
		&p.Attempts,
		&p.ExpiresAt,
		&p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PendingRegistration{}, ErrNotFound
	}
	return p, err
}

func (r *PgPendingRepository) Delete(ctx context.Context, email string) error {
	const query = `DELETE FROM pending_registrations WHERE email = $1`
	tag, err := r.pool.Exec(ctx, query, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
