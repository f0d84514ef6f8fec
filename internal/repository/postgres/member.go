package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/belyaev-andrey/bookify/internal/domain"
	"github.com/belyaev-andrey/bookify/internal/repository"
)

type memberRepository struct {
	q DBTX
}

func (r *memberRepository) Create(ctx context.Context, member *domain.Member) error {
	query := `INSERT INTO member (id, name, email, password, enabled) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.q.ExecContext(ctx, query, member.ID, member.Name, member.Email, member.Password, member.Enabled)
	return err
}

func (r *memberRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	return r.getOne(ctx, `SELECT id, name, email, password, enabled FROM member WHERE id = $1`, id)
}

func (r *memberRepository) GetByEmail(ctx context.Context, email string) (*domain.Member, error) {
	return r.getOne(ctx, `SELECT id, name, email, password, enabled FROM member WHERE email = $1`, email)
}

func (r *memberRepository) getOne(ctx context.Context, query string, arg any) (*domain.Member, error) {
	m := &domain.Member{}
	err := r.q.QueryRowContext(ctx, query, arg).Scan(&m.ID, &m.Name, &m.Email, &m.Password, &m.Enabled)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *memberRepository) Update(ctx context.Context, member *domain.Member) error {
	query := `UPDATE member SET name = $1, email = $2, password = $3, enabled = $4 WHERE id = $5`
	res, err := r.q.ExecContext(ctx, query, member.Name, member.Email, member.Password, member.Enabled, member.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *memberRepository) List(ctx context.Context) ([]domain.Member, error) {
	return r.queryMembers(ctx, `SELECT id, name, email, password, enabled FROM member ORDER BY name`)
}

func (r *memberRepository) ListEnabled(ctx context.Context) ([]domain.Member, error) {
	return r.queryMembers(ctx, `SELECT id, name, email, password, enabled FROM member WHERE enabled = true ORDER BY name`)
}

func (r *memberRepository) SearchByName(ctx context.Context, name string) ([]domain.Member, error) {
	query := `SELECT id, name, email, password, enabled FROM member WHERE name ILIKE '%' || $1 || '%' ORDER BY name`
	return r.queryMembers(ctx, query, name)
}

func (r *memberRepository) SearchByEmail(ctx context.Context, email string) ([]domain.Member, error) {
	query := `SELECT id, name, email, password, enabled FROM member WHERE email ILIKE '%' || $1 || '%' ORDER BY name`
	return r.queryMembers(ctx, query, email)
}

func (r *memberRepository) queryMembers(ctx context.Context, query string, args ...any) ([]domain.Member, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Password, &m.Enabled); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
