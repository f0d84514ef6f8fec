package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/belyaev-andrey/bookify/internal/domain"
	"github.com/belyaev-andrey/bookify/internal/repository"
)

type borrowingRepository struct {
	q DBTX
}

const borrowingColumns = `id, member_id, requested_book_id, book_id, status, borrow_date, resolved_at, return_date`

func (r *borrowingRepository) Create(ctx context.Context, b *domain.Borrowing) error {
	query := `INSERT INTO borrowing (` + borrowingColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.ExecContext(ctx, query,
		b.ID, b.MemberID, b.RequestedBookID, nullUUID(b.BookID), b.Status, b.BorrowDate, nullTime(b.ResolvedAt), nullTime(b.ReturnDate))
	return err
}

func (r *borrowingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Borrowing, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+borrowingColumns+` FROM borrowing WHERE id = $1`, id)
	b, err := scanBorrowing(row)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *borrowingRepository) Update(ctx context.Context, b *domain.Borrowing) error {
	query := `UPDATE borrowing SET book_id = $1, status = $2, resolved_at = $3, return_date = $4 WHERE id = $5`
	res, err := r.q.ExecContext(ctx, query, nullUUID(b.BookID), b.Status, nullTime(b.ResolvedAt), nullTime(b.ReturnDate), b.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *borrowingRepository) List(ctx context.Context) ([]domain.Borrowing, error) {
	return r.queryBorrowings(ctx, `SELECT `+borrowingColumns+` FROM borrowing ORDER BY borrow_date DESC`)
}

func (r *borrowingRepository) ListByMember(ctx context.Context, memberID uuid.UUID) ([]domain.Borrowing, error) {
	query := `SELECT ` + borrowingColumns + ` FROM borrowing WHERE member_id = $1 ORDER BY borrow_date DESC`
	return r.queryBorrowings(ctx, query, memberID)
}

func (r *borrowingRepository) ListActiveByMember(ctx context.Context, memberID uuid.UUID) ([]domain.Borrowing, error) {
	query := `SELECT ` + borrowingColumns + ` FROM borrowing
	          WHERE member_id = $1 AND status = $2 AND return_date IS NULL ORDER BY borrow_date`
	return r.queryBorrowings(ctx, query, memberID, domain.BorrowingStatusApproved)
}

func (r *borrowingRepository) FindActiveByBook(ctx context.Context, bookID uuid.UUID) ([]domain.Borrowing, error) {
	query := `SELECT ` + borrowingColumns + ` FROM borrowing
	          WHERE book_id = $1 AND status = $2 AND return_date IS NULL`
	return r.queryBorrowings(ctx, query, bookID, domain.BorrowingStatusApproved)
}

func (r *borrowingRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Borrowing, error) {
	query := `SELECT ` + borrowingColumns + ` FROM borrowing
	          WHERE status = $1 AND borrow_date < $2 ORDER BY borrow_date`
	return r.queryBorrowings(ctx, query, domain.BorrowingStatusPending, cutoff)
}

func (r *borrowingRepository) queryBorrowings(ctx context.Context, query string, args ...any) ([]domain.Borrowing, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var borrowings []domain.Borrowing
	for rows.Next() {
		b, err := scanBorrowing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan borrowing: %w", err)
		}
		borrowings = append(borrowings, *b)
	}
	return borrowings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBorrowing(row rowScanner) (*domain.Borrowing, error) {
	var (
		b          domain.Borrowing
		bookID     uuid.NullUUID
		resolvedAt sql.NullTime
		returnDate sql.NullTime
	)
	err := row.Scan(&b.ID, &b.MemberID, &b.RequestedBookID, &bookID, &b.Status, &b.BorrowDate, &resolvedAt, &returnDate)
	if err != nil {
		return nil, err
	}
	if bookID.Valid {
		id := bookID.UUID
		b.BookID = &id
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		b.ResolvedAt = &t
	}
	if returnDate.Valid {
		t := returnDate.Time
		b.ReturnDate = &t
	}
	return &b, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
