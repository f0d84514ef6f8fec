package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/belyaev-andrey/bookify/internal/domain"
	"github.com/belyaev-andrey/bookify/internal/repository"
)

type bookRepository struct {
	q DBTX
}

func (r *bookRepository) Create(ctx context.Context, book *domain.Book) error {
	query := `INSERT INTO book (id, name, isbn, available) VALUES ($1, $2, $3, $4)`
	_, err := r.q.ExecContext(ctx, query, book.ID, book.Name, book.ISBN, book.Available)
	return err
}

func (r *bookRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
	book := &domain.Book{}
	query := `SELECT id, name, isbn, available FROM book WHERE id = $1`
	err := r.q.QueryRowContext(ctx, query, id).Scan(&book.ID, &book.Name, &book.ISBN, &book.Available)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return book, nil
}

func (r *bookRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM book WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *bookRepository) List(ctx context.Context) ([]domain.Book, error) {
	return r.queryBooks(ctx, `SELECT id, name, isbn, available FROM book ORDER BY name`)
}

func (r *bookRepository) SearchByName(ctx context.Context, name string) ([]domain.Book, error) {
	query := `SELECT id, name, isbn, available FROM book WHERE name ILIKE '%' || $1 || '%' ORDER BY name`
	return r.queryBooks(ctx, query, name)
}

func (r *bookRepository) queryBooks(ctx context.Context, query string, args ...any) ([]domain.Book, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []domain.Book
	for rows.Next() {
		var b domain.Book
		if err := rows.Scan(&b.ID, &b.Name, &b.ISBN, &b.Available); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// Reserve is the single check-and-set gate for lending a copy. The
// conditional UPDATE makes read-check-write a single statement, so two
// concurrent reservations can never both succeed.
func (r *bookRepository) Reserve(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.q.ExecContext(ctx, `UPDATE book SET available = false WHERE id = $1 AND available = true`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *bookRepository) Release(ctx context.Context, id uuid.UUID) error {
	_, err := r.q.ExecContext(ctx, `UPDATE book SET available = true WHERE id = $1`, id)
	return err
}

func (r *bookRepository) GetReservation(ctx context.Context, borrowingID uuid.UUID) (*domain.BookReservation, error) {
	res := &domain.BookReservation{}
	query := `SELECT borrowing_id, book_id, available FROM book_reservation WHERE borrowing_id = $1`
	err := r.q.QueryRowContext(ctx, query, borrowingID).Scan(&res.BorrowingID, &res.BookID, &res.Available)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *bookRepository) CreateReservation(ctx context.Context, res *domain.BookReservation) error {
	query := `INSERT INTO book_reservation (borrowing_id, book_id, available) VALUES ($1, $2, $3)`
	_, err := r.q.ExecContext(ctx, query, res.BorrowingID, res.BookID, res.Available)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return repository.ErrDuplicateReservation
	}
	return err
}
