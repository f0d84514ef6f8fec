package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/belyaev-andrey/bookify/internal/domain"
	"github.com/belyaev-andrey/bookify/internal/repository"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestBookRepository_Reserve(t *testing.T) {
	ctx := context.Background()
	bookID := uuid.New()

	t.Run("available book is reserved", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("UPDATE book SET available = false").
			WithArgs(bookID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := store.Books().Reserve(ctx, bookID)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unavailable book is not reserved", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("UPDATE book SET available = false").
			WithArgs(bookID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := store.Books().Reserve(ctx, bookID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown book is not an error", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("UPDATE book SET available = false").
			WithArgs(uuid.Nil).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := store.Books().Reserve(ctx, uuid.Nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestBookRepository_CreateReservation(t *testing.T) {
	ctx := context.Background()
	res := &domain.BookReservation{
		BorrowingID: uuid.New(),
		BookID:      uuid.New(),
		Available:   true,
	}

	t.Run("first insert succeeds", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO book_reservation").
			WithArgs(res.BorrowingID, res.BookID, res.Available).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.Books().CreateReservation(ctx, res))
	})

	t.Run("unique violation maps to ErrDuplicateReservation", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO book_reservation").
			WithArgs(res.BorrowingID, res.BookID, res.Available).
			WillReturnError(&pq.Error{Code: "23505"})

		err := store.Books().CreateReservation(ctx, res)
		assert.ErrorIs(t, err, repository.ErrDuplicateReservation)
	})
}

func TestBookRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	bookID := uuid.New()

	t.Run("found", func(t *testing.T) {
		store, mock := newMockStore(t)
		rows := sqlmock.NewRows([]string{"id", "name", "isbn", "available"}).
			AddRow(bookID, "The Go Programming Language", "978-0134190440", true)
		mock.ExpectQuery("SELECT id, name, isbn, available FROM book").
			WithArgs(bookID).
			WillReturnRows(rows)

		book, err := store.Books().GetByID(ctx, bookID)
		require.NoError(t, err)
		assert.Equal(t, bookID, book.ID)
		assert.True(t, book.Available)
	})

	t.Run("missing row maps to ErrNotFound", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT id, name, isbn, available FROM book").
			WithArgs(bookID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "isbn", "available"}))

		_, err := store.Books().GetByID(ctx, bookID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestStore_ExecTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)
	bookID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE book SET available = false").
		WithArgs(bookID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := store.ExecTx(ctx, func(tx repository.Store) error {
		ok, err := tx.Books().Reserve(ctx, bookID)
		require.NoError(t, err)
		require.True(t, ok)
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ExecTxCommits(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)
	bookID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE book SET available = true").
		WithArgs(bookID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.ExecTx(ctx, func(tx repository.Store) error {
		return tx.Books().Release(ctx, bookID)
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
