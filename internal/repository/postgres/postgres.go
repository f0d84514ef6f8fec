package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/belyaev-andrey/bookify/internal/repository"
)

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// every repository runs unchanged inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB // nil for a tx-scoped store
	q  DBTX

	books      *bookRepository
	members    *memberRepository
	employees  *employeeRepository
	borrowings *borrowingRepository
	outbox     *outboxRepository
}

func NewStore(db *sql.DB) *Store {
	return newStore(db, db)
}

func newStore(db *sql.DB, q DBTX) *Store {
	return &Store{
		db:         db,
		q:          q,
		books:      &bookRepository{q: q},
		members:    &memberRepository{q: q},
		employees:  &employeeRepository{q: q},
		borrowings: &borrowingRepository{q: q},
		outbox:     &outboxRepository{q: q},
	}
}

func (s *Store) Books() repository.BookRepository             { return s.books }
func (s *Store) Members() repository.MemberRepository         { return s.members }
func (s *Store) Employees() repository.EmployeeRepository     { return s.employees }
func (s *Store) Borrowings() repository.BorrowingRepository   { return s.borrowings }
func (s *Store) Outbox() repository.OutboxRepository          { return s.outbox }

// ExecTx runs fn against a store bound to a single transaction. Nested
// calls join the ongoing transaction instead of opening a second one.
func (s *Store) ExecTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txStore := newStore(nil, tx)
	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("rollback after %v: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
