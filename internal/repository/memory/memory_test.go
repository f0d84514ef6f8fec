package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/belyaev-andrey/bookify/internal/domain"
	"github.com/belyaev-andrey/bookify/internal/events"
	"github.com/belyaev-andrey/bookify/internal/repository"
)

func TestStore_ExecTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	book := domain.Book{ID: uuid.New(), Name: "Committed", Available: true}
	require.NoError(t, store.Books().Create(ctx, &book))

	err := store.ExecTx(ctx, func(tx repository.Store) error {
		ok, err := tx.Books().Reserve(ctx, book.ID)
		require.NoError(t, err)
		require.True(t, ok)

		e, err := events.NewEnvelope("test", struct{}{})
		require.NoError(t, err)
		require.NoError(t, tx.Outbox().Enqueue(ctx, e))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	// Nothing from the failed unit of work is visible.
	after, err := store.Books().GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.True(t, after.Available, "reservation rolled back")

	pending, err := store.Outbox().ListUnprocessed(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "enqueued event rolled back")
}

func TestStore_ExecTxCommitsAtomically(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	book := domain.Book{ID: uuid.New(), Name: "Reserved", Available: true}
	require.NoError(t, store.Books().Create(ctx, &book))

	err := store.ExecTx(ctx, func(tx repository.Store) error {
		ok, err := tx.Books().Reserve(ctx, book.ID)
		require.NoError(t, err)
		require.True(t, ok)
		e, err := events.NewEnvelope("test", struct{}{})
		if err != nil {
			return err
		}
		return tx.Outbox().Enqueue(ctx, e)
	})
	require.NoError(t, err)

	after, err := store.Books().GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.False(t, after.Available)

	pending, err := store.Outbox().ListUnprocessed(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestStore_NestedExecTxJoins(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	book := domain.Book{ID: uuid.New(), Name: "Nested", Available: true}
	require.NoError(t, store.Books().Create(ctx, &book))

	err := store.ExecTx(ctx, func(tx repository.Store) error {
		return tx.ExecTx(ctx, func(inner repository.Store) error {
			ok, err := inner.Books().Reserve(ctx, book.ID)
			require.NoError(t, err)
			require.True(t, ok)
			return nil
		})
	})
	require.NoError(t, err)

	after, err := store.Books().GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.False(t, after.Available)
}

func TestBookRepo_ReserveIsConditional(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	book := domain.Book{ID: uuid.New(), Name: "Contended", Available: true}
	require.NoError(t, store.Books().Create(ctx, &book))

	ok, err := store.Books().Reserve(ctx, book.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Books().Reserve(ctx, book.ID)
	require.NoError(t, err)
	assert.False(t, ok, "second reservation of the same copy fails")

	ok, err = store.Books().Reserve(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok, "unknown book reserves as unavailable, not as an error")
}

func TestBookRepo_DuplicateReservation(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	res := &domain.BookReservation{BorrowingID: uuid.New(), BookID: uuid.New(), Available: true}
	require.NoError(t, store.Books().CreateReservation(ctx, res))
	err := store.Books().CreateReservation(ctx, res)
	assert.ErrorIs(t, err, repository.ErrDuplicateReservation)

	got, err := store.Books().GetReservation(ctx, res.BorrowingID)
	require.NoError(t, err)
	assert.Equal(t, res.BookID, got.BookID)
}

func TestOutboxRepo_OrderingAndProcessing(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	for _, name := range []string{"a", "b", "c"} {
		e, err := events.NewEnvelope(name, struct{}{})
		require.NoError(t, err)
		require.NoError(t, store.Outbox().Enqueue(ctx, e))
	}

	batch, err := store.Outbox().ListUnprocessed(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "a", batch[0].EventType)
	assert.Equal(t, "b", batch[1].EventType)
	assert.Less(t, batch[0].ID, batch[1].ID)

	require.NoError(t, store.Outbox().MarkProcessed(ctx, batch[0].ID))
	rest, err := store.Outbox().ListUnprocessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, "b", rest[0].EventType)
}
