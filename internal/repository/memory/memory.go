// Package memory holds an in-memory repository.Store used by service
// tests and by local experimentation. ExecTx clones the whole data set
// and swaps it in on success, so rollback-on-error behaves like the
// postgres store, and the store mutex serializes units of work.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/belyaev-andrey/bookify/internal/domain"
	"github.com/belyaev-andrey/bookify/internal/events"
	"github.com/belyaev-andrey/bookify/internal/repository"
)

type data struct {
	books        map[uuid.UUID]domain.Book
	reservations map[uuid.UUID]domain.BookReservation
	members      map[uuid.UUID]domain.Member
	employees    []domain.Employee
	borrowings   map[uuid.UUID]domain.Borrowing
	borrowOrder  []uuid.UUID
	outbox       []events.Envelope
	nextEventID  int64
}

func newData() *data {
	return &data{
		books:        make(map[uuid.UUID]domain.Book),
		reservations: make(map[uuid.UUID]domain.BookReservation),
		members:      make(map[uuid.UUID]domain.Member),
		borrowings:   make(map[uuid.UUID]domain.Borrowing),
		nextEventID:  1,
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.books {
		c.books[k] = v
	}
	for k, v := range d.reservations {
		c.reservations[k] = v
	}
	for k, v := range d.members {
		c.members[k] = v
	}
	for k, v := range d.borrowings {
		c.borrowings[k] = v
	}
	c.employees = append(c.employees, d.employees...)
	c.borrowOrder = append(c.borrowOrder, d.borrowOrder...)
	c.outbox = append(c.outbox, d.outbox...)
	c.nextEventID = d.nextEventID
	return c
}

type Store struct {
	mu sync.Mutex
	d  *data
}

func NewStore() *Store {
	return &Store{d: newData()}
}

func (s *Store) Books() repository.BookRepository           { return &bookRepo{s: s} }
func (s *Store) Members() repository.MemberRepository       { return &memberRepo{s: s} }
func (s *Store) Employees() repository.EmployeeRepository   { return &employeeRepo{s: s} }
func (s *Store) Borrowings() repository.BorrowingRepository { return &borrowingRepo{s: s} }
func (s *Store) Outbox() repository.OutboxRepository        { return &outboxRepo{s: s} }

func (s *Store) ExecTx(ctx context.Context, fn func(repository.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := s.d.clone()
	if err := fn(&txStore{d: clone}); err != nil {
		return err
	}
	s.d = clone
	return nil
}

// txStore operates on the transaction clone without locking; the outer
// ExecTx holds the store mutex for the whole unit of work.
type txStore struct {
	d *data
}

func (t *txStore) Books() repository.BookRepository           { return &bookRepo{d: t.d} }
func (t *txStore) Members() repository.MemberRepository       { return &memberRepo{d: t.d} }
func (t *txStore) Employees() repository.EmployeeRepository   { return &employeeRepo{d: t.d} }
func (t *txStore) Borrowings() repository.BorrowingRepository { return &borrowingRepo{d: t.d} }
func (t *txStore) Outbox() repository.OutboxRepository        { return &outboxRepo{d: t.d} }

func (t *txStore) ExecTx(ctx context.Context, fn func(repository.Store) error) error {
	return fn(t)
}

// repos hold either s (root store, lock per call) or d (tx clone).

type bookRepo struct {
	s *Store
	d *data
}

func (r *bookRepo) with(fn func(d *data) error) error {
	if r.d != nil {
		return fn(r.d)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return fn(r.s.d)
}

func (r *bookRepo) Create(ctx context.Context, book *domain.Book) error {
	return r.with(func(d *data) error {
		d.books[book.ID] = *book
		return nil
	})
}

func (r *bookRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
	var book domain.Book
	err := r.with(func(d *data) error {
		b, ok := d.books[id]
		if !ok {
			return repository.ErrNotFound
		}
		book = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.with(func(d *data) error {
		if _, ok := d.books[id]; !ok {
			return repository.ErrNotFound
		}
		delete(d.books, id)
		return nil
	})
}

func (r *bookRepo) List(ctx context.Context) ([]domain.Book, error) {
	var books []domain.Book
	_ = r.with(func(d *data) error {
		for _, b := range d.books {
			books = append(books, b)
		}
		return nil
	})
	sort.Slice(books, func(i, j int) bool { return books[i].Name < books[j].Name })
	return books, nil
}

func (r *bookRepo) SearchByName(ctx context.Context, name string) ([]domain.Book, error) {
	all, _ := r.List(ctx)
	var books []domain.Book
	for _, b := range all {
		if strings.Contains(strings.ToLower(b.Name), strings.ToLower(name)) {
			books = append(books, b)
		}
	}
	return books, nil
}

func (r *bookRepo) Reserve(ctx context.Context, id uuid.UUID) (bool, error) {
	reserved := false
	err := r.with(func(d *data) error {
		b, ok := d.books[id]
		if !ok || !b.Available {
			return nil
		}
		b.Available = false
		d.books[id] = b
		reserved = true
		return nil
	})
	return reserved, err
}

func (r *bookRepo) Release(ctx context.Context, id uuid.UUID) error {
	return r.with(func(d *data) error {
		b, ok := d.books[id]
		if !ok {
			return nil
		}
		b.Available = true
		d.books[id] = b
		return nil
	})
}

func (r *bookRepo) GetReservation(ctx context.Context, borrowingID uuid.UUID) (*domain.BookReservation, error) {
	var res domain.BookReservation
	err := r.with(func(d *data) error {
		rv, ok := d.reservations[borrowingID]
		if !ok {
			return repository.ErrNotFound
		}
		res = rv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *bookRepo) CreateReservation(ctx context.Context, res *domain.BookReservation) error {
	return r.with(func(d *data) error {
		if _, ok := d.reservations[res.BorrowingID]; ok {
			return repository.ErrDuplicateReservation
		}
		d.reservations[res.BorrowingID] = *res
		return nil
	})
}

type memberRepo struct {
	s *Store
	d *data
}

func (r *memberRepo) with(fn func(d *data) error) error {
	if r.d != nil {
		return fn(r.d)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return fn(r.s.d)
}

func (r *memberRepo) Create(ctx context.Context, member *domain.Member) error {
	return r.with(func(d *data) error {
		d.members[member.ID] = *member
		return nil
	})
}

func (r *memberRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	var m domain.Member
	err := r.with(func(d *data) error {
		mm, ok := d.members[id]
		if !ok {
			return repository.ErrNotFound
		}
		m = mm
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *memberRepo) GetByEmail(ctx context.Context, email string) (*domain.Member, error) {
	var found *domain.Member
	err := r.with(func(d *data) error {
		for _, m := range d.members {
			if m.Email == email {
				mm := m
				found = &mm
				return nil
			}
		}
		return repository.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (r *memberRepo) Update(ctx context.Context, member *domain.Member) error {
	return r.with(func(d *data) error {
		if _, ok := d.members[member.ID]; !ok {
			return repository.ErrNotFound
		}
		d.members[member.ID] = *member
		return nil
	})
}

func (r *memberRepo) List(ctx context.Context) ([]domain.Member, error) {
	return r.filter(func(domain.Member) bool { return true })
}

func (r *memberRepo) ListEnabled(ctx context.Context) ([]domain.Member, error) {
	return r.filter(func(m domain.Member) bool { return m.Enabled })
}

func (r *memberRepo) SearchByName(ctx context.Context, name string) ([]domain.Member, error) {
	return r.filter(func(m domain.Member) bool {
		return strings.Contains(strings.ToLower(m.Name), strings.ToLower(name))
	})
}

func (r *memberRepo) SearchByEmail(ctx context.Context, email string) ([]domain.Member, error) {
	return r.filter(func(m domain.Member) bool {
		return strings.Contains(strings.ToLower(m.Email), strings.ToLower(email))
	})
}

func (r *memberRepo) filter(keep func(domain.Member) bool) ([]domain.Member, error) {
	var members []domain.Member
	_ = r.with(func(d *data) error {
		for _, m := range d.members {
			if keep(m) {
				members = append(members, m)
			}
		}
		return nil
	})
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	return members, nil
}

type employeeRepo struct {
	s *Store
	d *data
}

func (r *employeeRepo) with(fn func(d *data) error) error {
	if r.d != nil {
		return fn(r.d)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return fn(r.s.d)
}

func (r *employeeRepo) Create(ctx context.Context, employee *domain.Employee) error {
	return r.with(func(d *data) error {
		d.employees = append(d.employees, *employee)
		return nil
	})
}

func (r *employeeRepo) List(ctx context.Context, sortBy string) ([]domain.Employee, error) {
	var employees []domain.Employee
	_ = r.with(func(d *data) error {
		employees = append(employees, d.employees...)
		return nil
	})
	sort.Slice(employees, func(i, j int) bool {
		a, b := employees[i], employees[j]
		switch sortBy {
		case "email":
			return a.Email < b.Email
		case "birth_date":
			return a.BirthDate.Before(b.BirthDate)
		default:
			return a.Name < b.Name
		}
	})
	return employees, nil
}

type borrowingRepo struct {
	s *Store
	d *data
}

func (r *borrowingRepo) with(fn func(d *data) error) error {
	if r.d != nil {
		return fn(r.d)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return fn(r.s.d)
}

func (r *borrowingRepo) Create(ctx context.Context, b *domain.Borrowing) error {
	return r.with(func(d *data) error {
		d.borrowings[b.ID] = *b
		d.borrowOrder = append(d.borrowOrder, b.ID)
		return nil
	})
}

func (r *borrowingRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Borrowing, error) {
	var b domain.Borrowing
	err := r.with(func(d *data) error {
		bb, ok := d.borrowings[id]
		if !ok {
			return repository.ErrNotFound
		}
		b = bb
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *borrowingRepo) Update(ctx context.Context, b *domain.Borrowing) error {
	return r.with(func(d *data) error {
		if _, ok := d.borrowings[b.ID]; !ok {
			return repository.ErrNotFound
		}
		d.borrowings[b.ID] = *b
		return nil
	})
}

func (r *borrowingRepo) List(ctx context.Context) ([]domain.Borrowing, error) {
	return r.filter(func(domain.Borrowing) bool { return true })
}

func (r *borrowingRepo) ListByMember(ctx context.Context, memberID uuid.UUID) ([]domain.Borrowing, error) {
	return r.filter(func(b domain.Borrowing) bool { return b.MemberID == memberID })
}

func (r *borrowingRepo) ListActiveByMember(ctx context.Context, memberID uuid.UUID) ([]domain.Borrowing, error) {
	return r.filter(func(b domain.Borrowing) bool { return b.MemberID == memberID && b.Active() })
}

func (r *borrowingRepo) FindActiveByBook(ctx context.Context, bookID uuid.UUID) ([]domain.Borrowing, error) {
	return r.filter(func(b domain.Borrowing) bool {
		return b.Active() && b.BookID != nil && *b.BookID == bookID
	})
}

func (r *borrowingRepo) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Borrowing, error) {
	return r.filter(func(b domain.Borrowing) bool {
		return b.Status == domain.BorrowingStatusPending && b.BorrowDate.Before(cutoff)
	})
}

func (r *borrowingRepo) filter(keep func(domain.Borrowing) bool) ([]domain.Borrowing, error) {
	var borrowings []domain.Borrowing
	_ = r.with(func(d *data) error {
		for _, id := range d.borrowOrder {
			if b, ok := d.borrowings[id]; ok && keep(b) {
				borrowings = append(borrowings, b)
			}
		}
		return nil
	})
	return borrowings, nil
}

type outboxRepo struct {
	s *Store
	d *data
}

func (r *outboxRepo) with(fn func(d *data) error) error {
	if r.d != nil {
		return fn(r.d)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return fn(r.s.d)
}

func (r *outboxRepo) Enqueue(ctx context.Context, e events.Envelope) error {
	return r.with(func(d *data) error {
		e.ID = d.nextEventID
		d.nextEventID++
		e.CreatedAt = time.Now().UTC()
		d.outbox = append(d.outbox, e)
		events.CountEnqueued(e.EventType)
		return nil
	})
}

func (r *outboxRepo) ListUnprocessed(ctx context.Context, limit int) ([]events.Envelope, error) {
	var batch []events.Envelope
	_ = r.with(func(d *data) error {
		for _, e := range d.outbox {
			if e.ProcessedAt == nil {
				batch = append(batch, e)
				if len(batch) == limit {
					break
				}
			}
		}
		return nil
	})
	return batch, nil
}

func (r *outboxRepo) MarkProcessed(ctx context.Context, id int64) error {
	return r.with(func(d *data) error {
		for i := range d.outbox {
			if d.outbox[i].ID == id && d.outbox[i].ProcessedAt == nil {
				now := time.Now().UTC()
				d.outbox[i].ProcessedAt = &now
			}
		}
		return nil
	})
}

func (r *outboxRepo) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	_ = r.with(func(d *data) error {
		kept := d.outbox[:0]
		for _, e := range d.outbox {
			if e.ProcessedAt != nil && e.ProcessedAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		d.outbox = kept
		return nil
	})
	return removed, nil
}
