package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/belyaev-andrey/bookify/internal/domain"
	"github.com/belyaev-andrey/bookify/internal/logger"
	"github.com/belyaev-andrey/bookify/internal/repository"
	"github.com/belyaev-andrey/bookify/internal/security"
)

// ErrInvalidCredentials covers both unknown email and wrong password so
// login responses do not leak which one it was.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrTooManyAttempts is returned when login attempts for an email
// exceed the per-account rate limit.
var ErrTooManyAttempts = errors.New("too many login attempts")

// ErrMemberDisabled is returned when a disabled member tries to log in.
var ErrMemberDisabled = errors.New("member account is disabled")

type memberService struct {
	store repository.Store
	log   *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewMemberService(store repository.Store) MemberService {
	return &memberService{
		store:    store,
		log:      logger.WithService("member"),
		limiters: make(map[string]*rate.Limiter),
	}
}

func (s *memberService) AddMember(ctx context.Context, name, email, password string) (*domain.Member, error) {
	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	member := &domain.Member{
		ID:       uuid.New(),
		Name:     name,
		Email:    email,
		Password: hash,
		Enabled:  true,
	}
	if err := s.store.Members().Create(ctx, member); err != nil {
		return nil, fmt.Errorf("create member: %w", err)
	}
	s.log.Info("member registered", "member_id", member.ID, "email", member.Email)
	return member, nil
}

func (s *memberService) DisableMember(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	var member *domain.Member
	err := s.store.ExecTx(ctx, func(tx repository.Store) error {
		m, err := tx.Members().GetByID(ctx, id)
		if err != nil {
			return err
		}
		m.Enabled = false
		if err := tx.Members().Update(ctx, m); err != nil {
			return fmt.Errorf("update member: %w", err)
		}
		member = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("member disabled", "member_id", id)
	return member, nil
}

func (s *memberService) FindByID(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	return s.store.Members().GetByID(ctx, id)
}

func (s *memberService) FindAll(ctx context.Context) ([]domain.Member, error) {
	return s.store.Members().List(ctx)
}

func (s *memberService) FindAllActive(ctx context.Context) ([]domain.Member, error) {
	return s.store.Members().ListEnabled(ctx)
}

func (s *memberService) SearchMembersByName(ctx context.Context, name string) ([]domain.Member, error) {
	return s.store.Members().SearchByName(ctx, name)
}

func (s *memberService) SearchMembersByEmail(ctx context.Context, email string) ([]domain.Member, error) {
	return s.store.Members().SearchByEmail(ctx, email)
}

// Authenticate verifies credentials for an enabled member. Attempts are
// rate limited per email to slow down password guessing.
func (s *memberService) Authenticate(ctx context.Context, email, password string) (*domain.Member, error) {
	if !s.limiter(email).Allow() {
		s.log.Warn("login rate limit exceeded", "email", email)
		return nil, ErrTooManyAttempts
	}

	member, err := s.store.Members().GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load member: %w", err)
	}
	if !security.VerifyPassword(password, member.Password) {
		return nil, ErrInvalidCredentials
	}
	if !member.Enabled {
		return nil, ErrMemberDisabled
	}
	return member, nil
}

// limiter returns the per-email limiter, creating one on first use.
// 1 attempt per 2 seconds with a burst of 5.
func (s *memberService) limiter(email string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[email]
	if !ok {
		l = rate.NewLimiter(rate.Limit(0.5), 5)
		s.limiters[email] = l
	}
	return l
}
