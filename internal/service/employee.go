package service

import (
	"context"

	"github.com/belyaev-andrey/bookify/internal/domain"
	"github.com/belyaev-andrey/bookify/internal/repository"
)

type employeeService struct {
	store repository.Store
}

func NewEmployeeService(store repository.Store) EmployeeService {
	return &employeeService{store: store}
}

func (s *employeeService) FindAll(ctx context.Context, sortBy string) ([]domain.Employee, error) {
	return s.store.Employees().List(ctx, sortBy)
}
