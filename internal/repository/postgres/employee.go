package postgres

import (
	"context"
	"fmt"

	"github.com/belyaev-andrey/bookify/internal/domain"
)

type employeeRepository struct {
	q DBTX
}

// sortColumns whitelists sortable fields; anything else falls back to
// name ordering rather than interpolating caller input into SQL.
var sortColumns = map[string]string{
	"name":       "name",
	"email":      "email",
	"birth_date": "birth_date",
}

func (r *employeeRepository) Create(ctx context.Context, employee *domain.Employee) error {
	query := `INSERT INTO employee (id, name, birth_date, email) VALUES ($1, $2, $3, $4)`
	_, err := r.q.ExecContext(ctx, query, employee.ID, employee.Name, employee.BirthDate, employee.Email)
	return err
}

func (r *employeeRepository) List(ctx context.Context, sortBy string) ([]domain.Employee, error) {
	col, ok := sortColumns[sortBy]
	if !ok {
		col = "name"
	}
	query := fmt.Sprintf(`SELECT id, name, birth_date, email FROM employee ORDER BY %s`, col)

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []domain.Employee
	for rows.Next() {
		var e domain.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.BirthDate, &e.Email); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}
