package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/belyaev-andrey/bookify/internal/security"
	"github.com/belyaev-andrey/bookify/internal/service"
)

type EmployeeHandler struct {
	employees service.EmployeeService
}

func NewEmployeeHandler(employees service.EmployeeService) *EmployeeHandler {
	return &EmployeeHandler{employees: employees}
}

func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	employees, err := h.employees.FindAll(r.Context(), r.URL.Query().Get("sortBy"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, employees)
}

func (h *EmployeeHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/employees", RequireRole(security.RoleLibrarian, h.List)).Methods("GET")
}
