package http

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/belyaev-andrey/bookify/internal/domain"
	"github.com/belyaev-andrey/bookify/internal/security"
	"github.com/belyaev-andrey/bookify/internal/service"
)

// BorrowingHandler exposes the borrowing lifecycle. The member id comes
// from the token claims, never from the request body.
type BorrowingHandler struct {
	borrowings service.BorrowingService
}

func NewBorrowingHandler(borrowings service.BorrowingService) *BorrowingHandler {
	return &BorrowingHandler{borrowings: borrowings}
}

type borrowRequest struct {
	BookID uuid.UUID `json:"bookId"`
}

// Borrow accepts a loan request. 202 Accepted with the PENDING record
// on success: approval happens asynchronously. 422 with the reason when
// the member is ineligible.
func (h *BorrowingHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req borrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BookID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "bookId is required")
		return
	}

	borrowing, rejection, err := h.borrowings.RequestLoan(r.Context(), claims.MemberID, req.BookID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if rejection != nil {
		writeJSON(w, http.StatusUnprocessableEntity, rejection)
		return
	}
	writeJSON(w, http.StatusAccepted, borrowing)
}

func (h *BorrowingHandler) Return(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req borrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BookID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "bookId is required")
		return
	}

	borrowing, err := h.borrowings.ReturnLoan(r.Context(), req.BookID, claims.MemberID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, borrowing)
}

func (h *BorrowingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid borrowing id")
		return
	}
	borrowing, err := h.borrowings.GetBorrowing(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if borrowing.MemberID != claims.MemberID && !claims.HasRole(security.RoleLibrarian) {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}
	writeJSON(w, http.StatusOK, borrowing)
}

func (h *BorrowingHandler) List(w http.ResponseWriter, r *http.Request) {
	borrowings, err := h.borrowings.FindAll(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, borrowings)
}

// ListMine returns the calling member's borrowing history, or only the
// active loans with ?active=true.
func (h *BorrowingHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var (
		borrowings []domain.Borrowing
		err        error
	)
	if r.URL.Query().Get("active") == "true" {
		borrowings, err = h.borrowings.ListActiveBorrowings(r.Context(), claims.MemberID)
	} else {
		borrowings, err = h.borrowings.ListBorrowings(r.Context(), claims.MemberID)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, borrowings)
}

func (h *BorrowingHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/borrowings", RequireRole(security.RoleLibrarian, h.List)).Methods("GET")
	router.HandleFunc("/borrowings", h.Borrow).Methods("POST")
	router.HandleFunc("/borrowings/return", h.Return).Methods("POST")
	router.HandleFunc("/borrowings/mine", h.ListMine).Methods("GET")
	router.HandleFunc("/borrowings/{id}", h.Get).Methods("GET")
}
