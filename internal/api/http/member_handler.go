package http

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/belyaev-andrey/bookify/internal/security"
	"github.com/belyaev-andrey/bookify/internal/service"
)

// MemberHandler exposes member management. Mutations and listings are
// librarian-only; a member may always read their own record.
type MemberHandler struct {
	members service.MemberService
}

func NewMemberHandler(members service.MemberService) *MemberHandler {
	return &MemberHandler{members: members}
}

type createMemberRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "name, email and password are required")
		return
	}
	member, err := h.members.AddMember(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return
	}
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if claims.MemberID != id && !claims.HasRole(security.RoleLibrarian) {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}
	member, err := h.members.FindByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *MemberHandler) Disable(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return
	}
	member, err := h.members.DisableMember(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var err error
	var members any
	switch {
	case q.Get("name") != "":
		members, err = h.members.SearchMembersByName(r.Context(), q.Get("name"))
	case q.Get("email") != "":
		members, err = h.members.SearchMembersByEmail(r.Context(), q.Get("email"))
	default:
		members, err = h.members.FindAll(r.Context())
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *MemberHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.FindAllActive(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *MemberHandler) RegisterRoutes(router *mux.Router) {
	librarian := func(fn http.HandlerFunc) http.HandlerFunc {
		return RequireRole(security.RoleLibrarian, fn)
	}
	router.HandleFunc("/members", librarian(h.List)).Methods("GET")
	router.HandleFunc("/members", librarian(h.Create)).Methods("POST")
	router.HandleFunc("/members/active", librarian(h.ListActive)).Methods("GET")
	router.HandleFunc("/members/{id}", h.Get).Methods("GET")
	router.HandleFunc("/members/{id}/disable", librarian(h.Disable)).Methods("PUT")
}
