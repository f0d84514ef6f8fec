package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/belyaev-andrey/bookify/internal/security"
	"github.com/belyaev-andrey/bookify/internal/service"
)

// AuthHandler issues access tokens for members.
type AuthHandler struct {
	members service.MemberService
	tokens  security.TokenManager
	// librarians holds emails granted the LIBRARIAN role on login.
	librarians map[string]bool
}

func NewAuthHandler(members service.MemberService, tokens security.TokenManager, librarianEmails []string) *AuthHandler {
	set := make(map[string]bool, len(librarianEmails))
	for _, e := range librarianEmails {
		set[e] = true
	}
	return &AuthHandler{members: members, tokens: tokens, librarians: set}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	member, err := h.members.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	roles := []string{"MEMBER"}
	if h.librarians[member.Email] {
		roles = append(roles, security.RoleLibrarian)
	}
	token, err := h.tokens.GenerateAccessToken(member.ID, member.Email, roles)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

func (h *AuthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/auth/login", h.Login).Methods("POST")
}
