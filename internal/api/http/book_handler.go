package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/belyaev-andrey/bookify/internal/security"
	"github.com/belyaev-andrey/bookify/internal/service"
	"github.com/belyaev-andrey/bookify/internal/storage"
)

// maxCoverBytes caps cover uploads at 5 MiB.
const maxCoverBytes = 5 << 20

// BookHandler exposes the catalog over REST. Covers is optional; when
// nil the cover endpoints respond 404.
type BookHandler struct {
	books  service.BookService
	covers storage.CoverStorage
}

func NewBookHandler(books service.BookService, covers storage.CoverStorage) *BookHandler {
	return &BookHandler{books: books, covers: covers}
}

type createBookRequest struct {
	Name string `json:"name"`
	ISBN string `json:"isbn"`
}

func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	book, err := h.books.AddBook(r.Context(), req.Name, req.ISBN)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	book, err := h.books.FindByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	if err := h.books.RemoveBook(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	if h.covers != nil {
		// Best effort; an orphaned cover file is harmless.
		_ = h.covers.Delete(r.Context(), id.String())
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("name"); name != "" {
		books, err := h.books.SearchBooksByName(r.Context(), name)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, books)
		return
	}
	books, err := h.books.FindAll(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *BookHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	if h.covers == nil {
		writeError(w, http.StatusNotFound, "cover storage not configured")
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	if _, err := h.books.FindByID(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	contentType := r.Header.Get("Content-Type")
	body := http.MaxBytesReader(w, r.Body, maxCoverBytes)
	if err := h.covers.Save(r.Context(), id.String(), contentType, body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "cover too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BookHandler) DownloadCover(w http.ResponseWriter, r *http.Request) {
	if h.covers == nil {
		writeError(w, http.StatusNotFound, "cover storage not configured")
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	cover, contentType, err := h.covers.Open(r.Context(), id.String())
	if errors.Is(err, storage.ErrCoverNotFound) {
		writeError(w, http.StatusNotFound, "no cover for this book")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer cover.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	io.Copy(w, cover)
}

func (h *BookHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/books", h.List).Methods("GET")
	router.HandleFunc("/books", RequireRole(security.RoleLibrarian, h.Create)).Methods("POST")
	router.HandleFunc("/books/{id}", h.Get).Methods("GET")
	router.HandleFunc("/books/{id}", RequireRole(security.RoleLibrarian, h.Delete)).Methods("DELETE")
	router.HandleFunc("/books/{id}/cover", h.DownloadCover).Methods("GET")
	router.HandleFunc("/books/{id}/cover", RequireRole(security.RoleLibrarian, h.UploadCover)).Methods("PUT")
}
