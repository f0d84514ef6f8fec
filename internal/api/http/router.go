package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/belyaev-andrey/bookify/internal/security"
)

// Pinger reports backend liveness for the health endpoint. *sql.DB
// satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterConfig bundles everything NewRouter needs.
type RouterConfig struct {
	Auth       *AuthHandler
	Books      *BookHandler
	Members    *MemberHandler
	Borrowings *BorrowingHandler
	Employees  *EmployeeHandler
	Tokens     security.TokenManager
	// DB is optional; when nil the health endpoint skips the ping.
	DB Pinger
}

// NewRouter wires all handlers behind the shared middleware stack.
// Everything under /api except the login endpoint requires a valid
// bearer token; role checks happen per route.
func NewRouter(cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestLogger)

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/healthz", healthHandler(cfg.DB)).Methods("GET")

	cfg.Auth.RegisterRoutes(router)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(Authenticator(cfg.Tokens))
	cfg.Books.RegisterRoutes(api)
	cfg.Members.RegisterRoutes(api)
	cfg.Borrowings.RegisterRoutes(api)
	cfg.Employees.RegisterRoutes(api)

	return router
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
