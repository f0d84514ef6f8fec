package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/belyaev-andrey/bookify/internal/domain"
	"github.com/belyaev-andrey/bookify/internal/events"
	"github.com/belyaev-andrey/bookify/internal/repository/memory"
	"github.com/belyaev-andrey/bookify/internal/security"
	"github.com/belyaev-andrey/bookify/internal/service"
	"github.com/belyaev-andrey/bookify/internal/storage"
)

const librarianEmail = "librarian@test.com"

type testServer struct {
	srv    *httptest.Server
	store  *memory.Store
	relay  *events.Relay
	tokens security.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	bookSvc := service.NewBookService(store)
	memberSvc := service.NewMemberService(store)
	employeeSvc := service.NewEmployeeService(store)
	borrowingSvc := service.NewBorrowingService(store, service.EligibilityPolicy{MaxActiveLoans: 5, OverdueDays: 14})

	bus := events.NewBus()
	bus.Subscribe(events.TypeBookBorrowRequested, bookSvc.HandleBorrowRequested)
	bus.Subscribe(events.TypeBookAvailabilityChecked, borrowingSvc.HandleAvailabilityChecked)
	bus.Subscribe(events.TypeBookReturned, bookSvc.HandleBookReturned)

	covers, err := storage.NewLocalCoverStorage(t.TempDir())
	require.NoError(t, err)

	tokens := security.NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour)
	router := NewRouter(RouterConfig{
		Auth:       NewAuthHandler(memberSvc, tokens, []string{librarianEmail}),
		Books:      NewBookHandler(bookSvc, covers),
		Members:    NewMemberHandler(memberSvc),
		Borrowings: NewBorrowingHandler(borrowingSvc),
		Employees:  NewEmployeeHandler(employeeSvc),
		Tokens:     tokens,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{
		srv:    srv,
		store:  store,
		relay:  events.NewRelay(store.Outbox(), bus, time.Millisecond, 10),
		tokens: tokens,
	}
}

func (ts *testServer) drain(t *testing.T) {
	t.Helper()
	require.NoError(t, ts.relay.Drain(context.Background()))
}

// addMember registers directly through the store so tests do not depend
// on the librarian-only registration endpoint.
func (ts *testServer) addMember(t *testing.T, email string) (*domain.Member, string) {
	t.Helper()
	m := &domain.Member{ID: uuid.New(), Name: "Test Member", Email: email, Password: "unused", Enabled: true}
	require.NoError(t, ts.store.Members().Create(context.Background(), m))

	roles := []string{"MEMBER"}
	if email == librarianEmail {
		roles = append(roles, security.RoleLibrarian)
	}
	token, err := ts.tokens.GenerateAccessToken(m.ID, m.Email, roles)
	require.NoError(t, err)
	return m, token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestAuth_LoginFlow(t *testing.T) {
	ts := newTestServer(t)

	// Register through the service so the password is properly hashed.
	memberSvc := service.NewMemberService(ts.store)
	_, err := memberSvc.AddMember(context.Background(), "Alice", "alice@test.com", "pass-word-1")
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		resp := ts.do(t, "POST", "/api/auth/login", "", map[string]string{
			"email":    "alice@test.com",
			"password": "pass-word-1",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[map[string]string](t, resp)
		assert.NotEmpty(t, body["token"])

		claims, err := ts.tokens.ValidateToken(body["token"])
		require.NoError(t, err)
		assert.False(t, claims.HasRole(security.RoleLibrarian))
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := ts.do(t, "POST", "/api/auth/login", "", map[string]string{
			"email":    "alice@test.com",
			"password": "nope",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown email", func(t *testing.T) {
		resp := ts.do(t, "POST", "/api/auth/login", "", map[string]string{
			"email":    "nobody@test.com",
			"password": "whatever",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestBooks_Authorization(t *testing.T) {
	ts := newTestServer(t)
	_, memberToken := ts.addMember(t, "member@test.com")
	_, librarianToken := ts.addMember(t, librarianEmail)

	t.Run("unauthenticated request is rejected", func(t *testing.T) {
		resp := ts.do(t, "GET", "/api/books", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("member cannot add books", func(t *testing.T) {
		resp := ts.do(t, "POST", "/api/books", memberToken, map[string]string{"name": "Book"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("librarian adds and member reads", func(t *testing.T) {
		resp := ts.do(t, "POST", "/api/books", librarianToken, map[string]string{
			"name": "The Go Programming Language",
			"isbn": "978-0134190440",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		created := decode[domain.Book](t, resp)
		assert.True(t, created.Available)

		resp = ts.do(t, "GET", fmt.Sprintf("/api/books/%s", created.ID), memberToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		got := decode[domain.Book](t, resp)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("member cannot delete books", func(t *testing.T) {
		resp := ts.do(t, "DELETE", "/api/books/"+uuid.NewString(), memberToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("missing book is a 404", func(t *testing.T) {
		resp := ts.do(t, "GET", "/api/books/"+uuid.NewString(), memberToken, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestBooks_CoverRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	_, memberToken := ts.addMember(t, "member@test.com")
	_, librarianToken := ts.addMember(t, librarianEmail)

	resp := ts.do(t, "POST", "/api/books", librarianToken, map[string]string{"name": "Covered"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	book := decode[domain.Book](t, resp)
	coverPath := "/api/books/" + book.ID.String() + "/cover"

	t.Run("no cover yet", func(t *testing.T) {
		resp := ts.do(t, "GET", coverPath, memberToken, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("member cannot upload", func(t *testing.T) {
		req, err := http.NewRequest("PUT", ts.srv.URL+coverPath, bytes.NewReader([]byte("png-bytes")))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+memberToken)
		req.Header.Set("Content-Type", "image/png")
		resp, err := ts.srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("librarian uploads and anyone reads", func(t *testing.T) {
		req, err := http.NewRequest("PUT", ts.srv.URL+coverPath, bytes.NewReader([]byte("png-bytes")))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+librarianToken)
		req.Header.Set("Content-Type", "image/png")
		resp, err := ts.srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		get := ts.do(t, "GET", coverPath, memberToken, nil)
		require.Equal(t, http.StatusOK, get.StatusCode)
		assert.Equal(t, "image/png", get.Header.Get("Content-Type"))
		data, err := io.ReadAll(get.Body)
		require.NoError(t, err)
		assert.Equal(t, []byte("png-bytes"), data)
	})

	t.Run("unsupported content type is rejected", func(t *testing.T) {
		req, err := http.NewRequest("PUT", ts.srv.URL+coverPath, bytes.NewReader([]byte("pdf")))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+librarianToken)
		req.Header.Set("Content-Type", "application/pdf")
		resp, err := ts.srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestBorrowings_EndToEnd(t *testing.T) {
	ts := newTestServer(t)
	_, memberToken := ts.addMember(t, "reader@test.com")
	_, librarianToken := ts.addMember(t, librarianEmail)

	resp := ts.do(t, "POST", "/api/books", librarianToken, map[string]string{"name": "Dune"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	book := decode[domain.Book](t, resp)

	t.Run("borrow is accepted as pending", func(t *testing.T) {
		resp := ts.do(t, "POST", "/api/borrowings", memberToken, map[string]string{"bookId": book.ID.String()})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		borrowing := decode[domain.Borrowing](t, resp)
		assert.Equal(t, domain.BorrowingStatusPending, borrowing.Status)

		ts.drain(t)

		resp = ts.do(t, "GET", "/api/borrowings/"+borrowing.ID.String(), memberToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resolved := decode[domain.Borrowing](t, resp)
		assert.Equal(t, domain.BorrowingStatusApproved, resolved.Status)
	})

	t.Run("active loans show up under mine", func(t *testing.T) {
		resp := ts.do(t, "GET", "/api/borrowings/mine?active=true", memberToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		active := decode[[]domain.Borrowing](t, resp)
		require.Len(t, active, 1)
	})

	t.Run("return closes the loan", func(t *testing.T) {
		resp := ts.do(t, "POST", "/api/borrowings/return", memberToken, map[string]string{"bookId": book.ID.String()})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		returned := decode[domain.Borrowing](t, resp)
		assert.Equal(t, domain.BorrowingStatusReturned, returned.Status)

		ts.drain(t)

		resp = ts.do(t, "GET", "/api/books/"+book.ID.String(), memberToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		got := decode[domain.Book](t, resp)
		assert.True(t, got.Available)
	})

	t.Run("returning again is a 404", func(t *testing.T) {
		resp := ts.do(t, "POST", "/api/borrowings/return", memberToken, map[string]string{"bookId": book.ID.String()})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("ineligible member gets a 422 with the reason", func(t *testing.T) {
		disabled, disabledToken := ts.addMember(t, "disabled@test.com")
		disabled.Enabled = false
		require.NoError(t, ts.store.Members().Update(context.Background(), disabled))

		resp := ts.do(t, "POST", "/api/borrowings", disabledToken, map[string]string{"bookId": book.ID.String()})
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		rej := decode[service.Rejection](t, resp)
		assert.Equal(t, service.ReasonMemberDisabled, rej.Reason)
	})

	t.Run("member cannot list everyone's borrowings", func(t *testing.T) {
		resp := ts.do(t, "GET", "/api/borrowings", memberToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp = ts.do(t, "GET", "/api/borrowings", librarianToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestMembers_Authorization(t *testing.T) {
	ts := newTestServer(t)
	member, memberToken := ts.addMember(t, "member@test.com")
	_, librarianToken := ts.addMember(t, librarianEmail)

	t.Run("member reads own record", func(t *testing.T) {
		resp := ts.do(t, "GET", "/api/members/"+member.ID.String(), memberToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("member cannot read someone else's record", func(t *testing.T) {
		resp := ts.do(t, "GET", "/api/members/"+uuid.NewString(), memberToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("member cannot disable accounts", func(t *testing.T) {
		resp := ts.do(t, "PUT", "/api/members/"+member.ID.String()+"/disable", memberToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("librarian disables an account", func(t *testing.T) {
		resp := ts.do(t, "PUT", "/api/members/"+member.ID.String()+"/disable", librarianToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		got := decode[domain.Member](t, resp)
		assert.False(t, got.Enabled)
	})

	t.Run("active listing excludes disabled members", func(t *testing.T) {
		resp := ts.do(t, "GET", "/api/members/active", librarianToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		active := decode[[]domain.Member](t, resp)
		for _, m := range active {
			assert.NotEqual(t, member.ID, m.ID)
		}
	})

	t.Run("password never appears in responses", func(t *testing.T) {
		resp := ts.do(t, "GET", "/api/members", librarianToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		raw := decode[[]map[string]any](t, resp)
		require.NotEmpty(t, raw)
		for _, m := range raw {
			_, ok := m["password"]
			assert.False(t, ok)
		}
	})
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, "GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
