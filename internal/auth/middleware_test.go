package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dilmapos/backend-pos/internal/common"
)

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	mw := Middleware{Service: svc}

	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthPopulatesIdentity(t *testing.T) {
	store := newFakeStore()
	emp := store.addEmployee(t, "dilma", "correct horse", RoleCashier, true)
	svc := newTestService(t, store)
	mw := Middleware{Service: svc}

	login, err := svc.Login(context.Background(), "dilma", "correct horse", "", "")
	require.NoError(t, err)

	var gotID, gotRole string
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = common.UserID(r.Context())
		gotRole, _ = common.Role(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, emp.ID, gotID)
	require.Equal(t, RoleCashier, gotRole)
}

func TestRequireRole(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	mw := Middleware{Service: svc}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := mw.RequireRole(RoleAdmin)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(common.WithRole(req.Context(), RoleCashier))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(common.WithRole(req.Context(), RoleAdmin))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
