package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/stretchr/testify/require"

	"github.com/dilmapos/backend-pos/internal/common"
)

type fakeStore struct {
	employees map[string]Employee
	sessions  map[string]Session
	nextID    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		employees: map[string]Employee{},
		sessions:  map[string]Session{},
	}
}

func (f *fakeStore) addEmployee(t *testing.T, username, password, role string, active bool) Employee {
	t.Helper()
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	require.NoError(t, err)
	f.nextID++
	e := Employee{
		ID:           fmt.Sprintf("emp-%d", f.nextID),
		Username:     username,
		FullName:     "Test " + username,
		Role:         role,
		PasswordHash: hash,
		Active:       active,
		CreatedAt:    time.Now(),
	}
	f.employees[e.ID] = e
	return e
}

func (f *fakeStore) GetEmployeeByUsername(_ context.Context, username string) (Employee, error) {
	for _, e := range f.employees {
		if e.Username == username {
			return e, nil
		}
	}
	return Employee{}, errors.New("not found")
}

func (f *fakeStore) GetEmployeeByID(_ context.Context, id string) (Employee, error) {
	e, ok := f.employees[id]
	if !ok {
		return Employee{}, errors.New("not found")
	}
	return e, nil
}

func (f *fakeStore) CreateSession(_ context.Context, s Session) (string, error) {
	f.nextID++
	s.ID = fmt.Sprintf("sess-%d", f.nextID)
	f.sessions[s.TokenHash] = s
	return s.ID, nil
}

func (f *fakeStore) GetSessionByTokenHash(_ context.Context, tokenHash string) (Session, error) {
	s, ok := f.sessions[tokenHash]
	if !ok {
		return Session{}, errors.New("not found")
	}
	return s, nil
}

func (f *fakeStore) RotateSessionToken(_ context.Context, sessionID, tokenHash string, expiresAt time.Time) error {
	for hash, s := range f.sessions {
		if s.ID == sessionID {
			delete(f.sessions, hash)
			s.TokenHash = tokenHash
			s.ExpiresAt = expiresAt
			f.sessions[tokenHash] = s
			return nil
		}
	}
	return errors.New("not found")
}

func (f *fakeStore) DeleteSessionByTokenHash(_ context.Context, tokenHash string) error {
	delete(f.sessions, tokenHash)
	return nil
}

func (f *fakeStore) DeleteSessionsByEmployee(_ context.Context, employeeID string) error {
	for hash, s := range f.sessions {
		if s.EmployeeID == employeeID {
			delete(f.sessions, hash)
		}
	}
	return nil
}

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	svc, err := NewService(Config{Store: store, Secret: "test-secret-test-secret"})
	require.NoError(t, err)
	return svc
}

func TestLoginIssuesTokensWithRoleClaim(t *testing.T) {
	store := newFakeStore()
	emp := store.addEmployee(t, "dilma", "correct horse", RoleAdmin, true)
	svc := newTestService(t, store)

	result, err := svc.Login(context.Background(), "dilma", "correct horse", "ua", "127.0.0.1")
	require.NoError(t, err)
	require.Equal(t, emp.ID, result.Employee.ID)
	require.Equal(t, RoleAdmin, result.Employee.Role)
	require.NotEmpty(t, result.RefreshToken)

	identity, err := svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, emp.ID, identity.EmployeeID)
	require.Equal(t, RoleAdmin, identity.Role)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	store := newFakeStore()
	store.addEmployee(t, "dilma", "correct horse", RoleCashier, true)
	svc := newTestService(t, store)

	_, err := svc.Login(context.Background(), "dilma", "wrong", "", "")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_CREDENTIALS", appErr.Code)
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	store := newFakeStore()
	store.addEmployee(t, "gone", "password123", RoleCashier, false)
	svc := newTestService(t, store)

	_, err := svc.Login(context.Background(), "gone", "password123", "", "")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "ACCOUNT_DISABLED", appErr.Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	store := newFakeStore()
	store.addEmployee(t, "dilma", "correct horse", RoleCashier, true)
	svc := newTestService(t, store)

	login, err := svc.Login(context.Background(), "dilma", "correct horse", "", "")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), login.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The old token is burned by rotation.
	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	require.Error(t, err)

	// The new one still works.
	_, err = svc.Refresh(context.Background(), refreshed.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshRejectsExpiredSession(t *testing.T) {
	store := newFakeStore()
	store.addEmployee(t, "dilma", "correct horse", RoleCashier, true)
	svc := newTestService(t, store)

	base := time.Now()
	svc.WithNow(func() time.Time { return base })
	login, err := svc.Login(context.Background(), "dilma", "correct horse", "", "")
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return base.Add(defaultRefreshTTL + time.Hour) })
	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	require.Error(t, err)
	require.Empty(t, store.sessions)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	store := newFakeStore()
	emp := store.addEmployee(t, "dilma", "correct horse", RoleCashier, true)
	svc := newTestService(t, store)

	base := time.Now()
	svc.WithNow(func() time.Time { return base })
	token, _, err := svc.signAccessToken(emp.ID, emp.Role)
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return base.Add(defaultAccessTTL + time.Minute) })
	_, err = svc.ParseAccessToken(token)
	require.Error(t, err)
}

func TestParseAccessTokenRejectsTamperedSecret(t *testing.T) {
	store := newFakeStore()
	emp := store.addEmployee(t, "dilma", "correct horse", RoleCashier, true)
	svc := newTestService(t, store)

	token, _, err := svc.signAccessToken(emp.ID, emp.Role)
	require.NoError(t, err)

	other, err := NewService(Config{Store: store, Secret: "another-secret-entirely"})
	require.NoError(t, err)
	_, err = other.ParseAccessToken(token)
	require.Error(t, err)
}

func TestLogoutDeletesSession(t *testing.T) {
	store := newFakeStore()
	store.addEmployee(t, "dilma", "correct horse", RoleCashier, true)
	svc := newTestService(t, store)

	login, err := svc.Login(context.Background(), "dilma", "correct horse", "", "")
	require.NoError(t, err)
	require.Len(t, store.sessions, 1)

	require.NoError(t, svc.Logout(context.Background(), login.RefreshToken))
	require.Empty(t, store.sessions)

	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	require.Error(t, err)
}
