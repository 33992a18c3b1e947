package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vendtrack/vendtrack/internal/auth"
	"github.com/vendtrack/vendtrack/internal/shared"
	_ "github.com/vendtrack/vendtrack/testing"
)

type stubRepo struct {
	user       *auth.User
	createErr  error
	sessions   []string
	deletedIDs []string
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateUser(ctx context.Context, email, fullName, passwordHash string) (*auth.User, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &auth.User{ID: 2, Email: email, FullName: fullName, PasswordHash: passwordHash, IsActive: true}, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	s.sessions = append(s.sessions, id)
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	s.deletedIDs = append(s.deletedIDs, id)
	return nil
}

// commitWriter persists the session right before the first header write, the
// same ordering the runtime middleware uses.
type commitWriter struct {
	http.ResponseWriter
	commit    func(http.ResponseWriter)
	committed bool
}

func (w *commitWriter) WriteHeader(statusCode int) {
	if !w.committed {
		w.committed = true
		w.commit(w.ResponseWriter)
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *commitWriter) Write(data []byte) (int, error) {
	if !w.committed {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

// newAuthServer mounts the auth handler behind a minimal session middleware,
// mirroring the runtime chain without the full stack.
func newAuthServer(t *testing.T, repo auth.Repository) (http.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	handler := auth.NewHandler(nil, auth.NewService(repo), sessionManager, csrfManager)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessionManager.Load(req.Context(), req)
			require.NoError(t, err)
			ctx := shared.ContextWithSession(req.Context(), sess)
			wrapped := &commitWriter{ResponseWriter: w, commit: func(target http.ResponseWriter) {
				require.NoError(t, sessionManager.Commit(ctx, target, req, sess))
			}}
			next.ServeHTTP(wrapped, req.WithContext(ctx))
		})
	})
	r.Route("/auth", handler.MountRoutes)
	return r, sessionManager
}

func activeUser(t *testing.T, password string) *auth.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	return &auth.User{ID: 1, Email: "operator@test.local", PasswordHash: string(hashed), IsActive: true}
}

func TestLoginSuccess(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "correctpass")}
	server, _ := newAuthServer(t, repo)

	body := `{"email":"operator@test.local","password":"correctpass"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	server.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)

	var payload struct {
		Message   string    `json:"message"`
		User      auth.User `json:"user"`
		CSRFToken string    `json:"csrfToken"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	require.Equal(t, "operator@test.local", payload.User.Email)
	require.NotEmpty(t, payload.CSRFToken)
	require.Len(t, repo.sessions, 1)

	cookies := res.Result().Cookies()
	require.NotEmpty(t, cookies)
	require.Equal(t, "test_session", cookies[0].Name)
}

func TestLoginInvalidCredentials(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "correctpass")}
	server, _ := newAuthServer(t, repo)

	body := `{"email":"operator@test.local","password":"wrongpass"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	server.ServeHTTP(res, req)

	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Empty(t, repo.sessions)
}

func TestLoginInactiveAccount(t *testing.T) {
	user := activeUser(t, "correctpass")
	user.IsActive = false
	server, _ := newAuthServer(t, &stubRepo{user: user})

	body := `{"email":"operator@test.local","password":"correctpass"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	server.ServeHTTP(res, req)

	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestRegisterSuccess(t *testing.T) {
	server, _ := newAuthServer(t, &stubRepo{})

	body := `{"email":"new@test.local","password":"longenough","fullName":"New Operator"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	server.ServeHTTP(res, req)

	require.Equal(t, http.StatusCreated, res.Code)
	require.Contains(t, res.Body.String(), "new@test.local")
	require.NotContains(t, res.Body.String(), "password_hash")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	server, _ := newAuthServer(t, &stubRepo{createErr: shared.ErrEmailTaken})

	body := `{"email":"dup@test.local","password":"longenough"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	server.ServeHTTP(res, req)

	require.Equal(t, http.StatusConflict, res.Code)
}

func TestRegisterValidation(t *testing.T) {
	server, _ := newAuthServer(t, &stubRepo{})

	body := `{"email":"not-an-email","password":"short"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	server.ServeHTTP(res, req)

	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestMeRequiresAuthentication(t *testing.T) {
	server, _ := newAuthServer(t, &stubRepo{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	res := httptest.NewRecorder()
	server.ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestMeAfterLogin(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "correctpass")}
	server, _ := newAuthServer(t, repo)

	loginReq := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"operator@test.local","password":"correctpass"}`))
	loginReq.Header.Set("Content-Type", "application/json")
	loginRes := httptest.NewRecorder()
	server.ServeHTTP(loginRes, loginReq)
	require.Equal(t, http.StatusOK, loginRes.Code)

	cookies := loginRes.Result().Cookies()
	require.NotEmpty(t, cookies)

	meReq := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	meReq.AddCookie(cookies[0])
	meRes := httptest.NewRecorder()
	server.ServeHTTP(meRes, meReq)

	require.Equal(t, http.StatusOK, meRes.Code)
	require.Contains(t, meRes.Body.String(), "operator@test.local")
}

func TestLogoutDeletesSession(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "correctpass")}
	server, _ := newAuthServer(t, repo)

	loginReq := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"operator@test.local","password":"correctpass"}`))
	loginReq.Header.Set("Content-Type", "application/json")
	loginRes := httptest.NewRecorder()
	server.ServeHTTP(loginRes, loginReq)
	require.Equal(t, http.StatusOK, loginRes.Code)
	cookies := loginRes.Result().Cookies()
	require.NotEmpty(t, cookies)

	logoutReq := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logoutReq.AddCookie(cookies[0])
	logoutRes := httptest.NewRecorder()
	server.ServeHTTP(logoutRes, logoutReq)

	require.Equal(t, http.StatusOK, logoutRes.Code)
	require.Len(t, repo.deletedIDs, 1)
}
