package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/harentsoaR/account-api/internal/middleware"
	"github.com/harentsoaR/account-api/internal/models"
	"github.com/harentsoaR/account-api/internal/services"
	"github.com/harentsoaR/account-api/internal/store"
)

type downStore struct {
	*store.MemoryStore
}

func (downStore) ExistsByEmailOrCIN(context.Context, string, string) (bool, error) {
	return false, store.ErrUnavailable
}

func (downStore) Ping(context.Context) error { return store.ErrUnavailable }

type testServer struct {
	router *gin.Engine
	store  *store.MemoryStore
}

func newTestServerWithStore(t *testing.T, st store.Store, limiter *middleware.RateLimiter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := services.NewAccountService(st, services.NewMemorySessionStore(), services.NoopPublisher{}, zerolog.Nop(), services.AccountOptions{
		BcryptCost: bcrypt.MinCost,
		JWTSecret:  []byte("test-secret"),
		SessionTTL: time.Hour,
	})
	return NewRouter(NewHandler(svc, zerolog.Nop()), RouterOptions{Limiter: limiter})
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := store.NewMemoryStore()
	return &testServer{router: newTestServerWithStore(t, st, nil), store: st}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func signupBody() map[string]string {
	return map[string]string{
		"firstName":   "A",
		"lastName":    "B",
		"cin":         "12345678",
		"email":       "a@b.com",
		"phoneNumber": "11223344",
		"password":    "p",
	}
}

func (s *testServer) signup(t *testing.T, body map[string]string) int64 {
	t.Helper()
	w, out := s.do(t, http.MethodPost, "/api/users", body, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return int64(out["userId"].(float64))
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	w, out := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return out["token"].(string)
}

func userPath(id int64) string {
	return "/api/users/" + strconv.FormatInt(id, 10)
}

func TestEndToEnd_AccountLifecycle(t *testing.T) {
	s := newTestServer(t)

	w, out := s.do(t, http.MethodPost, "/api/users", signupBody(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "User created successfully", out["message"])
	id := int64(out["userId"].(float64))
	assert.Positive(t, id)

	w, out = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@b.com", "password": "p"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Login successful", out["message"])
	user := out["user"].(map[string]any)
	assert.Equal(t, "a@b.com", user["email"])
	assert.Equal(t, float64(id), user["id"])
	assert.NotContains(t, user, "password")
	token := out["token"].(string)

	w, out = s.do(t, http.MethodPut, userPath(id), map[string]string{
		"firstName": "A2", "lastName": "B", "email": "a@b.com", "phoneNumber": "11223344",
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "User updated successfully", out["message"])
	assert.Equal(t, "A2", out["user"].(map[string]any)["firstName"])

	// update ends the session
	w, _ = s.do(t, http.MethodGet, userPath(id), nil, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token = s.login(t, "a@b.com", "p")

	w, out = s.do(t, http.MethodDelete, userPath(id), nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "User deleted successfully", out["message"])

	w, out = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@b.com", "password": "p"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", out["error"])
}

func TestCreateUser_Duplicate(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, signupBody())

	sameCIN := signupBody()
	sameCIN["email"] = "other@b.com"
	w, out := s.do(t, http.MethodPost, "/api/users", sameCIN, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User with this email or CIN already exists", out["error"])

	sameEmail := signupBody()
	sameEmail["cin"] = "87654321"
	w, _ = s.do(t, http.MethodPost, "/api/users", sameEmail, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, 1, s.store.Len())
}

func TestCreateUser_Validation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		field, value, message string
	}{
		{"cin", "1234567", "Please enter a valid 8-digit CIN"},
		{"cin", "-1234567", "Please enter a valid 8-digit CIN"},
		{"phoneNumber", "1122334a", "Please enter a valid 8-digit phone number"},
		{"email", "not-an-email", "Please enter a valid email address"},
		{"firstName", "", "First name is required"},
		{"password", "", "Password is required"},
	}
	for _, tc := range tests {
		t.Run(tc.field+"="+tc.value, func(t *testing.T) {
			body := signupBody()
			body[tc.field] = tc.value
			w, out := s.do(t, http.MethodPost, "/api/users", body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.message, out["error"])
		})
	}
	assert.Equal(t, 0, s.store.Len())
}

func TestPasswordOverBcryptLimit(t *testing.T) {
	s := newTestServer(t)

	tooLong := map[string]string{
		"ascii":     strings.Repeat("a", 73),
		"multibyte": strings.Repeat("é", 40),
	}
	for name, password := range tooLong {
		t.Run("signup "+name, func(t *testing.T) {
			body := signupBody()
			body["password"] = password
			w, out := s.do(t, http.MethodPost, "/api/users", body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "Password must be at most 72 bytes", out["error"])
			assert.Equal(t, 0, s.store.Len())
		})
	}

	body := signupBody()
	body["password"] = strings.Repeat("a", 72)
	id := s.signup(t, body)

	for name, password := range tooLong {
		t.Run("update "+name, func(t *testing.T) {
			token := s.login(t, "a@b.com", strings.Repeat("a", 72))
			w, out := s.do(t, http.MethodPut, userPath(id), map[string]string{
				"firstName": "A", "lastName": "B", "email": "a@b.com", "phoneNumber": "11223344", "password": password,
			}, token)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "Password must be at most 72 bytes", out["error"])
		})
	}

	s.login(t, "a@b.com", strings.Repeat("a", 72))
}

func TestCreateUser_StoreUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := &testServer{router: newTestServerWithStore(t, downStore{store.NewMemoryStore()}, nil)}

	w, out := s.do(t, http.MethodPost, "/api/users", signupBody(), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Database connection failed", out["error"])

	w, out = s.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unavailable", out["status"])
}

func TestLogin_SingleCharacterDeviationFails(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, signupBody())

	for _, creds := range []map[string]string{
		{"email": "a@b.con", "password": "p"},
		{"email": "a@b.com", "password": "P"},
		{"email": "a@b.com", "password": "p "},
		{"email": "", "password": ""},
	} {
		w, out := s.do(t, http.MethodPost, "/api/auth/login", creds, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, creds)
		assert.NotContains(t, out, "user")
		assert.NotContains(t, out, "token")
	}
}

func TestUpdateUser(t *testing.T) {
	s := newTestServer(t)
	id := s.signup(t, signupBody())
	other := signupBody()
	other["email"], other["cin"] = "c@d.com", "22222222"
	s.signup(t, other)

	t.Run("email of another account", func(t *testing.T) {
		token := s.login(t, "a@b.com", "p")
		w, out := s.do(t, http.MethodPut, userPath(id), map[string]string{
			"firstName": "X", "lastName": "Y", "email": "c@d.com", "phoneNumber": "11223344",
		}, token)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Email already exists", out["error"])

		u, err := s.store.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "A", u.FirstName)
		assert.Equal(t, "a@b.com", u.Email)
	})

	t.Run("new password replaces the old one", func(t *testing.T) {
		token := s.login(t, "a@b.com", "p")
		w, _ := s.do(t, http.MethodPut, userPath(id), map[string]string{
			"firstName": "A", "lastName": "B", "email": "a@b.com", "phoneNumber": "11223344", "password": "p2",
		}, token)
		require.Equal(t, http.StatusOK, w.Code)

		w, _ = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@b.com", "password": "p"}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		s.login(t, "a@b.com", "p2")
	})

	t.Run("invalid phone", func(t *testing.T) {
		token := s.login(t, "a@b.com", "p2")
		w, out := s.do(t, http.MethodPut, userPath(id), map[string]string{
			"firstName": "A", "lastName": "B", "email": "a@b.com", "phoneNumber": "123",
		}, token)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Please enter a valid 8-digit phone number", out["error"])
	})
}

func TestOwnerOnly(t *testing.T) {
	s := newTestServer(t)
	id := s.signup(t, signupBody())
	other := signupBody()
	other["email"], other["cin"] = "c@d.com", "22222222"
	otherID := s.signup(t, other)

	token := s.login(t, "a@b.com", "p")

	w, _ := s.do(t, http.MethodDelete, userPath(otherID), nil, token)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = s.do(t, http.MethodPut, userPath(otherID), map[string]string{
		"firstName": "X", "lastName": "Y", "email": "x@y.com", "phoneNumber": "11223344",
	}, token)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = s.do(t, http.MethodGet, "/api/users/abc", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = s.do(t, http.MethodDelete, userPath(id), nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Equal(t, 2, s.store.Len())

	w, out := s.do(t, http.MethodGet, userPath(id), nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "12345678", out["user"].(map[string]any)["cin"])
}

func TestDeleteUser_LeavesOthersAndIsRepeatable(t *testing.T) {
	s := newTestServer(t)
	id := s.signup(t, signupBody())
	other := signupBody()
	other["email"], other["cin"] = "c@d.com", "22222222"
	otherID := s.signup(t, other)

	token := s.login(t, "a@b.com", "p")
	w, _ := s.do(t, http.MethodDelete, userPath(id), nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1, s.store.Len())
	u, err := s.store.GetByID(context.Background(), otherID)
	require.NoError(t, err)
	assert.Equal(t, "c@d.com", u.Email)

	// all sessions of the deleted account are gone
	w, _ = s.do(t, http.MethodDelete, userPath(id), nil, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	id := s.signup(t, signupBody())
	token := s.login(t, "a@b.com", "p")

	w, out := s.do(t, http.MethodPost, "/api/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Logged out successfully", out["message"])

	w, _ = s.do(t, http.MethodGet, userPath(id), nil, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_RateLimited(t *testing.T) {
	s := &testServer{router: newTestServerWithStore(t, store.NewMemoryStore(), middleware.NewRateLimiter(0.001, 2, time.Minute))}

	creds := map[string]string{"email": "a@b.com", "password": "p"}
	for i := 0; i < 2; i++ {
		w, _ := s.do(t, http.MethodPost, "/api/auth/login", creds, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w, out := s.do(t, http.MethodPost, "/api/auth/login", creds, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate limit exceeded", out["error"])
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w, out := s.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", out["status"])
}

func TestViews(t *testing.T) {
	s := newTestServer(t)

	for path, marker := range map[string]string{
		"/signup":  `id="signup-form"`,
		"/login":   `id="login-form"`,
		"/profile": `id="profile-form"`,
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), marker, path)
		assert.Contains(t, w.Body.String(), `/static/app.js`, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/static/app.js", nil)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "SESSION_KEY")
	assert.Contains(t, w.Body.String(), "const UNTRIMMED = { password: true, confirmPassword: true };")
}

func TestPasswordWhitespaceIsSignificant(t *testing.T) {
	s := newTestServer(t)
	body := signupBody()
	body["password"] = " p "
	s.signup(t, body)

	w, _ := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@b.com", "password": "p"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	s.login(t, "a@b.com", " p ")
}

func TestUserJSONNeverCarriesPassword(t *testing.T) {
	b, err := json.Marshal(models.User{ID: 1, Email: "a@b.com", Password: "hash"})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "hash")
}
