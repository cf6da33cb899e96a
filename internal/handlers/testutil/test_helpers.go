package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tacticalpanel/panel/internal/api"
	"github.com/tacticalpanel/panel/internal/app"
	iauth "github.com/tacticalpanel/panel/internal/auth"
	"github.com/tacticalpanel/panel/internal/cache"
	sharedtestutil "github.com/tacticalpanel/panel/internal/database/testutil"
	"github.com/tacticalpanel/panel/pkg/response"
)

// StrongPassword satisfies the default password policy.
const StrongPassword = "Str0ng!Pass"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	JWT    *iauth.JWTService
	Config *app.Config
}

// Option adjusts the configuration before the router is built.
type Option func(*app.Config)

// NewEnv provisions a fresh handler test environment. The database doubles as the
// cache store, so revocations and attempt counters live in the same sqlite instance.
func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	cfg := &app.Config{
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
			Password: app.PasswordSettings{
				MinLength:        8,
				RequireUppercase: true,
				RequireLowercase: true,
				RequireNumbers:   true,
				RequireSpecial:   true,
			},
			TOTP: app.TOTPSettings{
				Issuer:        "Panel Test",
				Skew:          1,
				EncryptionKey: "000102030405060708090a0b0c0d0e0f000102030405060708090a0b0c0d0e0f",
			},
			Limits: app.LimitSettings{
				LoginAttempts: 50,
				ResetAttempts: 50,
				Window:        time.Minute,
			},
		},
		Maintenance: app.MaintenanceConfig{AuditRetentionDays: 30},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	store := cache.NewDatabaseStore(db)
	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig(iauth.NewStoreRevocationList(store)))
	require.NoError(t, err)

	router, err := api.NewRouter(db, jwtSvc, cfg, store)
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Router: router,
		JWT:    jwtSvc,
		Config: cfg,
	}
}

// Session mirrors the login/register/setup response payload.
type Session struct {
	AccessToken           string `json:"access_token"`
	TokenType             string `json:"token_type"`
	UserID                string `json:"user_id"`
	Username              string `json:"username"`
	IsAdmin               bool   `json:"is_admin"`
	IsSubAdmin            bool   `json:"is_sub_admin"`
	SessionTimeoutMinutes int    `json:"session_timeout_minutes"`
	IsFirstLogin          bool   `json:"is_first_login"`
	RequiresTOTPSetup     bool   `json:"requires_totp_setup"`
}

// SecurityAnswers returns a complete set of answers for the four recovery questions.
func SecurityAnswers() map[string]string {
	return map[string]string{
		"question1": "Rex",
		"question2": "Springfield",
		"question3": "Blue",
		"question4": "Pizza",
	}
}

// Setup runs first-time setup and returns the bootstrap admin's session.
func (e *Env) Setup(username string) Session {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/first-time-setup", map[string]any{
		"username":           username,
		"password":           StrongPassword,
		"security_questions": SecurityAnswers(),
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())
	return Decode[Session](e.T, w)
}

// Register creates a regular account with security questions and returns its session.
func (e *Env) Register(username string) Session {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/register", map[string]any{
		"username":           username,
		"password":           StrongPassword,
		"security_questions": SecurityAnswers(),
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())
	return Decode[Session](e.T, w)
}

// Login authenticates with an optional TOTP code and returns the raw recorder.
func (e *Env) Login(username, password, totpCode string) *httptest.ResponseRecorder {
	e.T.Helper()

	payload := map[string]string{
		"username": username,
		"password": password,
	}
	if totpCode != "" {
		payload["totp_code"] = totpCode
	}
	return e.Request(http.MethodPost, "/api/auth/login", payload, "")
}

// Decode unmarshals the response body into T.
func Decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// DecodeError parses the error body written by response.Error.
func DecodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()
	return Decode[response.ErrorBody](t, w)
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	buf := bytes.NewBuffer(nil)
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
