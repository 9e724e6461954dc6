package account

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/communityhub/platform/internal/auth"
	"github.com/communityhub/platform/internal/auth/oidc"
	"github.com/communityhub/platform/internal/config"
	"github.com/communityhub/platform/internal/db/models"
	"github.com/communityhub/platform/internal/db/repositories"
	"github.com/communityhub/platform/internal/middleware"
	"github.com/communityhub/platform/internal/services"
)

var userCols = []string{"id", "username", "display_name", "email", "password_hash", "role", "status",
	"bio", "avatar_url", "trust_level", "reputation_points", "email_verified", "must_change_password",
	"oidc_subject", "last_login_at", "created_at"}

var memberCols = []string{"tenant_id", "user_id", "role", "joined_at"}

var errInvalidCode = errors.New("invalid code")

var testTenant = &models.Tenant{ID: "tenant-1", Name: "Akıncılar", Slug: "akincilar", Status: models.TenantStatusActive}

func testConfig() config.AuthConfig {
	return config.AuthConfig{
		BcryptCost: bcrypt.MinCost,
		Session:    config.SessionConfig{CookieName: "community_session", TTL: time.Hour},
		OIDC:       config.OIDCConfig{AutoJoin: true, PostLoginRedirect: "/forum"},
	}
}

func mustHash(t *testing.T, pw string) string {
	t.Helper()
	h, err := auth.HashPassword(pw, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return h
}

// identity stands in for the session and membership middleware
type identity struct {
	user    *models.User
	session *models.Session
	role    string
}

func (id identity) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.TenantKey, testTenant)
		if id.user != nil {
			middleware.SetUser(c, id.user, id.session)
		}
		var m *models.TenantMember
		if id.role != "" {
			m = &models.TenantMember{TenantID: testTenant.ID, UserID: id.user.ID, Role: id.role}
		}
		middleware.SetMembership(c, m)
		c.Next()
	}
}

type harness struct {
	router   *gin.Engine
	mock     sqlmock.Sqlmock
	handlers *Handlers
}

type harnessOption func(*harnessOptions)

type harnessOptions struct {
	cfg     config.AuthConfig
	limiter middleware.Limiter
	sso     SSOProvider
}

func withConfig(cfg config.AuthConfig) harnessOption {
	return func(o *harnessOptions) { o.cfg = cfg }
}

func withLimiter(l middleware.Limiter) harnessOption {
	return func(o *harnessOptions) { o.limiter = l }
}

func withSSO(p SSOProvider) harnessOption {
	return func(o *harnessOptions) { o.sso = p }
}

func newHarness(t *testing.T, id identity, opts ...harnessOption) *harness {
	t.Helper()
	o := harnessOptions{cfg: testConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sqlmock expectations: %v", err)
		}
		db.Close()
	})

	auditor := services.NewAuditor(repositories.NewModerationLogRepository(db), nil).Sync()
	h := NewHandlers(o.cfg, db, auditor)
	if o.sso != nil {
		h.SetSSOProvider(o.sso)
	}

	r := gin.New()
	h.Register(r.Group("/api", id.middleware()), o.limiter)
	return &harness{router: r, mock: mock, handlers: h}
}

func (h *harness) do(method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body
}

func cookieNamed(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func userRow(id, username, hash, status string) *sqlmock.Rows {
	return sqlmock.NewRows(userCols).AddRow(id, username, username, username+"@example.com", hash,
		"user", status, nil, nil, 0, 0, true, false, nil, nil, time.Now())
}

func (h *harness) expectUserByUsername(username string, rows *sqlmock.Rows) {
	if rows == nil {
		rows = sqlmock.NewRows(userCols)
	}
	h.mock.ExpectQuery("FROM users WHERE username = \\$1").WithArgs(username).WillReturnRows(rows)
}

func (h *harness) expectUserByEmail(email string, rows *sqlmock.Rows) {
	if rows == nil {
		rows = sqlmock.NewRows(userCols)
	}
	h.mock.ExpectQuery("FROM users WHERE LOWER\\(email\\)").WithArgs(email).WillReturnRows(rows)
}

func (h *harness) expectMember(userID, role string) {
	rows := sqlmock.NewRows(memberCols)
	if role != "" {
		rows.AddRow(testTenant.ID, userID, role, time.Now())
	}
	h.mock.ExpectQuery("FROM tenant_members").WithArgs(testTenant.ID, userID).WillReturnRows(rows)
}

func (h *harness) expectAddMember(role string) {
	h.mock.ExpectExec("INSERT INTO tenant_members").
		WithArgs(testTenant.ID, sqlmock.AnyArg(), role, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
}

func (h *harness) expectCreateUser() {
	h.mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			"user", models.UserStatusActive, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
}

func (h *harness) expectSession() {
	h.mock.ExpectExec("INSERT INTO user_sessions").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), testTenant.ID, sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
}

func (h *harness) expectTouchLogin(userID string) {
	h.mock.ExpectExec("UPDATE users SET last_login_at").
		WithArgs(userID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

// fakeSSO is an identity provider that accepts one code
type fakeSSO struct {
	code     string
	identity *oidc.Identity
}

func (f *fakeSSO) AuthURL(state string) string {
	return "https://idp.example.com/authorize?state=" + state
}

func (f *fakeSSO) Authenticate(_ context.Context, code string) (*oidc.Identity, error) {
	if code != f.code {
		return nil, errInvalidCode
	}
	return f.identity, nil
}
