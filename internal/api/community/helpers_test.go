package community

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/communityhub/platform/internal/db/models"
	"github.com/communityhub/platform/internal/db/repositories"
	"github.com/communityhub/platform/internal/middleware"
	"github.com/communityhub/platform/internal/services"
)

var activityCols = []string{"type", "id", "title", "ref_id", "ts"}

type caller struct {
	userID     string
	tenantRole string
}

var (
	anonymous = caller{}
	member    = caller{userID: "user-2", tenantRole: "member"}
)

func withCaller(cl caller) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.TenantKey, &models.Tenant{ID: "tenant-1", Slug: "akincilar", Status: models.TenantStatusActive})
		if cl.userID != "" {
			middleware.SetUser(c, &models.User{ID: cl.userID, Username: cl.userID, Role: "user", Status: models.UserStatusActive}, nil)
		}
		var m *models.TenantMember
		if cl.tenantRole != "" {
			m = &models.TenantMember{TenantID: "tenant-1", UserID: cl.userID, Role: cl.tenantRole}
		}
		middleware.SetMembership(c, m)
		c.Next()
	}
}

type harness struct {
	router *gin.Engine
	mock   sqlmock.Sqlmock
}

func newHarness(t *testing.T, cl caller) *harness {
	t.Helper()
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

	aggregator := services.NewAggregator(
		repositories.NewActivityRepository(sqlx.NewDb(db, "sqlmock")),
		repositories.NewUserRepository(db),
		repositories.NewTenantRepository(db),
	)
	r := gin.New()
	NewHandlers(db, aggregator).Register(r.Group("/api", withCaller(cl)))
	return &harness{router: r, mock: mock}
}

func (h *harness) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
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

func (h *harness) expectExists(table string, ok bool) {
	h.mock.ExpectQuery("SELECT EXISTS \\(SELECT 1 FROM " + table).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(ok))
}
