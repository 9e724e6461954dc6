package forum

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/communityhub/platform/internal/db/models"
	"github.com/communityhub/platform/internal/db/repositories"
	"github.com/communityhub/platform/internal/middleware"
	"github.com/communityhub/platform/internal/services"
)

var (
	threadCols = []string{
		"id", "tenant_id", "category_id", "author_id", "title", "slug", "body",
		"is_pinned", "is_locked", "is_hidden", "views_count", "replies_count",
		"last_activity_at", "created_at",
		"id", "name", "slug",
		"id", "username", "display_name", "avatar_url",
	}
	categoryCols = []string{"id", "tenant_id", "name", "slug", "description", "is_locked", "created_at"}
	replyCols    = []string{"id", "thread_id", "author_id", "body", "is_hidden", "created_at", "updated_at"}
	summaryCols  = []string{"id", "tenant_id", "category_id", "author_id", "title", "slug", "body",
		"is_pinned", "is_locked", "is_hidden", "views_count", "replies_count", "last_activity_at", "created_at",
		"category_name", "category_slug", "author_username", "author_display_name"}
)

// caller describes who is making the request
type caller struct {
	userID     string
	globalRole string
	tenantRole string
}

var (
	anonymous = caller{}
	member    = caller{userID: "user-2", globalRole: "user", tenantRole: "member"}
	moderator = caller{userID: "mod-1", globalRole: "user", tenantRole: "moderator"}
	admin     = caller{userID: "admin-1", globalRole: "user", tenantRole: "admin"}
)

// withCaller stands in for the tenant/session/membership middleware chain
func withCaller(cl caller) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.TenantKey, &models.Tenant{ID: "tenant-1", Slug: "akincilar", Status: models.TenantStatusActive})
		if cl.userID != "" {
			middleware.SetUser(c, &models.User{ID: cl.userID, Username: cl.userID, Role: cl.globalRole, Status: models.UserStatusActive}, nil)
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
	notifier := services.NewNotifier(repositories.NewNotificationRepository(db), nil).Sync()
	auditor := services.NewAuditor(repositories.NewModerationLogRepository(db), nil).Sync()

	r := gin.New()
	NewHandlers(db, aggregator, notifier, auditor).Register(r.Group("/api", withCaller(cl)))
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

type threadFixture struct {
	id       string
	authorID string
	locked   bool
	views    int
	replies  int
}

func (f threadFixture) rows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(threadCols).AddRow(f.id, "tenant-1", "cat-1", f.authorID, "Merhaba", "merhaba", "body",
		false, f.locked, false, f.views, f.replies, now, now,
		"cat-1", "Genel", "genel",
		f.authorID, "ayse", nil, nil)
}

func (h *harness) expectThread(f threadFixture) {
	h.mock.ExpectQuery("FROM forum_threads t .* WHERE t.id = \\$1 AND t.tenant_id = \\$2").
		WithArgs(f.id, "tenant-1").
		WillReturnRows(f.rows())
}

func (h *harness) expectNoThread(id string) {
	h.mock.ExpectQuery("FROM forum_threads t .* WHERE t.id = \\$1 AND t.tenant_id = \\$2").
		WithArgs(id, "tenant-1").
		WillReturnRows(sqlmock.NewRows(threadCols))
}

func (h *harness) expectAudit(action string) {
	h.mock.ExpectExec("INSERT INTO moderation_logs").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), action, sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
}

func (h *harness) expectNotification(userID, kind string) {
	h.mock.ExpectExec("INSERT INTO notifications").
		WithArgs(sqlmock.AnyArg(), userID, "tenant-1", kind, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
}

func (h *harness) expectExists(table string, ok bool) {
	h.mock.ExpectQuery("SELECT EXISTS \\(SELECT 1 FROM " + table).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(ok))
}

func threadSummary(id string) []driver.Value {
	now := time.Now()
	return []driver.Value{id, "tenant-1", "cat-1", "user-1", "Başlık", "baslik", "body",
		false, false, false, 3, 1, now, now, "Genel", "genel", "ayse", nil}
}

func summaryRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows(summaryCols)
	for _, id := range ids {
		rows.AddRow(threadSummary(id)...)
	}
	return rows
}
