package content

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/db/models"
	"github.com/communityhub/platform/internal/db/repositories"
	"github.com/communityhub/platform/internal/middleware"
	"github.com/communityhub/platform/internal/services"
)

var eventCols = []string{"id", "tenant_id", "title", "category", "description", "location", "event_date",
	"capacity", "created_at", "updated_at", "registered_count"}

var postCols = []string{"id", "tenant_id", "author_id", "title", "slug", "excerpt", "content", "cover_image",
	"status", "published_at", "seo_title", "seo_description", "created_at", "updated_at"}

var settingsCols = []string{"tenant_id", "site_title", "hero_title", "hero_subtitle", "contact_email",
	"socials", "default_language", "updated_at"}

type caller struct {
	userID     string
	tenantRole string
}

var (
	anonymous = caller{}
	member    = caller{userID: "user-2", tenantRole: "member"}
	editor    = caller{userID: "editor-1", tenantRole: "editor"}
)

func withCaller(cl caller) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.TenantKey, &models.Tenant{ID: "tenant-1", Slug: "akincilar", Status: models.TenantStatusActive})
		if cl.userID != "" {
			display := "Deniz"
			middleware.SetUser(c, &models.User{ID: cl.userID, Username: cl.userID, DisplayName: &display,
				Email: cl.userID + "@example.com", Role: "user", Status: models.UserStatusActive}, nil)
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

	auditor := services.NewAuditor(repositories.NewModerationLogRepository(db), nil).Sync()
	r := gin.New()
	NewHandlers(db, auditor).Register(r.Group("/api", withCaller(cl)))
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

func eventRow(rows *sqlmock.Rows, id string, capacity any, registered int) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, "tenant-1", "Gençlik Şöleni", "festival", nil, "Ankara", now.Add(48*time.Hour),
		capacity, now, now, registered)
}

func (h *harness) expectEvent(id string, capacity any, registered int) {
	h.mock.ExpectQuery("FROM events e WHERE e.id = \\$1 AND e.tenant_id = \\$2").
		WithArgs(id, "tenant-1").
		WillReturnRows(eventRow(sqlmock.NewRows(eventCols), id, capacity, registered))
}

func postRow(rows *sqlmock.Rows, id, slug string) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, "tenant-1", "editor-1", "Duyuru", slug, nil, "<p>içerik</p>", nil,
		models.PostStatusPublished, now, nil, nil, now, now)
}
