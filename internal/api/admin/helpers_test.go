package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/communityhub/platform/internal/db/models"
	"github.com/communityhub/platform/internal/db/repositories"
	"github.com/communityhub/platform/internal/middleware"
	"github.com/communityhub/platform/internal/services"
	"github.com/communityhub/platform/internal/storage"
)

var eventCols = []string{"id", "tenant_id", "title", "category", "description", "location", "event_date",
	"capacity", "created_at", "updated_at", "registered_count"}

var postCols = []string{"id", "tenant_id", "author_id", "title", "slug", "excerpt", "content", "cover_image",
	"status", "published_at", "seo_title", "seo_description", "created_at", "updated_at"}

var reportCols = []string{"id", "tenant_id", "reporter_id", "target_type", "target_id", "reason", "status",
	"created_at", "resolved_at", "resolved_by"}

const (
	privilegedQuery = "SELECT user_id FROM tenant_members WHERE tenant_id = \\$1 AND role IN .* FOR UPDATE"
	targetQuery     = "SELECT tenant_id, user_id, role, joined_at FROM tenant_members WHERE tenant_id = \\$1 AND user_id = \\$2 FOR UPDATE"
	auditInsert     = "INSERT INTO moderation_logs"
)

var errUniqueViolation = &pq.Error{Code: "23505"}

type caller struct {
	userID     string
	tenantRole string
}

var (
	anonymous = caller{}
	member    = caller{userID: "user-9", tenantRole: "member"}
	moderator = caller{userID: "mod-1", tenantRole: "moderator"}
	editor    = caller{userID: "editor-1", tenantRole: "editor"}
	admin     = caller{userID: "admin-1", tenantRole: "admin"}
)

func withCaller(cl caller) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.TenantKey, &models.Tenant{ID: "tenant-1", Slug: "akincilar", Status: models.TenantStatusActive})
		if cl.userID != "" {
			middleware.SetUser(c, &models.User{ID: cl.userID, Username: cl.userID,
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

// memStore is an in-memory storage.Backend
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	deleted []string
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (s *memStore) Put(_ context.Context, key string, body io.Reader, contentType string) (*storage.Object, error) {
	if s.putErr != nil {
		return nil, s.putErr
	}
	data, checksum, err := storage.Digest(body)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return &storage.Object{Key: key, Size: int64(len(data)), ContentType: contentType, Checksum: checksum}, nil
}

func (s *memStore) Open(_ context.Context, key string) (io.ReadCloser, *storage.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), &storage.Object{Key: key, Size: int64(len(data))}, nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *memStore) URL(_ context.Context, key string) (string, error) {
	return "https://cdn.example.com/" + key, nil
}

func (s *memStore) Stat(_ context.Context, key string) (*storage.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.Object{Key: key, Size: int64(len(data))}, nil
}

type harness struct {
	router *gin.Engine
	mock   sqlmock.Sqlmock
	store  *memStore
}

func newHarness(t *testing.T, cl caller) *harness {
	t.Helper()
	return newHarnessWithStore(t, cl, newMemStore(), 1)
}

func newHarnessWithStore(t *testing.T, cl caller, store *memStore, maxUploadMB int) *harness {
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

	var backend storage.Backend
	if store != nil {
		backend = store
	}
	auditor := services.NewAuditor(repositories.NewModerationLogRepository(db), nil).Sync()
	r := gin.New()
	NewHandlers(sqlx.NewDb(db, "sqlmock"), backend, maxUploadMB, auditor).Register(r.Group("/api", withCaller(cl)))
	return &harness{router: r, mock: mock, store: store}
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

func (h *harness) expectAudit(action string) {
	h.mock.ExpectExec(auditInsert).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), action, sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func (h *harness) expectEvent(id string, capacity any) {
	now := time.Now()
	h.mock.ExpectQuery("FROM events e WHERE e.id = \\$1 AND e.tenant_id = \\$2").
		WithArgs(id, "tenant-1").
		WillReturnRows(sqlmock.NewRows(eventCols).AddRow(id, "tenant-1", "Gençlik Şöleni", "festival", nil,
			"Ankara", now.Add(48*time.Hour), capacity, now, now, 3))
}

func (h *harness) expectPost(id, status string, publishedAt any) {
	now := time.Now()
	h.mock.ExpectQuery("FROM posts WHERE tenant_id = \\$1 AND id = \\$2").
		WithArgs("tenant-1", id).
		WillReturnRows(sqlmock.NewRows(postCols).AddRow(id, "tenant-1", "editor-1", "Bahar Duyurusu",
			"bahar-duyurusu", nil, "<p>içerik</p>", nil, status, publishedAt, nil, nil, now, now))
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body
}

func fieldErrors(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	errs, _ := decode(t, w)["errors"].(map[string]any)
	return errs
}
