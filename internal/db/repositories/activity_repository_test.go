package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newActivityRepo(t *testing.T) (*ActivityRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	return NewActivityRepository(sqlx.NewDb(db, "sqlmock")), mock
}

var activityCols = []string{"type", "id", "title", "ref_id", "ts"}

var summaryCols = []string{"id", "tenant_id", "category_id", "author_id", "title", "slug", "body",
	"is_pinned", "is_locked", "is_hidden", "views_count", "replies_count", "last_activity_at", "created_at",
	"category_name", "category_slug", "author_username", "author_display_name"}

func summaryRow(rows *sqlmock.Rows, id string, authorID, username interface{}) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, "tenant-1", "cat-1", authorID, "Başlık", "baslik", "body",
		false, false, false, 10, 0, now, now, "Genel", "genel", username, nil)
}

func TestRecentReplies_UseThreadAsRef(t *testing.T) {
	repo, mock := newActivityRepo(t)
	mock.ExpectQuery("SELECT 'reply' AS type.*r.thread_id::text AS ref_id.*FROM forum_replies r").
		WithArgs("tenant-1", 20).
		WillReturnRows(sqlmock.NewRows(activityCols).AddRow("reply", "reply-1", "cevap", "thread-1", time.Now()))

	items, err := repo.RecentReplies(context.Background(), "tenant-1", 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].RefID != "thread-1" || items[0].Type != "reply" {
		t.Errorf("items = %+v", items)
	}
}

func TestRecentPosts_PublishedOnly(t *testing.T) {
	repo, mock := newActivityRepo(t)
	mock.ExpectQuery("FROM posts p WHERE p.tenant_id = \\$1 AND p.status = 'published'").
		WithArgs("tenant-1", 5).
		WillReturnRows(sqlmock.NewRows(activityCols).AddRow("post", "post-1", "Duyuru", "duyuru", time.Now()))

	items, err := repo.RecentPosts(context.Background(), "tenant-1", 5)
	if err != nil || len(items) != 1 || items[0].RefID != "duyuru" {
		t.Fatalf("RecentPosts = %+v, %v", items, err)
	}
}

func TestRecentThreadsAndEvents_Empty(t *testing.T) {
	repo, mock := newActivityRepo(t)
	mock.ExpectQuery("FROM forum_threads t").WillReturnRows(sqlmock.NewRows(activityCols))
	mock.ExpectQuery("FROM events e").WillReturnRows(sqlmock.NewRows(activityCols))

	threads, err := repo.RecentThreads(context.Background(), "tenant-1", 10)
	if err != nil || threads == nil || len(threads) != 0 {
		t.Fatalf("RecentThreads = %v, %v", threads, err)
	}
	events, err := repo.RecentEvents(context.Background(), "tenant-1", 10)
	if err != nil || events == nil || len(events) != 0 {
		t.Fatalf("RecentEvents = %v, %v", events, err)
	}
}

func TestRecentEvents_DBError(t *testing.T) {
	repo, mock := newActivityRepo(t)
	mock.ExpectQuery("FROM events e").WillReturnError(errDB)

	if _, err := repo.RecentEvents(context.Background(), "tenant-1", 10); err == nil {
		t.Error("expected error, got nil")
	}
}

func TestRankedThreads_Orderings(t *testing.T) {
	cases := []struct {
		ranking ThreadRanking
		order   string
	}{
		{RankNewest, "ORDER BY t.created_at DESC"},
		{RankMostAnswered, "ORDER BY t.replies_count DESC, t.last_activity_at DESC"},
		{RankMostViewed, "ORDER BY t.views_count DESC, t.last_activity_at DESC"},
	}
	for _, tc := range cases {
		t.Run(string(tc.ranking), func(t *testing.T) {
			repo, mock := newActivityRepo(t)
			mock.ExpectQuery(tc.order+" LIMIT \\$2").
				WithArgs("tenant-1", 8).
				WillReturnRows(summaryRow(sqlmock.NewRows(summaryCols), "thread-1", "user-1", "ayse"))

			threads, err := repo.RankedThreads(context.Background(), "tenant-1", tc.ranking, 8)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(threads) != 1 {
				t.Fatalf("len = %d, want 1", len(threads))
			}
			if threads[0].Category == nil || threads[0].Category.Slug != "genel" {
				t.Errorf("category = %+v", threads[0].Category)
			}
			if threads[0].Author == nil || threads[0].Author.Username != "ayse" {
				t.Errorf("author = %+v", threads[0].Author)
			}
			expectMet(t, mock)
		})
	}
}

func TestRankedThreads_UnknownRanking(t *testing.T) {
	repo, _ := newActivityRepo(t)
	if _, err := repo.RankedThreads(context.Background(), "tenant-1", "random", 8); err == nil {
		t.Error("expected error for unknown ranking")
	}
}

func TestUnansweredThreads_DeletedAuthor(t *testing.T) {
	repo, mock := newActivityRepo(t)
	mock.ExpectQuery("AND t.replies_count = 0 ORDER BY t.created_at DESC").
		WithArgs("tenant-1", 10).
		WillReturnRows(summaryRow(sqlmock.NewRows(summaryCols), "thread-1", nil, nil))

	threads, err := repo.UnansweredThreads(context.Background(), "tenant-1", 10)
	if err != nil || len(threads) != 1 {
		t.Fatalf("UnansweredThreads = %+v, %v", threads, err)
	}
	if threads[0].Author != nil {
		t.Errorf("expected no author, got %+v", threads[0].Author)
	}
}

func TestThreadsAndRepliesByAuthor(t *testing.T) {
	repo, mock := newActivityRepo(t)
	mock.ExpectQuery("AND t.author_id = \\$2 ORDER BY t.created_at DESC LIMIT \\$3").
		WithArgs("tenant-1", "user-1", 10).
		WillReturnRows(summaryRow(sqlmock.NewRows(summaryCols), "thread-1", "user-1", "ayse"))
	now := time.Now()
	mock.ExpectQuery("FROM forum_replies r JOIN forum_threads t.*r.author_id = \\$2").
		WithArgs("tenant-1", "user-1", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "thread_id", "author_id", "body", "is_hidden", "created_at", "updated_at", "thread_title", "thread_slug"}).
			AddRow("reply-1", "thread-9", "user-1", "katılıyorum", false, now, now, "Başka konu", "baska-konu"))

	threads, err := repo.ThreadsByAuthor(context.Background(), "tenant-1", "user-1", 10)
	if err != nil || len(threads) != 1 {
		t.Fatalf("ThreadsByAuthor = %+v, %v", threads, err)
	}
	replies, err := repo.RepliesByAuthor(context.Background(), "tenant-1", "user-1", 10)
	if err != nil || len(replies) != 1 {
		t.Fatalf("RepliesByAuthor = %+v, %v", replies, err)
	}
	if replies[0].Thread == nil || replies[0].Thread.Slug != "baska-konu" {
		t.Errorf("thread ref = %+v", replies[0].Thread)
	}
	expectMet(t, mock)
}
