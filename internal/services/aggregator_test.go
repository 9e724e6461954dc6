package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/communityhub/platform/internal/db/models"
	"github.com/communityhub/platform/internal/db/repositories"
)

var activityCols = []string{"type", "id", "title", "ref_id", "ts"}

var summaryCols = []string{"id", "tenant_id", "category_id", "author_id", "title", "slug", "body",
	"is_pinned", "is_locked", "is_hidden", "views_count", "replies_count", "last_activity_at", "created_at",
	"category_name", "category_slug", "author_username", "author_display_name"}

var userCols = []string{"id", "username", "display_name", "email", "password_hash", "role", "status",
	"bio", "avatar_url", "trust_level", "reputation_points", "email_verified", "must_change_password",
	"oidc_subject", "last_login_at", "created_at"}

func newAggregator(t *testing.T) (*Aggregator, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	return NewAggregator(
		repositories.NewActivityRepository(sqlx.NewDb(db, "sqlmock")),
		repositories.NewUserRepository(db),
		repositories.NewTenantRepository(db),
	), mock
}

func threadSummary(id string, replies int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(summaryCols).AddRow(id, "tenant-1", "cat-1", "user-1", "Başlık", "baslik", "body",
		false, false, false, 3, replies, now, now, "Genel", "genel", "ayse", nil)
}

// ---------------------------------------------------------------------------
// ActivityFeed
// ---------------------------------------------------------------------------

func TestActivityFeed_InvalidLimit(t *testing.T) {
	agg, mock := newAggregator(t)
	for _, limit := range []int{0, -1, 101} {
		_, err := agg.ActivityFeed(context.Background(), "tenant-1", limit)
		assert.ErrorIs(t, err, ErrInvalidLimit, "limit %d", limit)
	}
	expectMet(t, mock)
}

func TestActivityFeed_MergesSources(t *testing.T) {
	agg, mock := newAggregator(t)
	mock.MatchExpectationsInOrder(false)
	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT 'thread' AS type").WithArgs("tenant-1", 3).
		WillReturnRows(sqlmock.NewRows(activityCols).
			AddRow("thread", "t-1", "Thread", "t-1", base.Add(-1*time.Hour)))
	mock.ExpectQuery("SELECT 'reply' AS type").WithArgs("tenant-1", 3).
		WillReturnRows(sqlmock.NewRows(activityCols).
			AddRow("reply", "r-1", "Cevap", "t-1", base).
			AddRow("reply", "r-2", "Cevap 2", "t-1", base.Add(-3*time.Hour)))
	mock.ExpectQuery("SELECT 'post' AS type").WithArgs("tenant-1", 3).
		WillReturnRows(sqlmock.NewRows(activityCols).
			AddRow("post", "p-1", "Duyuru", "duyuru", base.Add(-2*time.Hour)))
	mock.ExpectQuery("SELECT 'event' AS type").WithArgs("tenant-1", 3).
		WillReturnRows(sqlmock.NewRows(activityCols))

	items, err := agg.ActivityFeed(context.Background(), "tenant-1", 3)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "r-1", items[0].ID)
	assert.Equal(t, "t-1", items[1].ID)
	assert.Equal(t, "p-1", items[2].ID)
	assert.Equal(t, "duyuru", items[2].RefID)
	expectMet(t, mock)
}

func TestActivityFeed_SourceError(t *testing.T) {
	agg, mock := newAggregator(t)
	mock.MatchExpectationsInOrder(false)
	empty := func() *sqlmock.Rows { return sqlmock.NewRows(activityCols) }

	mock.ExpectQuery("SELECT 'thread' AS type").WillReturnRows(empty())
	mock.ExpectQuery("SELECT 'reply' AS type").WillReturnRows(empty())
	mock.ExpectQuery("SELECT 'post' AS type").WillReturnError(errors.New("relation does not exist"))
	mock.ExpectQuery("SELECT 'event' AS type").WillReturnRows(empty())

	_, err := agg.ActivityFeed(context.Background(), "tenant-1", 20)
	assert.Error(t, err)
}

func TestMergeActivity_StableOnTies(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	threads := []models.ActivityItem{{Type: "thread", ID: "a", Timestamp: ts}}
	posts := []models.ActivityItem{{Type: "post", ID: "b", Timestamp: ts}}

	got := MergeActivity(10, threads, posts)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestMergeActivity_EmptyIsNotNil(t *testing.T) {
	got := MergeActivity(5)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMergeActivity_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.IntRange(1, 100).Draw(t, "limit")
		genItems := rapid.SliceOfN(rapid.Custom(func(t *rapid.T) models.ActivityItem {
			return models.ActivityItem{
				ID:        rapid.StringMatching(`[a-z]{4}`).Draw(t, "id"),
				Timestamp: time.Unix(rapid.Int64Range(0, 1_000_000).Draw(t, "ts"), 0),
			}
		}), 0, 30)

		a := genItems.Draw(t, "threads")
		b := genItems.Draw(t, "replies")
		c := genItems.Draw(t, "posts")
		d := genItems.Draw(t, "events")
		total := len(a) + len(b) + len(c) + len(d)

		got := MergeActivity(limit, a, b, c, d)

		want := total
		if want > limit {
			want = limit
		}
		if len(got) != want {
			t.Fatalf("len = %d, want %d", len(got), want)
		}
		for i := 1; i < len(got); i++ {
			if got[i].Timestamp.After(got[i-1].Timestamp) {
				t.Fatalf("item %d is newer than item %d", i, i-1)
			}
		}
	})
}

// ---------------------------------------------------------------------------
// Highlights / NeedsAnswers
// ---------------------------------------------------------------------------

func TestHighlights(t *testing.T) {
	agg, mock := newAggregator(t)
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery("ORDER BY t.created_at DESC LIMIT \\$2").WithArgs("tenant-1", 8).
		WillReturnRows(threadSummary("newest", 0))
	mock.ExpectQuery("ORDER BY t.replies_count DESC, t.last_activity_at DESC").WithArgs("tenant-1", 8).
		WillReturnRows(threadSummary("answered", 12))
	mock.ExpectQuery("ORDER BY t.views_count DESC, t.last_activity_at DESC").WithArgs("tenant-1", 8).
		WillReturnRows(threadSummary("viewed", 1))

	h, err := agg.Highlights(context.Background(), "tenant-1", HighlightsSize)
	require.NoError(t, err)
	require.Len(t, h.Newest, 1)
	require.Len(t, h.MostAnswered, 1)
	require.Len(t, h.MostViewed, 1)
	assert.Equal(t, "newest", h.Newest[0].ID)
	assert.Equal(t, "answered", h.MostAnswered[0].ID)
	assert.Equal(t, "viewed", h.MostViewed[0].ID)
	assert.Equal(t, "ayse", h.MostAnswered[0].Author.Username)
	expectMet(t, mock)
}

func TestNeedsAnswers(t *testing.T) {
	agg, mock := newAggregator(t)
	mock.ExpectQuery("AND t.replies_count = 0 ORDER BY t.created_at DESC LIMIT \\$2").
		WithArgs("tenant-1", NeedsAnswersSize).
		WillReturnRows(threadSummary("t-1", 0))

	threads, err := agg.NeedsAnswers(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, 0, threads[0].RepliesCount)
	expectMet(t, mock)
}

// ---------------------------------------------------------------------------
// Profile
// ---------------------------------------------------------------------------

func expectUser(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("FROM users WHERE").
		WithArgs("ayse").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("user-1", "ayse", "Ayşe", "ayse@example.com", "hash",
			"user", "active", nil, nil, 1, 40, true, false, nil, nil, time.Now()))
}

func TestProfile(t *testing.T) {
	agg, mock := newAggregator(t)
	expectUser(mock)
	mock.ExpectQuery("SELECT tenant_id, user_id, role, joined_at FROM tenant_members").
		WithArgs("tenant-1", "user-1").
		WillReturnRows(sqlmock.NewRows(memberCols).AddRow("tenant-1", "user-1", "editor", time.Now()))
	mock.ExpectQuery("AND t.author_id = \\$2").
		WithArgs("tenant-1", "user-1", ProfileRecentSize).
		WillReturnRows(threadSummary("t-1", 2))
	mock.ExpectQuery("FROM forum_replies r").
		WithArgs("tenant-1", "user-1", ProfileRecentSize).
		WillReturnRows(sqlmock.NewRows([]string{"id", "thread_id", "author_id", "body", "is_hidden",
			"created_at", "updated_at", "thread_title", "thread_slug"}).
			AddRow("r-1", "t-9", "user-1", "cevap", false, time.Now(), time.Now(), "Diğer", "diger"))

	p, err := agg.Profile(context.Background(), "tenant-1", "ayse")
	require.NoError(t, err)
	assert.Equal(t, "ayse", p.User.Username)
	assert.Equal(t, "editor", p.Role)
	require.Len(t, p.Threads, 1)
	require.Len(t, p.Replies, 1)
	assert.Equal(t, "diger", p.Replies[0].Thread.Slug)
	expectMet(t, mock)
}

func TestProfile_UnknownUser(t *testing.T) {
	agg, mock := newAggregator(t)
	mock.ExpectQuery("FROM users WHERE").WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := agg.Profile(context.Background(), "tenant-1", "ghost")
	assert.ErrorIs(t, err, ErrProfileNotFound)
	expectMet(t, mock)
}

func TestProfile_NotAMember(t *testing.T) {
	agg, mock := newAggregator(t)
	expectUser(mock)
	mock.ExpectQuery("FROM tenant_members").
		WithArgs("tenant-1", "user-1").
		WillReturnError(sql.ErrNoRows)

	_, err := agg.Profile(context.Background(), "tenant-1", "ayse")
	assert.ErrorIs(t, err, ErrProfileNotFound)
	expectMet(t, mock)
}
