package services

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/communityhub/platform/internal/db/models"
	"github.com/communityhub/platform/internal/db/repositories"
)

// Aggregation limits
const (
	DefaultFeedLimit  = 20
	MaxFeedLimit      = 100
	HighlightsSize    = 8
	NeedsAnswersSize  = 10
	ProfileRecentSize = 10
)

var (
	ErrInvalidLimit    = errors.New("limit must be between 1 and 100")
	ErrProfileNotFound = errors.New("profile not found")
)

// Aggregator builds read-only views that combine several content kinds. Nothing is
// cached; every call reads the current rows.
type Aggregator struct {
	activity *repositories.ActivityRepository
	users    *repositories.UserRepository
	tenants  *repositories.TenantRepository
}

// NewAggregator creates a new Aggregator
func NewAggregator(activity *repositories.ActivityRepository, users *repositories.UserRepository, tenants *repositories.TenantRepository) *Aggregator {
	return &Aggregator{activity: activity, users: users, tenants: tenants}
}

// ActivityFeed merges the newest threads, replies, posts and events of the
// community, newest first, truncated to limit.
func (a *Aggregator) ActivityFeed(ctx context.Context, tenantID string, limit int) ([]models.ActivityItem, error) {
	if limit < 1 || limit > MaxFeedLimit {
		return nil, ErrInvalidLimit
	}

	sources := []func(context.Context, string, int) ([]models.ActivityItem, error){
		a.activity.RecentThreads,
		a.activity.RecentReplies,
		a.activity.RecentPosts,
		a.activity.RecentEvents,
	}
	results := make([][]models.ActivityItem, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, fetch := range sources {
		g.Go(func() error {
			items, err := fetch(gctx, tenantID, limit)
			results[i] = items
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return MergeActivity(limit, results...), nil
}

// MergeActivity concatenates the per-source lists in order, sorts them by timestamp
// descending and keeps the first limit items. Equal timestamps keep source order.
func MergeActivity(limit int, sources ...[]models.ActivityItem) []models.ActivityItem {
	merged := []models.ActivityItem{}
	for _, s := range sources {
		merged = append(merged, s...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// Highlights returns the n newest, most answered and most viewed threads
func (a *Aggregator) Highlights(ctx context.Context, tenantID string, n int) (*models.Highlights, error) {
	h := &models.Highlights{}
	targets := []struct {
		ranking repositories.ThreadRanking
		dst     *[]models.ForumThread
	}{
		{repositories.RankNewest, &h.Newest},
		{repositories.RankMostAnswered, &h.MostAnswered},
		{repositories.RankMostViewed, &h.MostViewed},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, tg := range targets {
		g.Go(func() error {
			threads, err := a.activity.RankedThreads(gctx, tenantID, tg.ranking, n)
			*tg.dst = threads
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return h, nil
}

// NeedsAnswers returns the newest threads nobody has replied to yet
func (a *Aggregator) NeedsAnswers(ctx context.Context, tenantID string) ([]models.ForumThread, error) {
	return a.activity.UnansweredThreads(ctx, tenantID, NeedsAnswersSize)
}

// Profile returns a member's public profile. Users that exist but never joined the
// community are reported as not found.
func (a *Aggregator) Profile(ctx context.Context, tenantID, username string) (*models.Profile, error) {
	user, err := a.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrProfileNotFound
	}
	member, err := a.tenants.GetMember(ctx, tenantID, user.ID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrProfileNotFound
	}

	threads, err := a.activity.ThreadsByAuthor(ctx, tenantID, user.ID, ProfileRecentSize)
	if err != nil {
		return nil, err
	}
	replies, err := a.activity.RepliesByAuthor(ctx, tenantID, user.ID, ProfileRecentSize)
	if err != nil {
		return nil, err
	}

	return &models.Profile{
		User:    user.Public(),
		Role:    member.Role,
		Threads: threads,
		Replies: replies,
	}, nil
}
