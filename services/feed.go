package services

import (
	"sort"
	"strings"
	"time"

	"github.com/cppla/clubhouse/models"
)

// RankKind selects the sort key of a feed.
type RankKind int

const (
	RankNew RankKind = iota
	RankTop
)

// Window bounds how far back a Top feed looks.
type Window int

const (
	WindowAllTime Window = iota
	WindowThreeMonths
	WindowSixMonths
	WindowYear
)

var windowNames = map[Window]string{
	WindowAllTime:     "all",
	WindowThreeMonths: "3m",
	WindowSixMonths:   "6m",
	WindowYear:        "1y",
}

func (w Window) String() string {
	if s, ok := windowNames[w]; ok {
		return s
	}
	return "unknown"
}

// cutoff returns the oldest creation time still inside the window; ok is
// false for all-time.
func (w Window) cutoff(now time.Time) (t time.Time, ok bool) {
	switch w {
	case WindowThreeMonths:
		return now.AddDate(0, -3, 0), true
	case WindowSixMonths:
		return now.AddDate(0, -6, 0), true
	case WindowYear:
		return now.AddDate(-1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

// RankMode is New, or Top over a window.
type RankMode struct {
	Kind   RankKind
	Window Window
}

// ModeNew orders newest first.
func ModeNew() RankMode { return RankMode{Kind: RankNew} }

// ModeTop orders by score within the window.
func ModeTop(w Window) RankMode { return RankMode{Kind: RankTop, Window: w} }

func (m RankMode) String() string {
	if m.Kind == RankTop {
		return "top:" + m.Window.String()
	}
	return "new"
}

// ParseRankMode maps the sort and window query parameters to a mode.
// Empty sort means new; empty window means all-time.
func ParseRankMode(sortParam, windowParam string) (RankMode, error) {
	switch strings.ToLower(strings.TrimSpace(sortParam)) {
	case "", "new":
		return ModeNew(), nil
	case "top":
	default:
		return RankMode{}, validationf("unknown sort %q", sortParam)
	}

	switch strings.ToLower(strings.TrimSpace(windowParam)) {
	case "", "all", "all-time", "alltime":
		return ModeTop(WindowAllTime), nil
	case "3m", "3months":
		return ModeTop(WindowThreeMonths), nil
	case "6m", "6months":
		return ModeTop(WindowSixMonths), nil
	case "1y", "year":
		return ModeTop(WindowYear), nil
	default:
		return RankMode{}, validationf("unknown window %q", windowParam)
	}
}

// FeedRanker orders posts for display. It holds only a clock.
type FeedRanker struct {
	now func() time.Time
}

// NewFeedRanker returns a ranker using now, or time.Now when nil.
func NewFeedRanker(now func() time.Time) *FeedRanker {
	if now == nil {
		now = time.Now
	}
	return &FeedRanker{now: now}
}

// Rank applies Rank with the ranker's clock.
func (r *FeedRanker) Rank(posts []models.Post, mode RankMode, query string) []models.Post {
	return Rank(posts, mode, query, r.now())
}

// Rank filters posts by query, then orders them by mode. The input slice is
// not modified. Equal keys keep their input order.
func Rank(posts []models.Post, mode RankMode, query string, now time.Time) []models.Post {
	out := make([]models.Post, 0, len(posts))
	q := strings.ToLower(strings.TrimSpace(query))
	cutoff, bounded := mode.Window.cutoff(now)

	for _, p := range posts {
		if q != "" && !matches(p, q) {
			continue
		}
		if mode.Kind == RankTop && bounded && !p.CreatedAt.After(cutoff) {
			continue
		}
		out = append(out, p)
	}

	switch mode.Kind {
	case RankTop:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Score > out[j].Score
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	}
	return out
}

func matches(p models.Post, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(p.Title), lowerQuery) ||
		strings.Contains(strings.ToLower(p.Content), lowerQuery)
}
