package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/clubhouse/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func titles(posts []models.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Title
	}
	return out
}

func abcPosts() []models.Post {
	return []models.Post{
		{ID: 1, Title: "A", Score: 3, CreatedAt: date(2024, 1, 1)},
		{ID: 2, Title: "B", Score: 5, CreatedAt: date(2024, 6, 1)},
		{ID: 3, Title: "C", Score: 1, CreatedAt: date(2025, 1, 1)},
	}
}

func TestRank_ExampleABC(t *testing.T) {
	now := date(2025, 2, 1)
	posts := abcPosts()

	assert.Equal(t, []string{"C", "B", "A"}, titles(Rank(posts, ModeNew(), "", now)))
	assert.Equal(t, []string{"B", "A", "C"}, titles(Rank(posts, ModeTop(WindowAllTime), "", now)))
}

func TestRank_NewIsAntiSymmetricUnderReversedTimestamps(t *testing.T) {
	now := date(2025, 2, 1)
	posts := []models.Post{
		{Title: "p1", CreatedAt: date(2024, 1, 1)},
		{Title: "p2", CreatedAt: date(2024, 3, 1)},
		{Title: "p3", CreatedAt: date(2024, 5, 1)},
		{Title: "p4", CreatedAt: date(2024, 7, 1)},
		{Title: "p5", CreatedAt: date(2024, 9, 1)},
	}
	reversed := make([]models.Post, len(posts))
	copy(reversed, posts)
	for i := range reversed {
		reversed[i].CreatedAt = posts[len(posts)-1-i].CreatedAt
	}

	forward := titles(Rank(posts, ModeNew(), "", now))
	backward := titles(Rank(reversed, ModeNew(), "", now))

	require.Len(t, backward, len(forward))
	for i := range forward {
		assert.Equal(t, forward[i], backward[len(backward)-1-i])
	}
}

func TestRank_TopAllTimeHoldsTopNScores(t *testing.T) {
	now := date(2025, 2, 1)
	posts := []models.Post{
		{Title: "a", Score: 4, CreatedAt: date(2020, 1, 1)},
		{Title: "b", Score: -2, CreatedAt: date(2021, 1, 1)},
		{Title: "c", Score: 10, CreatedAt: date(2022, 1, 1)},
		{Title: "d", Score: 0, CreatedAt: date(2023, 1, 1)},
		{Title: "e", Score: 7, CreatedAt: date(2024, 1, 1)},
	}
	ranked := Rank(posts, ModeTop(WindowAllTime), "", now)
	require.Len(t, ranked, len(posts))
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
	}
	assert.Equal(t, []string{"c", "e", "a", "d", "b"}, titles(ranked))
}

func TestRank_TopKeepsInputOrderOnTies(t *testing.T) {
	now := date(2025, 2, 1)
	posts := []models.Post{
		{Title: "first", Score: 2, CreatedAt: date(2024, 1, 1)},
		{Title: "second", Score: 2, CreatedAt: date(2024, 2, 1)},
		{Title: "third", Score: 2, CreatedAt: date(2024, 3, 1)},
	}
	assert.Equal(t, []string{"first", "second", "third"}, titles(Rank(posts, ModeTop(WindowAllTime), "", now)))
}

func TestRank_TopWindows(t *testing.T) {
	now := date(2025, 1, 15)
	posts := []models.Post{
		{Title: "two-weeks", Score: 1, CreatedAt: date(2025, 1, 1)},
		{Title: "four-months", Score: 2, CreatedAt: date(2024, 9, 15)},
		{Title: "eight-months", Score: 3, CreatedAt: date(2024, 5, 15)},
		{Title: "two-years", Score: 4, CreatedAt: date(2023, 1, 15)},
	}

	tests := []struct {
		window Window
		want   []string
	}{
		{WindowThreeMonths, []string{"two-weeks"}},
		{WindowSixMonths, []string{"four-months", "two-weeks"}},
		{WindowYear, []string{"eight-months", "four-months", "two-weeks"}},
		{WindowAllTime, []string{"two-years", "eight-months", "four-months", "two-weeks"}},
	}
	for _, tt := range tests {
		t.Run(tt.window.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, titles(Rank(posts, ModeTop(tt.window), "", now)))
		})
	}
}

func TestRank_WindowBoundaryIsExclusive(t *testing.T) {
	now := date(2025, 4, 1)
	posts := []models.Post{
		{Title: "exactly-three-months", Score: 1, CreatedAt: date(2025, 1, 1)},
		{Title: "just-inside", Score: 1, CreatedAt: date(2025, 1, 1).Add(time.Second)},
	}
	assert.Equal(t, []string{"just-inside"}, titles(Rank(posts, ModeTop(WindowThreeMonths), "", now)))
}

func TestRank_NewIgnoresWindow(t *testing.T) {
	now := date(2025, 2, 1)
	assert.Len(t, Rank(abcPosts(), RankMode{Kind: RankNew, Window: WindowThreeMonths}, "", now), 3)
}

func TestRank_SearchFilter(t *testing.T) {
	now := date(2025, 2, 1)
	posts := []models.Post{
		{Title: "Learning Go", Content: "channels and goroutines", CreatedAt: date(2024, 1, 1)},
		{Title: "Jazz night", Content: "bring your GOLDEN horn", CreatedAt: date(2024, 2, 1)},
		{Title: "Reading list", Content: "novels", CreatedAt: date(2024, 3, 1)},
	}

	t.Run("case insensitive in title or content", func(t *testing.T) {
		assert.Equal(t, []string{"Jazz night", "Learning Go"}, titles(Rank(posts, ModeNew(), "go", now)))
	})
	t.Run("content only", func(t *testing.T) {
		assert.Equal(t, []string{"Reading list"}, titles(Rank(posts, ModeNew(), "NOVEL", now)))
	})
	t.Run("miss yields empty", func(t *testing.T) {
		assert.Empty(t, Rank(posts, ModeTop(WindowAllTime), "haskell", now))
	})
	t.Run("blank query keeps all", func(t *testing.T) {
		assert.Len(t, Rank(posts, ModeNew(), "   ", now), 3)
	})
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	now := date(2025, 2, 1)
	posts := abcPosts()
	_ = Rank(posts, ModeTop(WindowAllTime), "", now)
	_ = Rank(posts, ModeNew(), "", now)
	assert.Equal(t, []string{"A", "B", "C"}, titles(posts))
}

func TestFeedRanker_UsesClock(t *testing.T) {
	r := NewFeedRanker(func() time.Time { return date(2024, 7, 1) })
	// A falls out of the window; C is newer than the clock and stays in
	got := r.Rank(abcPosts(), ModeTop(WindowThreeMonths), "")
	assert.Equal(t, []string{"B", "C"}, titles(got))
}

func TestParseRankMode(t *testing.T) {
	tests := []struct {
		sort, window string
		want         RankMode
		wantErr      bool
	}{
		{"", "", ModeNew(), false},
		{"new", "3m", ModeNew(), false},
		{"top", "", ModeTop(WindowAllTime), false},
		{"TOP", "3m", ModeTop(WindowThreeMonths), false},
		{"top", "6m", ModeTop(WindowSixMonths), false},
		{"top", "1y", ModeTop(WindowYear), false},
		{"top", "all", ModeTop(WindowAllTime), false},
		{"hot", "", RankMode{}, true},
		{"top", "2w", RankMode{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.sort+"/"+tt.window, func(t *testing.T) {
			got, err := ParseRankMode(tt.sort, tt.window)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, got.String())
		})
	}
}
