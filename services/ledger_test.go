package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/clubhouse/models"
	"github.com/cppla/clubhouse/testutil"
)

type ledgerFixture struct {
	db     *gorm.DB
	ledger *VoteLedger
	scores *ScoreAggregator
	club   models.Club
	post   models.Post
}

func newLedgerFixture(t *testing.T) ledgerFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	club := testutil.SeedClub(t, db, "general")
	post := testutil.SeedPost(t, db, club.ID, "author", "hello", 0, time.Now().UTC())
	scores := NewScoreAggregator(db)
	return ledgerFixture{
		db:     db,
		ledger: NewVoteLedger(db, NewPolicy(), scores),
		scores: scores,
		club:   club,
		post:   post,
	}
}

func (f ledgerFixture) assertScoreMatchesLedger(t *testing.T, postID uint) int {
	t.Helper()
	report, err := f.scores.Drift(context.Background(), postID)
	require.NoError(t, err)
	assert.True(t, report.Healthy, "stored=%d ledger=%d", report.Stored, report.Ledger)
	return report.Stored
}

func TestCastVote_UpdatesScore(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	res, err := f.ledger.CastVote(ctx, "u1", f.post.ID, models.Upvote)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Score)
	assert.Equal(t, f.club.ID, res.ClubID)
	require.NotNil(t, res.Vote)
	assert.Equal(t, "u1", res.Vote.UserID)

	res, err = f.ledger.CastVote(ctx, "u2", f.post.ID, models.Downvote)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)

	res, err = f.ledger.CastVote(ctx, "u3", f.post.ID, models.Downvote)
	require.NoError(t, err)
	assert.Equal(t, -1, res.Score)

	assert.Equal(t, -1, f.assertScoreMatchesLedger(t, f.post.ID))
}

func TestCastVote_SecondVoteConflictsUntilRemoved(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, err := f.ledger.CastVote(ctx, "u1", f.post.ID, models.Upvote)
	require.NoError(t, err)

	_, err = f.ledger.CastVote(ctx, "u1", f.post.ID, models.Upvote)
	assert.ErrorIs(t, err, ErrAlreadyVoted)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.ledger.CastVote(ctx, "u1", f.post.ID, models.Downvote)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, f.assertScoreMatchesLedger(t, f.post.ID))

	removed, err := f.ledger.RemoveVote(ctx, "u1", f.post.ID)
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, 0, removed.Score)

	res, err := f.ledger.CastVote(ctx, "u1", f.post.ID, models.Downvote)
	require.NoError(t, err)
	assert.Equal(t, -1, res.Score)
	assert.Equal(t, -1, f.assertScoreMatchesLedger(t, f.post.ID))
}

func TestCastVote_NonMemberMayVote(t *testing.T) {
	f := newLedgerFixture(t)

	member, err := isMember(f.db, "stranger", f.club.ID)
	require.NoError(t, err)
	require.False(t, member)

	res, err := f.ledger.CastVote(context.Background(), "stranger", f.post.ID, models.Upvote)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Score)
}

func TestCastVote_Rejections(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	t.Run("value outside +1/-1", func(t *testing.T) {
		for _, v := range []int{0, 2, -2, 5} {
			_, err := f.ledger.CastVote(ctx, "u1", f.post.ID, v)
			assert.ErrorIs(t, err, ErrValidation, "value %d", v)
		}
	})
	t.Run("missing post", func(t *testing.T) {
		_, err := f.ledger.CastVote(ctx, "u1", f.post.ID+100, models.Upvote)
		assert.ErrorIs(t, err, ErrNotFound)
	})
	t.Run("anonymous", func(t *testing.T) {
		_, err := f.ledger.CastVote(ctx, "", f.post.ID, models.Upvote)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
	t.Run("anonymous on missing post", func(t *testing.T) {
		_, err := f.ledger.CastVote(ctx, "", f.post.ID+100, models.Upvote)
		assert.ErrorIs(t, err, ErrUnauthenticated)
		_, err = f.ledger.CastVote(ctx, "", f.post.ID+100, 7)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	assert.Equal(t, 0, f.assertScoreMatchesLedger(t, f.post.ID))
}

func TestRemoveVote_MissingIsNoop(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	res, err := f.ledger.RemoveVote(ctx, "u1", f.post.ID)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 0, f.assertScoreMatchesLedger(t, f.post.ID))

	_, err = f.ledger.RemoveVote(ctx, "", f.post.ID)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRemoveVote_OnlyTouchesOwnVote(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, err := f.ledger.CastVote(ctx, "owner", f.post.ID, models.Upvote)
	require.NoError(t, err)

	res, err := f.ledger.RemoveVote(ctx, "someone-else", f.post.ID)
	require.NoError(t, err)
	assert.Nil(t, res)

	vote, err := f.ledger.GetVote(ctx, "owner", f.post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Upvote, vote.VoteValue)
	assert.Equal(t, 1, f.assertScoreMatchesLedger(t, f.post.ID))
}

func TestGetVote(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, err := f.ledger.GetVote(ctx, "u1", f.post.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.ledger.CastVote(ctx, "u1", f.post.ID, models.Downvote)
	require.NoError(t, err)
	vote, err := f.ledger.GetVote(ctx, "u1", f.post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Downvote, vote.VoteValue)
}

func TestScoreInvariant_AfterMixedSequence(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	other := testutil.SeedPost(t, f.db, f.club.ID, "author", "other", 0, time.Now().UTC())

	type step struct {
		user   string
		post   uint
		value  int
		remove bool
	}
	steps := []step{
		{user: "a", post: f.post.ID, value: 1},
		{user: "b", post: f.post.ID, value: 1},
		{user: "c", post: f.post.ID, value: -1},
		{user: "a", post: other.ID, value: -1},
		{user: "b", post: f.post.ID, remove: true},
		{user: "b", post: f.post.ID, value: -1},
		{user: "c", post: f.post.ID, remove: true},
		{user: "d", post: other.ID, value: -1},
		{user: "a", post: other.ID, remove: true},
		{user: "a", post: other.ID, value: 1},
	}
	for i, s := range steps {
		var err error
		if s.remove {
			_, err = f.ledger.RemoveVote(ctx, s.user, s.post)
		} else {
			_, err = f.ledger.CastVote(ctx, s.user, s.post, s.value)
		}
		require.NoError(t, err, "step %d", i)
		f.assertScoreMatchesLedger(t, f.post.ID)
		f.assertScoreMatchesLedger(t, other.ID)
	}

	assert.Equal(t, 0, f.assertScoreMatchesLedger(t, f.post.ID))
	assert.Equal(t, 0, f.assertScoreMatchesLedger(t, other.ID))
}

func TestCastVote_ConcurrentUsersBothCount(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	const voters = 20
	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value := models.Upvote
			if i%4 == 0 {
				value = models.Downvote
			}
			if _, err := f.ledger.CastVote(ctx, fmt.Sprintf("voter-%d", i), f.post.ID, value); err != nil {
				failures.Add(1)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(0), failures.Load())
	// 15 up, 5 down
	assert.Equal(t, 10, f.assertScoreMatchesLedger(t, f.post.ID))
}

func TestCastVote_ConcurrentSameUserOnlyOneWins(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	const attempts = 10
	var wg sync.WaitGroup
	var ok, conflicts atomic.Int32
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.CastVote(ctx, "eager", f.post.ID, models.Upvote)
			switch {
			case err == nil:
				ok.Add(1)
			case assert.ErrorIs(t, err, ErrAlreadyVoted):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(attempts-1), conflicts.Load())
	assert.Equal(t, 1, f.assertScoreMatchesLedger(t, f.post.ID))
}

func TestDrift_ReportsMismatch(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, err := f.ledger.CastVote(ctx, "u1", f.post.ID, models.Upvote)
	require.NoError(t, err)

	// simulate an out-of-band write
	require.NoError(t, f.db.Model(&models.Post{}).Where("id = ?", f.post.ID).UpdateColumn("score", 7).Error)

	report, err := f.scores.Drift(ctx, f.post.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, report.Stored)
	assert.Equal(t, 1, report.Ledger)
	assert.Equal(t, 6, report.Drift)
	assert.False(t, report.Healthy)

	_, err = f.scores.Drift(ctx, f.post.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertVote_DuplicateRowMapsToAlreadyVoted(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, err := f.ledger.CastVote(ctx, "racer", f.post.ID, models.Upvote)
	require.NoError(t, err)

	// the row a concurrent transaction committed between pre-check and insert
	err = f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insertVote(tx, &models.Vote{PostID: f.post.ID, UserID: "racer", VoteValue: models.Downvote})
	})
	assert.ErrorIs(t, err, ErrAlreadyVoted)

	var rows int64
	require.NoError(t, f.db.Model(&models.Vote{}).Where("user_id = ? AND post_id = ?", "racer", f.post.ID).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
	assert.Equal(t, 1, f.assertScoreMatchesLedger(t, f.post.ID))

	err = f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insertVote(tx, &models.Vote{PostID: f.post.ID, UserID: "someone-else", VoteValue: models.Downvote})
	})
	require.NoError(t, err)
}
