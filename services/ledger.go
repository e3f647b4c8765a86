package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/cppla/clubhouse/models"
)

// VoteResult describes the state after a committed vote mutation.
type VoteResult struct {
	Vote   *models.Vote `json:"vote,omitempty"`
	PostID uint         `json:"post_id"`
	ClubID uint         `json:"club_id"`
	Score  int          `json:"score"`
}

// VoteLedger records at most one signed vote per (user, post). Each insert or
// delete commits together with the matching score delta.
type VoteLedger struct {
	db     *gorm.DB
	policy *Policy
	scores *ScoreAggregator
}

// NewVoteLedger creates a ledger over db.
func NewVoteLedger(db *gorm.DB, policy *Policy, scores *ScoreAggregator) *VoteLedger {
	return &VoteLedger{db: db, policy: policy, scores: scores}
}

// CastVote inserts a vote. An existing vote is never updated in place: the
// caller must RemoveVote first, otherwise ErrAlreadyVoted is returned.
func (l *VoteLedger) CastVote(ctx context.Context, actor string, postID uint, value int) (*VoteResult, error) {
	if actor == "" {
		return nil, ErrUnauthenticated
	}
	if value != models.Upvote && value != models.Downvote {
		return nil, validationf("vote value must be %d or %d", models.Upvote, models.Downvote)
	}

	var result *VoteResult
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := loadPostRef(tx, postID)
		if err != nil {
			return err
		}
		if err := l.policy.Check(tx, actor, ActionCastVote, Resource{OwnerID: actor, ClubID: post.ClubID}); err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.Vote{}).
			Where("user_id = ? AND post_id = ?", actor, postID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyVoted
		}

		vote := models.Vote{PostID: postID, UserID: actor, VoteValue: value}
		if err := insertVote(tx, &vote); err != nil {
			return err
		}
		if err := l.scores.applyDelta(tx, postID, value); err != nil {
			return err
		}
		score, err := l.scores.currentScore(tx, postID)
		if err != nil {
			return err
		}
		result = &VoteResult{Vote: &vote, PostID: postID, ClubID: post.ClubID, Score: score}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// insertVote writes a new ledger row. A unique-index violation means a
// concurrent vote by the same user committed after the pre-check.
func insertVote(tx *gorm.DB, vote *models.Vote) error {
	err := tx.Create(vote).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyVoted
	}
	return err
}

// RemoveVote deletes the actor's vote on the post. It returns (nil, nil) when
// there is nothing to remove.
func (l *VoteLedger) RemoveVote(ctx context.Context, actor string, postID uint) (*VoteResult, error) {
	if actor == "" {
		return nil, ErrUnauthenticated
	}

	var result *VoteResult
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var vote models.Vote
		err := tx.Where("user_id = ? AND post_id = ?", actor, postID).First(&vote).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		post, err := loadPostRef(tx, postID)
		if err != nil {
			return err
		}
		if err := l.policy.Check(tx, actor, ActionRemoveVote, Resource{OwnerID: vote.UserID, ClubID: post.ClubID}); err != nil {
			return err
		}

		res := tx.Delete(&vote)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// removed concurrently; that transaction applied the delta
			return nil
		}
		if err := l.scores.applyDelta(tx, postID, -vote.VoteValue); err != nil {
			return err
		}
		score, err := l.scores.currentScore(tx, postID)
		if err != nil {
			return err
		}
		result = &VoteResult{PostID: postID, ClubID: post.ClubID, Score: score}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetVote returns the actor's vote on the post, or ErrNotFound.
func (l *VoteLedger) GetVote(ctx context.Context, actor string, postID uint) (*models.Vote, error) {
	if actor == "" {
		return nil, ErrUnauthenticated
	}
	var vote models.Vote
	err := l.db.WithContext(ctx).Where("user_id = ? AND post_id = ?", actor, postID).First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("no vote on post %d", postID)
	}
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

func loadPostRef(tx *gorm.DB, postID uint) (models.Post, error) {
	var post models.Post
	if err := tx.Select("id", "club_id").First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return post, notFoundf("post %d", postID)
		}
		return post, err
	}
	return post, nil
}
