package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/cppla/clubhouse/models"
)

// ScoreAggregator keeps posts.score equal to the sum of the post's vote values.
// Its only write path is applyDelta, which callers run inside the transaction
// that inserted or deleted the vote.
type ScoreAggregator struct {
	db *gorm.DB
}

// NewScoreAggregator returns an aggregator reading from db.
func NewScoreAggregator(db *gorm.DB) *ScoreAggregator {
	return &ScoreAggregator{db: db}
}

// applyDelta adds delta to the stored score. The update is relative so
// concurrent votes on the same post commute.
func (s *ScoreAggregator) applyDelta(tx *gorm.DB, postID uint, delta int) error {
	res := tx.Model(&models.Post{}).
		Where("id = ?", postID).
		UpdateColumn("score", gorm.Expr("score + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFoundf("post %d", postID)
	}
	return nil
}

// currentScore reads the score as seen by tx.
func (s *ScoreAggregator) currentScore(tx *gorm.DB, postID uint) (int, error) {
	var post models.Post
	if err := tx.Select("id", "score").First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, notFoundf("post %d", postID)
		}
		return 0, err
	}
	return post.Score, nil
}

// ScoreReport compares the cached score with the ledger.
type ScoreReport struct {
	PostID  uint `json:"post_id"`
	Stored  int  `json:"stored"`
	Ledger  int  `json:"ledger"`
	Drift   int  `json:"drift"`
	Healthy bool `json:"healthy"`
}

// Drift reads the stored score and the vote sum in one transaction. It never writes.
func (s *ScoreAggregator) Drift(ctx context.Context, postID uint) (ScoreReport, error) {
	report := ScoreReport{PostID: postID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stored, err := s.currentScore(tx, postID)
		if err != nil {
			return err
		}
		var sum int
		if err := tx.Model(&models.Vote{}).
			Where("post_id = ?", postID).
			Select("COALESCE(SUM(vote_value), 0)").
			Scan(&sum).Error; err != nil {
			return err
		}
		report.Stored = stored
		report.Ledger = sum
		return nil
	})
	if err != nil {
		return ScoreReport{}, err
	}
	report.Drift = report.Stored - report.Ledger
	report.Healthy = report.Drift == 0
	return report, nil
}
