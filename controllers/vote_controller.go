package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/clubhouse/services"
	"github.com/cppla/clubhouse/utils"
)

// VoteController exposes the vote ledger.
type VoteController struct {
	ledger *services.VoteLedger
	scores *services.ScoreAggregator
	cache  *utils.ResponseCache
}

// NewVoteController creates a new VoteController instance. cache may be nil.
func NewVoteController(ledger *services.VoteLedger, scores *services.ScoreAggregator, cache *utils.ResponseCache) *VoteController {
	return &VoteController{ledger: ledger, scores: scores, cache: cache}
}

// CastVote records a +1 or -1 vote. A second vote without removing the first returns 409.
func (v *VoteController) CastVote(ctx *gin.Context) {
	postID, ok := parseIDParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid post id")
		return
	}
	var req struct {
		Value *int `json:"value" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40031, "invalid request payload")
		return
	}

	userID, _ := getUserID(ctx)
	res, err := v.ledger.CastVote(ctx.Request.Context(), userID, postID, *req.Value)
	if err != nil {
		respondServiceError(ctx, err, 50030, "failed to cast vote")
		return
	}
	v.invalidatePost(ctx, res.PostID, res.ClubID)
	utils.Created(ctx, res)
}

// RemoveVote deletes the caller's vote. Removing a vote that does not exist succeeds.
func (v *VoteController) RemoveVote(ctx *gin.Context) {
	postID, ok := parseIDParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40032, "invalid post id")
		return
	}

	userID, _ := getUserID(ctx)
	res, err := v.ledger.RemoveVote(ctx.Request.Context(), userID, postID)
	if err != nil {
		respondServiceError(ctx, err, 50031, "failed to remove vote")
		return
	}
	if res == nil {
		utils.Success(ctx, gin.H{"removed": false, "post_id": postID})
		return
	}
	v.invalidatePost(ctx, res.PostID, res.ClubID)
	utils.Success(ctx, gin.H{"removed": true, "post_id": res.PostID, "score": res.Score})
}

// GetMyVote returns the caller's vote on the post.
func (v *VoteController) GetMyVote(ctx *gin.Context) {
	postID, ok := parseIDParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40033, "invalid post id")
		return
	}
	userID, _ := getUserID(ctx)
	vote, err := v.ledger.GetVote(ctx.Request.Context(), userID, postID)
	if err != nil {
		respondServiceError(ctx, err, 50032, "failed to load vote")
		return
	}
	utils.Success(ctx, gin.H{"vote": vote})
}

// ScoreDrift compares the cached score with the vote ledger. Admin only.
func (v *VoteController) ScoreDrift(ctx *gin.Context) {
	postID, ok := parseIDParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40034, "invalid post id")
		return
	}
	report, err := v.scores.Drift(ctx.Request.Context(), postID)
	if err != nil {
		respondServiceError(ctx, err, 50033, "failed to check score")
		return
	}
	utils.Success(ctx, report)
}

func (v *VoteController) invalidatePost(ctx *gin.Context, postID, clubID uint) {
	v.cache.Invalidate(ctx.Request.Context(), postCacheKey(postID), feedCachePrefix(clubID))
}
