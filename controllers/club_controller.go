package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/clubhouse/services"
	"github.com/cppla/clubhouse/utils"
)

// ClubController serves clubs, memberships and club stats.
type ClubController struct {
	clubs *services.ClubService
}

// NewClubController creates a new ClubController instance.
func NewClubController(clubs *services.ClubService) *ClubController {
	return &ClubController{clubs: clubs}
}

// ListClubs returns every club.
func (c *ClubController) ListClubs(ctx *gin.Context) {
	clubs, err := c.clubs.ListClubs(ctx.Request.Context())
	if err != nil {
		respondServiceError(ctx, err, 50010, "failed to list clubs")
		return
	}
	utils.Success(ctx, gin.H{"items": clubs})
}

// GetClub returns one club by slug.
func (c *ClubController) GetClub(ctx *gin.Context) {
	club, err := c.clubs.GetClub(ctx.Request.Context(), ctx.Param("slug"))
	if err != nil {
		respondServiceError(ctx, err, 50011, "failed to load club")
		return
	}
	utils.Success(ctx, gin.H{"club": club})
}

// GetStats returns post, member and vote counts for the club.
func (c *ClubController) GetStats(ctx *gin.Context) {
	club, stats, err := c.clubs.Stats(ctx.Request.Context(), ctx.Param("slug"))
	if err != nil {
		respondServiceError(ctx, err, 50012, "failed to load club stats")
		return
	}
	utils.Success(ctx, gin.H{
		"club_id":      club.ID,
		"post_count":   stats.PostCount,
		"member_count": stats.MemberCount,
		"vote_count":   stats.VoteCount,
	})
}

// Join adds the caller to the club.
func (c *ClubController) Join(ctx *gin.Context) {
	userID, _ := getUserID(ctx)
	membership, err := c.clubs.Join(ctx.Request.Context(), userID, ctx.Param("slug"))
	if err != nil {
		respondServiceError(ctx, err, 50013, "failed to join club")
		return
	}
	utils.Created(ctx, gin.H{"membership": membership})
}

// Leave removes the caller from the club.
func (c *ClubController) Leave(ctx *gin.Context) {
	userID, _ := getUserID(ctx)
	if err := c.clubs.Leave(ctx.Request.Context(), userID, ctx.Param("slug")); err != nil {
		respondServiceError(ctx, err, 50014, "failed to leave club")
		return
	}
	utils.Success(ctx, gin.H{"message": "left club"})
}

// Membership reports whether the caller belongs to the club.
func (c *ClubController) Membership(ctx *gin.Context) {
	userID, _ := getUserID(ctx)
	club, err := c.clubs.GetClub(ctx.Request.Context(), ctx.Param("slug"))
	if err != nil {
		respondServiceError(ctx, err, 50015, "failed to load club")
		return
	}
	member, err := c.clubs.IsMember(ctx.Request.Context(), userID, club.ID)
	if err != nil {
		respondServiceError(ctx, err, 50016, "failed to check membership")
		return
	}
	utils.Success(ctx, gin.H{"club_id": club.ID, "member": member})
}

// MyClubs lists the clubs the caller has joined.
func (c *ClubController) MyClubs(ctx *gin.Context) {
	userID, _ := getUserID(ctx)
	clubs, err := c.clubs.MemberClubs(ctx.Request.Context(), userID)
	if err != nil {
		respondServiceError(ctx, err, 50017, "failed to list joined clubs")
		return
	}
	utils.Success(ctx, gin.H{"items": clubs})
}
