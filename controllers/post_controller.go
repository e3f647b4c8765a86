package controllers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/clubhouse/services"
	"github.com/cppla/clubhouse/utils"
)

// PostController serves club feeds and post creation.
type PostController struct {
	posts    *services.PostService
	clubs    *services.ClubService
	profiles *services.ProfileService
	cache    *utils.ResponseCache
}

// NewPostController creates a new PostController instance. cache may be nil.
func NewPostController(posts *services.PostService, clubs *services.ClubService, profiles *services.ProfileService, cache *utils.ResponseCache) *PostController {
	return &PostController{posts: posts, clubs: clubs, profiles: profiles, cache: cache}
}

// Cached feeds and posts embed author profiles, so profile edits
// invalidate the roots.
const (
	feedCacheRoot = "cache:feed:"
	postCacheRoot = "cache:post:"
)

func feedCachePrefix(clubID uint) string {
	return fmt.Sprintf("%sclub=%d:", feedCacheRoot, clubID)
}

func postCacheKey(postID uint) string {
	return fmt.Sprintf("%s%d:", postCacheRoot, postID)
}

// ClubFeed returns the ranked, optionally filtered posts of a club.
// Query: sort=new|top, window=3m|6m|1y|all, search, page, page_size.
func (p *PostController) ClubFeed(ctx *gin.Context) {
	mode, err := services.ParseRankMode(ctx.Query("sort"), ctx.Query("window"))
	if err != nil {
		respondServiceError(ctx, err, 50020, "failed to parse feed mode")
		return
	}
	search := strings.TrimSpace(ctx.Query("search"))
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	club, err := p.clubs.GetClub(ctx.Request.Context(), ctx.Param("slug"))
	if err != nil {
		respondServiceError(ctx, err, 50021, "failed to load club")
		return
	}

	// search results are not cached to keep the key space bounded
	var cacheKey string
	cacheable := false
	if search == "" {
		var stamp string
		stamp, cacheable = p.cache.Stamp(ctx.Request.Context(), feedCacheRoot, feedCachePrefix(club.ID))
		cacheKey = fmt.Sprintf("%s%smode=%s:page=%d:size=%d", feedCachePrefix(club.ID), stamp, mode, page, pageSize)
	}
	if cacheable {
		if b, ok := p.cache.Get(ctx.Request.Context(), cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	posts, err := p.posts.ClubFeed(ctx.Request.Context(), club.ID, mode, search)
	if err != nil {
		respondServiceError(ctx, err, 50022, "failed to load feed")
		return
	}
	items, meta := paginate(posts, page, pageSize)
	payload := gin.H{
		"club":       club,
		"mode":       mode.String(),
		"items":      items,
		"pagination": meta,
	}
	if cacheable {
		p.cache.PutJSON(ctx.Request.Context(), cacheKey, utils.SuccessEnvelope(payload))
	}
	utils.Success(ctx, payload)
}

// CreatePost publishes a post in the club. The caller must be a member.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req struct {
		Title   string `json:"title" binding:"required"`
		Content string `json:"content"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	userID, _ := getUserID(ctx)
	post, err := p.posts.CreatePost(ctx.Request.Context(), userID, ctx.Param("slug"), services.PostInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		respondServiceError(ctx, err, 50023, "failed to create post")
		return
	}

	p.cache.Invalidate(ctx.Request.Context(), feedCachePrefix(post.ClubID))
	utils.Created(ctx, gin.H{"post": post})
}

// GetPost returns a single post with its author.
func (p *PostController) GetPost(ctx *gin.Context) {
	postID, ok := parseIDParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid post id")
		return
	}
	stamp, cacheable := p.cache.Stamp(ctx.Request.Context(), postCacheRoot, postCacheKey(postID))
	cacheKey := postCacheKey(postID) + stamp
	if cacheable {
		if b, ok := p.cache.Get(ctx.Request.Context(), cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	post, err := p.posts.GetPost(ctx.Request.Context(), postID)
	if err != nil {
		respondServiceError(ctx, err, 50024, "failed to load post")
		return
	}
	payload := gin.H{"post": post}
	if cacheable {
		p.cache.PutJSON(ctx.Request.Context(), cacheKey, utils.SuccessEnvelope(payload))
	}
	utils.Success(ctx, payload)
}

// ListProfilePosts returns the posts of the user behind a username, newest first.
func (p *PostController) ListProfilePosts(ctx *gin.Context) {
	profile, err := p.profiles.GetProfileByUsername(ctx.Request.Context(), ctx.Param("username"))
	if err != nil {
		respondServiceError(ctx, err, 50025, "failed to load profile")
		return
	}
	posts, err := p.posts.UserPosts(ctx.Request.Context(), profile.UserID)
	if err != nil {
		respondServiceError(ctx, err, 50026, "failed to list user posts")
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	items, meta := paginate(posts, page, pageSize)
	utils.Success(ctx, gin.H{"items": items, "pagination": meta})
}
