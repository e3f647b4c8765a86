package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/clubhouse/config"
	"github.com/cppla/clubhouse/services"
	"github.com/cppla/clubhouse/utils"
)

// ProfileController handles profile onboarding, edits and avatars.
type ProfileController struct {
	profiles *services.ProfileService
	cache    *utils.ResponseCache
}

// NewProfileController creates a new ProfileController instance. cache may be nil.
func NewProfileController(profiles *services.ProfileService, cache *utils.ResponseCache) *ProfileController {
	return &ProfileController{profiles: profiles, cache: cache}
}

// invalidateAuthored drops cached feeds and posts, which embed author profiles.
func (p *ProfileController) invalidateAuthored(ctx *gin.Context) {
	p.cache.Invalidate(ctx.Request.Context(), feedCacheRoot, postCacheRoot)
}

// Me returns the caller's identity and profile. has_profile is false until onboarding completes.
func (p *ProfileController) Me(ctx *gin.Context) {
	userID, _ := getUserID(ctx)
	profile, err := p.profiles.GetProfileByUser(ctx.Request.Context(), userID)
	if err != nil && !isNotFound(err) {
		respondServiceError(ctx, err, 50040, "failed to load profile")
		return
	}
	utils.Success(ctx, gin.H{
		"user_id":     userID,
		"has_profile": profile != nil,
		"profile":     profile,
	})
}

// GetProfile returns a public profile by username.
func (p *ProfileController) GetProfile(ctx *gin.Context) {
	profile, err := p.profiles.GetProfileByUsername(ctx.Request.Context(), ctx.Param("username"))
	if err != nil {
		respondServiceError(ctx, err, 50041, "failed to load profile")
		return
	}
	utils.Success(ctx, gin.H{"profile": profile})
}

// CreateProfile completes onboarding. It can succeed once per user.
func (p *ProfileController) CreateProfile(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Bio      string `json:"bio"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}
	userID, _ := getUserID(ctx)
	profile, err := p.profiles.CreateProfile(ctx.Request.Context(), userID, req.Username, req.Bio)
	if err != nil {
		respondServiceError(ctx, err, 50042, "failed to create profile")
		return
	}
	p.invalidateAuthored(ctx)
	utils.Created(ctx, gin.H{"profile": profile})
}

// UpdateProfile edits username and/or bio of the caller's profile.
func (p *ProfileController) UpdateProfile(ctx *gin.Context) {
	var req struct {
		Username *string `json:"username"`
		Bio      *string `json:"bio"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40041, "invalid request payload")
		return
	}
	if req.Username == nil && req.Bio == nil {
		utils.Error(ctx, http.StatusBadRequest, 40042, "nothing to update")
		return
	}
	userID, _ := getUserID(ctx)
	profile, err := p.profiles.UpdateProfile(ctx.Request.Context(), userID, services.ProfileUpdate{
		Username: req.Username,
		Bio:      req.Bio,
	})
	if err != nil {
		respondServiceError(ctx, err, 50043, "failed to update profile")
		return
	}
	p.invalidateAuthored(ctx)
	utils.Success(ctx, gin.H{"profile": profile})
}

// UploadAvatar stores a profile picture from the multipart field "file".
func (p *ProfileController) UploadAvatar(ctx *gin.Context) {
	maxBytes := config.Get().AvatarMaxBytes
	// multipart framing needs a little headroom over the file itself
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxBytes+64<<10)

	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40043, "no file uploaded")
		return
	}
	defer file.Close()
	if header.Size > maxBytes {
		utils.Error(ctx, http.StatusBadRequest, 40044, "avatar is too large")
		return
	}

	userID, _ := getUserID(ctx)
	profile, err := p.profiles.SetAvatar(ctx.Request.Context(), userID, header.Filename, file)
	if err != nil {
		respondServiceError(ctx, err, 50044, "failed to store avatar")
		return
	}
	p.invalidateAuthored(ctx)
	utils.Success(ctx, gin.H{"profile": profile, "url": profile.AvatarURL})
}
