package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/clubhouse/config"
	"github.com/cppla/clubhouse/controllers"
	"github.com/cppla/clubhouse/middleware"
	"github.com/cppla/clubhouse/services"
	"github.com/cppla/clubhouse/storage"
	"github.com/cppla/clubhouse/utils"
)

// Services bundles the domain services the HTTP layer needs.
type Services struct {
	Clubs    *services.ClubService
	Posts    *services.PostService
	Profiles *services.ProfileService
	Ledger   *services.VoteLedger
	Scores   *services.ScoreAggregator
}

// NewServices wires the domain services over db.
func NewServices(db *gorm.DB, avatars storage.AvatarStore) Services {
	policy := services.NewPolicy()
	scores := services.NewScoreAggregator(db)
	return Services{
		Clubs:    services.NewClubService(db, policy),
		Posts:    services.NewPostService(db, policy, services.NewFeedRanker(nil)),
		Profiles: services.NewProfileService(db, policy, avatars),
		Ledger:   services.NewVoteLedger(db, policy, scores),
		Scores:   scores,
	}
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()
	var avatars storage.AvatarStore
	if cfg.AvatarDir != "" {
		avatars = storage.NewLocalStore(cfg.AvatarDir, cfg.AvatarBaseURL, cfg.AvatarMaxBytes)
	}
	cache := utils.NewResponseCache(utils.GetRedis(), time.Duration(cfg.FeedCacheSeconds)*time.Second)
	return NewRouter(NewServices(db, avatars), cache)
}

// NewRouter builds the gin engine over already wired services. cache may be nil.
func NewRouter(svc Services, cache *utils.ResponseCache) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())

	accessLog := utils.Logger
	if cfg.GinPath != "" {
		gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
		if err == nil {
			accessLog = gl
		} else {
			utils.Sugar.Warnf("gin access log disabled: %v", err)
		}
	}
	r.Use(ginzap.Ginzap(accessLog, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(accessLog, true))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	if cfg.AvatarDir != "" && strings.HasPrefix(cfg.AvatarBaseURL, "/") {
		r.Static(cfg.AvatarBaseURL, cfg.AvatarDir)
	}

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	clubController := controllers.NewClubController(svc.Clubs)
	postController := controllers.NewPostController(svc.Posts, svc.Clubs, svc.Profiles, cache)
	voteController := controllers.NewVoteController(svc.Ledger, svc.Scores, cache)
	profileController := controllers.NewProfileController(svc.Profiles, cache)

	api := r.Group("/api/v1")

	// public reads, limited per client IP
	public := api.Group("")
	public.Use(middleware.RateLimitMiddleware())
	public.GET("/clubs", clubController.ListClubs)
	public.GET("/clubs/:slug", clubController.GetClub)
	public.GET("/clubs/:slug/stats", clubController.GetStats)
	public.GET("/clubs/:slug/posts", postController.ClubFeed)
	public.GET("/posts/:id", postController.GetPost)
	public.GET("/profiles/:username", profileController.GetProfile)
	public.GET("/profiles/:username/posts", postController.ListProfilePosts)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())
	protected.GET("/clubs/:slug/membership", clubController.Membership)
	protected.POST("/clubs/:slug/membership", clubController.Join)
	protected.DELETE("/clubs/:slug/membership", clubController.Leave)
	protected.POST("/clubs/:slug/posts", postController.CreatePost)
	protected.GET("/posts/:id/vote", voteController.GetMyVote)
	protected.POST("/posts/:id/vote", voteController.CastVote)
	protected.DELETE("/posts/:id/vote", voteController.RemoveVote)
	protected.GET("/me", profileController.Me)
	protected.GET("/me/clubs", clubController.MyClubs)
	protected.POST("/me/profile", profileController.CreateProfile)
	protected.PATCH("/me/profile", profileController.UpdateProfile)
	protected.POST("/me/avatar", profileController.UploadAvatar)

	admin := protected.Group("/admin")
	admin.Use(middleware.AdminRequired())
	admin.GET("/posts/:id/drift", voteController.ScoreDrift)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
