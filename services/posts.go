package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/cppla/clubhouse/models"
	"github.com/cppla/clubhouse/utils"
)

const (
	maxTitleLength   = 255
	maxContentLength = 40000
)

// PostInput is the client-supplied part of a new post.
type PostInput struct {
	Title   string
	Content string
}

// PostService creates posts and assembles club feeds.
type PostService struct {
	db     *gorm.DB
	policy *Policy
	ranker *FeedRanker
}

// NewPostService creates a PostService.
func NewPostService(db *gorm.DB, policy *Policy, ranker *FeedRanker) *PostService {
	return &PostService{db: db, policy: policy, ranker: ranker}
}

// CreatePost publishes a post in the club. Only members may post.
func (s *PostService) CreatePost(ctx context.Context, actor, clubSlug string, in PostInput) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		club, err := findClub(tx, clubSlug)
		if err != nil {
			return err
		}
		if err := s.policy.Check(tx, actor, ActionCreatePost, Resource{OwnerID: actor, ClubID: club.ID}); err != nil {
			return err
		}

		title := strings.TrimSpace(utils.StripTags(in.Title))
		if title == "" {
			return validationf("title cannot be empty")
		}
		if utf8.RuneCountInString(title) > maxTitleLength {
			return validationf("title must be at most %d characters", maxTitleLength)
		}
		content := strings.TrimSpace(utils.Sanitize(in.Content))
		if utf8.RuneCountInString(content) > maxContentLength {
			return validationf("content must be at most %d characters", maxContentLength)
		}

		post = models.Post{
			ClubID:  club.ID,
			UserID:  actor,
			Title:   title,
			Content: content,
			Score:   0,
		}
		return tx.Create(&post).Error
	})
	if err != nil {
		return nil, err
	}
	if err := s.attachAuthors(ctx, []*models.Post{&post}); err != nil {
		return nil, err
	}
	return &post, nil
}

// GetPost loads a post with its author.
func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("post %d", id)
		}
		return nil, err
	}
	if err := s.attachAuthors(ctx, []*models.Post{&post}); err != nil {
		return nil, err
	}
	return &post, nil
}

// ClubFeed returns the club's posts filtered by query and ordered by mode.
func (s *PostService) ClubFeed(ctx context.Context, clubID uint, mode RankMode, query string) ([]models.Post, error) {
	var posts []models.Post
	if err := s.db.WithContext(ctx).Where("club_id = ?", clubID).Order("id ASC").Find(&posts).Error; err != nil {
		return nil, err
	}
	ranked := s.ranker.Rank(posts, mode, query)
	if err := s.attachAuthors(ctx, postPointers(ranked)); err != nil {
		return nil, err
	}
	return ranked, nil
}

// UserPosts lists a user's posts across clubs, newest first.
func (s *PostService) UserPosts(ctx context.Context, userID string) ([]models.Post, error) {
	var posts []models.Post
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&posts).Error; err != nil {
		return nil, err
	}
	ranked := s.ranker.Rank(posts, ModeNew(), "")
	if err := s.attachAuthors(ctx, postPointers(ranked)); err != nil {
		return nil, err
	}
	return ranked, nil
}

// attachAuthors loads the profiles of the posts' authors in one query.
// Authors without a profile are left nil.
func (s *PostService) attachAuthors(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.UserID)
	}
	ids = utils.UniqueStrings(ids)

	var profiles []models.Profile
	if err := s.db.WithContext(ctx).Where("user_id IN ?", ids).Find(&profiles).Error; err != nil {
		return err
	}
	byUser := make(map[string]*models.Profile, len(profiles))
	for i := range profiles {
		byUser[profiles[i].UserID] = &profiles[i]
	}
	for _, p := range posts {
		p.Author = byUser[p.UserID]
	}
	return nil
}

func postPointers(posts []models.Post) []*models.Post {
	out := make([]*models.Post, len(posts))
	for i := range posts {
		out[i] = &posts[i]
	}
	return out
}
