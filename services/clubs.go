package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/cppla/clubhouse/models"
)

// ClubService serves club reference data and memberships.
type ClubService struct {
	db     *gorm.DB
	policy *Policy
}

// NewClubService creates a ClubService.
func NewClubService(db *gorm.DB, policy *Policy) *ClubService {
	return &ClubService{db: db, policy: policy}
}

// ClubStats are counters shown on a club page.
type ClubStats struct {
	PostCount   int64 `json:"post_count"`
	MemberCount int64 `json:"member_count"`
	VoteCount   int64 `json:"vote_count"`
}

// SeedClubs upserts clubs by slug. Running it twice leaves one row per slug.
func (s *ClubService) SeedClubs(ctx context.Context, clubs []models.Club) error {
	if len(clubs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, seed := range clubs {
			var existing models.Club
			err := tx.Where("slug = ?", seed.Slug).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				club := models.Club{Name: seed.Name, Slug: seed.Slug, Description: seed.Description, Icon: seed.Icon}
				if err := tx.Create(&club).Error; err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				if err := tx.Model(&existing).Updates(map[string]interface{}{
					"name":        seed.Name,
					"description": seed.Description,
					"icon":        seed.Icon,
				}).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// ListClubs returns every club ordered by name.
func (s *ClubService) ListClubs(ctx context.Context) ([]models.Club, error) {
	var clubs []models.Club
	err := s.db.WithContext(ctx).Order("name ASC").Find(&clubs).Error
	return clubs, err
}

// GetClub looks a club up by slug.
func (s *ClubService) GetClub(ctx context.Context, slug string) (*models.Club, error) {
	return findClub(s.db.WithContext(ctx), slug)
}

// Join makes the actor a member of the club.
func (s *ClubService) Join(ctx context.Context, actor, slug string) (*models.Membership, error) {
	var membership models.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		club, err := findClub(tx, slug)
		if err != nil {
			return err
		}
		if err := s.policy.Check(tx, actor, ActionJoinClub, Resource{OwnerID: actor, ClubID: club.ID}); err != nil {
			return err
		}
		member, err := isMember(tx, actor, club.ID)
		if err != nil {
			return err
		}
		if member {
			return conflictf("already a member of %s", club.Slug)
		}
		membership = models.Membership{UserID: actor, ClubID: club.ID}
		if err := tx.Create(&membership).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return conflictf("already a member of %s", club.Slug)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// Leave removes the actor's membership. Posts and votes are kept.
func (s *ClubService) Leave(ctx context.Context, actor, slug string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		club, err := findClub(tx, slug)
		if err != nil {
			return err
		}
		if err := s.policy.Check(tx, actor, ActionLeaveClub, Resource{OwnerID: actor, ClubID: club.ID}); err != nil {
			return err
		}
		res := tx.Where("user_id = ? AND club_id = ?", actor, club.ID).Delete(&models.Membership{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFoundf("not a member of %s", club.Slug)
		}
		return nil
	})
}

// IsMember reports whether the user belongs to the club.
func (s *ClubService) IsMember(ctx context.Context, userID string, clubID uint) (bool, error) {
	if userID == "" {
		return false, nil
	}
	return isMember(s.db.WithContext(ctx), userID, clubID)
}

// MemberClubs lists the clubs the user has joined.
func (s *ClubService) MemberClubs(ctx context.Context, userID string) ([]models.Club, error) {
	var clubs []models.Club
	err := s.db.WithContext(ctx).
		Joins("JOIN memberships ON memberships.club_id = clubs.id").
		Where("memberships.user_id = ?", userID).
		Order("clubs.name ASC").
		Find(&clubs).Error
	return clubs, err
}

// Stats counts posts, members and votes in the club.
func (s *ClubService) Stats(ctx context.Context, slug string) (*models.Club, ClubStats, error) {
	db := s.db.WithContext(ctx)
	club, err := findClub(db, slug)
	if err != nil {
		return nil, ClubStats{}, err
	}
	var stats ClubStats
	if err := db.Model(&models.Post{}).Where("club_id = ?", club.ID).Count(&stats.PostCount).Error; err != nil {
		return nil, ClubStats{}, err
	}
	if err := db.Model(&models.Membership{}).Where("club_id = ?", club.ID).Count(&stats.MemberCount).Error; err != nil {
		return nil, ClubStats{}, err
	}
	if err := db.Model(&models.Vote{}).
		Joins("JOIN posts ON posts.id = votes.post_id").
		Where("posts.club_id = ?", club.ID).
		Count(&stats.VoteCount).Error; err != nil {
		return nil, ClubStats{}, err
	}
	return club, stats, nil
}

func findClub(tx *gorm.DB, slug string) (*models.Club, error) {
	var club models.Club
	if err := tx.Where("slug = ?", slug).First(&club).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("club %q", slug)
		}
		return nil, err
	}
	return &club, nil
}
