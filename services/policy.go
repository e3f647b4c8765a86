package services

import (
	"gorm.io/gorm"

	"github.com/cppla/clubhouse/models"
)

// Action names a mutation subject to authorization.
type Action string

const (
	ActionCreateProfile Action = "create_profile"
	ActionUpdateProfile Action = "update_profile"
	ActionJoinClub      Action = "join_club"
	ActionLeaveClub     Action = "leave_club"
	ActionCreatePost    Action = "create_post"
	ActionCastVote      Action = "cast_vote"
	ActionRemoveVote    Action = "remove_vote"
)

// Resource carries the attributes a rule needs: the owning user of the row
// being touched and the club it belongs to.
type Resource struct {
	OwnerID string
	ClubID  uint
}

// Policy decides whether an actor may perform an action on a resource.
// Reads are public and never pass through here.
type Policy struct{}

// NewPolicy returns the default rule set.
func NewPolicy() *Policy {
	return &Policy{}
}

// Check returns nil when allowed, or an error wrapping ErrAuthorization.
// It runs on tx so membership lookups see the same snapshot as the mutation.
func (p *Policy) Check(tx *gorm.DB, actor string, action Action, res Resource) error {
	if actor == "" {
		return ErrUnauthenticated
	}

	switch action {
	case ActionCastVote:
		// any authenticated user may vote, members or not
		return nil
	case ActionCreatePost:
		member, err := isMember(tx, actor, res.ClubID)
		if err != nil {
			return err
		}
		if !member {
			return forbiddenf("only club members can post")
		}
		return nil
	case ActionCreateProfile, ActionUpdateProfile, ActionJoinClub, ActionLeaveClub, ActionRemoveVote:
		if res.OwnerID != actor {
			return forbiddenf("%s is limited to the owner", action)
		}
		return nil
	default:
		return forbiddenf("unknown action %q", action)
	}
}

func isMember(tx *gorm.DB, userID string, clubID uint) (bool, error) {
	var n int64
	err := tx.Model(&models.Membership{}).
		Where("user_id = ? AND club_id = ?", userID, clubID).
		Count(&n).Error
	return n > 0, err
}
