package services

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"gorm.io/gorm"

	"github.com/cppla/clubhouse/models"
	"github.com/cppla/clubhouse/storage"
	"github.com/cppla/clubhouse/utils"
)

var avatarExtensions = map[string]struct{}{
	"png": {}, "jpg": {}, "jpeg": {}, "gif": {}, "webp": {},
}

type profileFields struct {
	Username string `validate:"required,min=3,max=24,username"`
	Bio      string `validate:"max=280"`
}

// ProfileUpdate carries optional changes; nil fields are left untouched.
type ProfileUpdate struct {
	Username *string
	Bio      *string
}

// ProfileService manages the one profile each user may create.
type ProfileService struct {
	db      *gorm.DB
	policy  *Policy
	avatars storage.AvatarStore
}

// NewProfileService creates a ProfileService. avatars may be nil when uploads are disabled.
func NewProfileService(db *gorm.DB, policy *Policy, avatars storage.AvatarStore) *ProfileService {
	return &ProfileService{db: db, policy: policy, avatars: avatars}
}

// CreateProfile creates the actor's profile. A second call fails with ErrConflict.
func (s *ProfileService) CreateProfile(ctx context.Context, actor, username, bio string) (*models.Profile, error) {
	fields := profileFields{Username: strings.TrimSpace(username), Bio: strings.TrimSpace(utils.StripTags(bio))}

	var profile models.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.policy.Check(tx, actor, ActionCreateProfile, Resource{OwnerID: actor}); err != nil {
			return err
		}
		if err := validateStruct(fields); err != nil {
			return err
		}

		var n int64
		if err := tx.Model(&models.Profile{}).Where("user_id = ?", actor).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return conflictf("profile already exists")
		}
		if err := ensureUsernameFree(tx, fields.Username, actor); err != nil {
			return err
		}

		profile = models.Profile{UserID: actor, Username: fields.Username, Bio: fields.Bio}
		if err := tx.Create(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return conflictf("username or profile already taken")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile changes the actor's username and/or bio.
func (s *ProfileService) UpdateProfile(ctx context.Context, actor string, upd ProfileUpdate) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if actor == "" {
			return ErrUnauthenticated
		}
		if err := tx.Where("user_id = ?", actor).First(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundf("profile")
			}
			return err
		}
		if err := s.policy.Check(tx, actor, ActionUpdateProfile, Resource{OwnerID: profile.UserID}); err != nil {
			return err
		}

		fields := profileFields{Username: profile.Username, Bio: profile.Bio}
		if upd.Username != nil {
			fields.Username = strings.TrimSpace(*upd.Username)
		}
		if upd.Bio != nil {
			fields.Bio = strings.TrimSpace(utils.StripTags(*upd.Bio))
		}
		if err := validateStruct(fields); err != nil {
			return err
		}
		if fields.Username != profile.Username {
			if err := ensureUsernameFree(tx, fields.Username, actor); err != nil {
				return err
			}
		}

		err := tx.Model(&profile).Updates(map[string]interface{}{
			"username": fields.Username,
			"bio":      fields.Bio,
		}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return conflictf("username %q is taken", fields.Username)
		}
		if err != nil {
			return err
		}
		profile.Username = fields.Username
		profile.Bio = fields.Bio
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetProfileByUsername loads a public profile.
func (s *ProfileService) GetProfileByUsername(ctx context.Context, username string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("profile %q", username)
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetProfileByUser loads the profile owned by userID.
func (s *ProfileService) GetProfileByUser(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("profile")
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// SetAvatar uploads the image to the avatar store and records its public URL.
func (s *ProfileService) SetAvatar(ctx context.Context, actor, filename string, r io.Reader) (*models.Profile, error) {
	if s.avatars == nil {
		return nil, validationf("avatar uploads are disabled")
	}
	if actor == "" {
		return nil, ErrUnauthenticated
	}
	profile, err := s.GetProfileByUser(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Check(s.db.WithContext(ctx), actor, ActionUpdateProfile, Resource{OwnerID: profile.UserID}); err != nil {
		return nil, err
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if _, ok := avatarExtensions[ext]; !ok {
		return nil, validationf("avatar must be one of png, jpg, jpeg, gif, webp")
	}

	url, err := s.avatars.Put(ctx, storage.AvatarKey(actor, ext), r)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrTooLarge):
			return nil, validationf("avatar is too large")
		case errors.Is(err, storage.ErrInvalidKey):
			return nil, validationf("user id cannot be used as a storage key")
		}
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(profile).Update("avatar_url", url).Error; err != nil {
		return nil, err
	}
	profile.AvatarURL = url
	return profile, nil
}

func ensureUsernameFree(tx *gorm.DB, username, actor string) error {
	var n int64
	if err := tx.Model(&models.Profile{}).
		Where("username = ? AND user_id <> ?", username, actor).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return conflictf("username %q is taken", username)
	}
	return nil
}
