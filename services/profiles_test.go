package services

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/clubhouse/storage"
	"github.com/cppla/clubhouse/testutil"
)

type fakeAvatarStore struct {
	keys []string
	data map[string][]byte
	err  error
}

func (f *fakeAvatarStore) Put(_ context.Context, key string, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if f.data == nil {
		f.data = map[string][]byte{}
	}
	f.keys = append(f.keys, key)
	f.data[key] = b
	return "https://cdn.example.test/" + key, nil
}

func strPtr(s string) *string { return &s }

func TestCreateProfile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewProfileService(db, NewPolicy(), nil)
	ctx := context.Background()

	p, err := svc.CreateProfile(ctx, "u1", " gopher_1 ", "<b>hi</b> there")
	require.NoError(t, err)
	assert.Equal(t, "gopher_1", p.Username)
	assert.Equal(t, "hi there", p.Bio)
	assert.Equal(t, "u1", p.UserID)

	_, err = svc.CreateProfile(ctx, "u1", "another", "")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.CreateProfile(ctx, "u2", "gopher_1", "")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.CreateProfile(ctx, "", "nobody", "")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	for _, bad := range []string{"", "ab", "has space", "dash-name", strings.Repeat("x", 25)} {
		_, err = svc.CreateProfile(ctx, "u3", bad, "")
		assert.ErrorIs(t, err, ErrValidation, "username %q", bad)
	}

	_, err = svc.CreateProfile(ctx, "u3", "long_bio", strings.Repeat("b", 281))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateProfile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedProfile(t, db, "u1", "first")
	testutil.SeedProfile(t, db, "u2", "second")
	svc := NewProfileService(db, NewPolicy(), nil)
	ctx := context.Background()

	p, err := svc.UpdateProfile(ctx, "u1", ProfileUpdate{Bio: strPtr("new bio")})
	require.NoError(t, err)
	assert.Equal(t, "first", p.Username)
	assert.Equal(t, "new bio", p.Bio)

	p, err = svc.UpdateProfile(ctx, "u1", ProfileUpdate{Username: strPtr("renamed")})
	require.NoError(t, err)
	assert.Equal(t, "renamed", p.Username)
	assert.Equal(t, "new bio", p.Bio)

	_, err = svc.UpdateProfile(ctx, "u1", ProfileUpdate{Username: strPtr("second")})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.UpdateProfile(ctx, "u1", ProfileUpdate{Username: strPtr("x")})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.UpdateProfile(ctx, "ghost", ProfileUpdate{Bio: strPtr("boo")})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.UpdateProfile(ctx, "", ProfileUpdate{Bio: strPtr("boo")})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	got, err := svc.GetProfileByUsername(ctx, "renamed")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	_, err = svc.GetProfileByUsername(ctx, "first")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetAvatar(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedProfile(t, db, "u1", "pictured")
	store := &fakeAvatarStore{}
	svc := NewProfileService(db, NewPolicy(), store)
	ctx := context.Background()

	p, err := svc.SetAvatar(ctx, "u1", "Me.PNG", bytes.NewReader([]byte("png bytes")))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.test/u1/avatar.png", p.AvatarURL)
	assert.Equal(t, []string{"u1/avatar.png"}, store.keys)
	assert.Equal(t, []byte("png bytes"), store.data["u1/avatar.png"])

	stored, err := svc.GetProfileByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, p.AvatarURL, stored.AvatarURL)

	_, err = svc.SetAvatar(ctx, "u1", "script.sh", bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.SetAvatar(ctx, "nobody", "a.png", bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.SetAvatar(ctx, "", "a.png", bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrUnauthenticated)

	store.err = storage.ErrTooLarge
	_, err = svc.SetAvatar(ctx, "u1", "a.png", bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrValidation)

	disabled := NewProfileService(db, NewPolicy(), nil)
	_, err = disabled.SetAvatar(ctx, "u1", "a.png", bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrValidation)
}
