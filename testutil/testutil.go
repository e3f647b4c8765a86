// Package testutil builds throwaway databases, configuration and fixtures for tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/cppla/clubhouse/config"
	"github.com/cppla/clubhouse/models"
)

// TestJWTSecret signs tokens in tests.
const TestJWTSecret = "test-secret-do-not-use"

// SetupTestDB opens a fresh SQLite database in a temp dir with the full schema.
// A single connection serializes transactions the way row locks would on MySQL.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "clubhouse.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), config.GormConfig("silent"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := config.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// TestConfig installs a configuration suitable for tests and returns it.
// The feed cache is off and avatars land in a temp dir.
func TestConfig(t *testing.T) config.AppConfig {
	t.Helper()

	c := config.Defaults()
	c.JWTSecret = TestJWTSecret
	c.GinMode = "test"
	c.GinPath = ""
	c.LogPath = ""
	c.RedisHost = ""
	c.FeedCacheSeconds = 0
	c.RateLimitPerMinute = 6000
	c.AvatarDir = t.TempDir()
	c.AvatarMaxBytes = 1 << 20
	config.Override(c)
	return config.Get()
}

// SeedClub inserts a club with the given slug.
func SeedClub(t *testing.T, db *gorm.DB, slug string) models.Club {
	t.Helper()
	club := models.Club{Name: "Club " + slug, Slug: slug}
	if err := db.Create(&club).Error; err != nil {
		t.Fatalf("Failed to seed club %s: %v", slug, err)
	}
	return club
}

// SeedProfile inserts a profile for userID.
func SeedProfile(t *testing.T, db *gorm.DB, userID, username string) models.Profile {
	t.Helper()
	profile := models.Profile{UserID: userID, Username: username}
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("Failed to seed profile %s: %v", username, err)
	}
	return profile
}

// SeedMembership makes userID a member of the club.
func SeedMembership(t *testing.T, db *gorm.DB, userID string, clubID uint) {
	t.Helper()
	if err := db.Create(&models.Membership{UserID: userID, ClubID: clubID}).Error; err != nil {
		t.Fatalf("Failed to seed membership: %v", err)
	}
}

// SeedPost inserts a post directly, bypassing membership checks, with a fixed
// creation time and score.
func SeedPost(t *testing.T, db *gorm.DB, clubID uint, userID, title string, score int, createdAt time.Time) models.Post {
	t.Helper()
	post := models.Post{
		ClubID:    clubID,
		UserID:    userID,
		Title:     title,
		Content:   fmt.Sprintf("body of %s", title),
		Score:     score,
		CreatedAt: createdAt,
	}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("Failed to seed post %s: %v", title, err)
	}
	return post
}

// MakeRequest performs a JSON request against handler. token is sent as a
// bearer token when non-empty.
func MakeRequest(t *testing.T, handler http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// Envelope is the decoded {code,message,data} response body.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// DecodeEnvelope parses the response body and, when out is non-nil, its data field.
func DecodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder, out interface{}) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("Failed to decode response data: %v", err)
		}
	}
	return env
}
