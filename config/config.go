package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ClubSeed describes one club of the static reference data set.
type ClubSeed struct {
	Name        string `koanf:"name"`
	Slug        string `koanf:"slug"`
	Description string `koanf:"description"`
	Icon        string `koanf:"icon"`
}

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via the config file or the environment.
type AppConfig struct {
	AppPort            string   `koanf:"app_port"`
	JWTSecret          string   `koanf:"jwt_secret"`
	RateLimitPerMinute int      `koanf:"rate_limit_per_minute"`
	AllowedOrigins     []string `koanf:"allowed_origins"`
	AdminUserIDs       []string `koanf:"admin_user_ids"`
	// Database
	DatabaseURI string `koanf:"database_uri"`
	DBHost      string `koanf:"db_host"`
	DBPort      string `koanf:"db_port"`
	DBUser      string `koanf:"db_user"`
	DBPassword  string `koanf:"db_password"`
	DBName      string `koanf:"db_name"`
	// Gin framework configuration
	GinMode string `koanf:"gin_mode"`
	GinPath string `koanf:"gin_path"`
	// Redis for feed caching; empty host disables the cache
	RedisHost        string `koanf:"redis_host"`
	RedisPort        int    `koanf:"redis_port"`
	RedisDB          int    `koanf:"redis_db"`
	RedisPassword    string `koanf:"redis_password"`
	FeedCacheSeconds int    `koanf:"feed_cache_seconds"`
	// Logging configuration
	LogLevel      string `koanf:"log_level"`
	LogPath       string `koanf:"log_path"`
	LogMaxSizeMB  int    `koanf:"log_max_size_mb"`
	LogMaxBackups int    `koanf:"log_max_backups"`
	LogMaxAgeDays int    `koanf:"log_max_age_days"`
	LogCompress   bool   `koanf:"log_compress"`
	// Avatar storage
	AvatarDir      string `koanf:"avatar_dir"`
	AvatarBaseURL  string `koanf:"avatar_base_url"`
	AvatarMaxBytes int64  `koanf:"avatar_max_bytes"`
	// Clubs are static reference data seeded at boot.
	Clubs []ClubSeed `koanf:"clubs"`
}

// ConfigPathEnvVar overrides the location of the YAML config file.
const ConfigPathEnvVar = "CONFIG_PATH"

var defaultConfigPaths = []string{
	"config/config.yaml",
	"config/config.yml",
	"config.yaml",
}

// keys that arrive from the environment as comma separated strings
var sliceKeys = []string{"allowed_origins", "admin_user_ids"}

var (
	cfg    AppConfig
	loaded bool
	mu     sync.RWMutex
)

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	mu.Lock()
	defer mu.Unlock()
	if loaded {
		return cfg
	}

	c, err := loadKoanf(findConfigFile())
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if c.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in the config file or environment variables")
	}

	cfg = c
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	mu.RLock()
	if loaded {
		defer mu.RUnlock()
		return cfg
	}
	mu.RUnlock()
	return Load()
}

// Override replaces the cached configuration. Used by tests and tooling that
// build a configuration in code.
func Override(c AppConfig) {
	mu.Lock()
	defer mu.Unlock()
	applyDefaults(&c)
	cfg = c
	loaded = true
}

// Defaults returns the built-in configuration before file and environment layers.
func Defaults() AppConfig {
	c := AppConfig{
		AppPort:            "8080",
		RateLimitPerMinute: 120,
		AllowedOrigins:     []string{"*"},
		DBHost:             "127.0.0.1",
		DBPort:             "3306",
		DBUser:             "clubhouse",
		DBName:             "clubhouse",
		GinMode:            "release",
		GinPath:            "logs/gin.log",
		RedisPort:          6379,
		FeedCacheSeconds:   60,
		LogLevel:           "info",
		LogPath:            "logs/app.log",
		LogMaxSizeMB:       100,
		LogMaxBackups:      3,
		LogMaxAgeDays:      7,
		AvatarDir:          "static/avatars",
		AvatarBaseURL:      "/static/avatars",
		AvatarMaxBytes:     2 << 20,
	}
	return c
}

// loadKoanf layers defaults, the optional YAML file and environment variables, in that order.
func loadKoanf(path string) (AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return AppConfig{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return AppConfig{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return AppConfig{}, fmt.Errorf("load environment: %w", err)
	}

	if err := splitSliceKeys(k); err != nil {
		return AppConfig{}, err
	}

	var c AppConfig
	if err := k.Unmarshal("", &c); err != nil {
		return AppConfig{}, fmt.Errorf("unmarshal configuration: %w", err)
	}
	applyDefaults(&c)
	return c, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range defaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransform maps JWT_SECRET to jwt_secret and drops variables that are not configuration keys.
func envTransform(key string) string {
	key = strings.ToLower(key)
	if _, ok := knownKeys[key]; !ok {
		return ""
	}
	return key
}

var knownKeys = func() map[string]struct{} {
	m := map[string]struct{}{}
	for _, k := range []string{
		"app_port", "jwt_secret", "rate_limit_per_minute", "allowed_origins", "admin_user_ids",
		"database_uri", "db_host", "db_port", "db_user", "db_password", "db_name",
		"gin_mode", "gin_path",
		"redis_host", "redis_port", "redis_db", "redis_password", "feed_cache_seconds",
		"log_level", "log_path", "log_max_size_mb", "log_max_backups", "log_max_age_days", "log_compress",
		"avatar_dir", "avatar_base_url", "avatar_max_bytes",
	} {
		m[k] = struct{}{}
	}
	return m
}()

func splitSliceKeys(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		raw, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		parts := splitAndTrim(raw)
		if err := k.Set(key, parts); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

func splitAndTrim(raw string) []string {
	out := []string{}
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// applyDefaults fills zero values that the layered load may have cleared.
func applyDefaults(c *AppConfig) {
	d := Defaults()
	if c.AppPort == "" {
		c.AppPort = d.AppPort
	}
	if c.RateLimitPerMinute <= 0 {
		c.RateLimitPerMinute = d.RateLimitPerMinute
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = d.AllowedOrigins
	}
	if c.FeedCacheSeconds < 0 {
		c.FeedCacheSeconds = 0
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.AvatarBaseURL == "" {
		c.AvatarBaseURL = d.AvatarBaseURL
	}
	if c.AvatarMaxBytes <= 0 {
		c.AvatarMaxBytes = d.AvatarMaxBytes
	}
	if len(c.Clubs) == 0 {
		c.Clubs = defaultClubs()
	}
}

func defaultClubs() []ClubSeed {
	return []ClubSeed{
		{Name: "General", Slug: "general", Description: "Anything goes", Icon: "💬"},
		{Name: "Programming", Slug: "programming", Description: "Code, tools and craft", Icon: "💻"},
		{Name: "Music", Slug: "music", Description: "Albums, gigs and gear", Icon: "🎵"},
		{Name: "Books", Slug: "books", Description: "What are you reading?", Icon: "📚"},
	}
}

// IsAdmin reports whether the user id is listed in AdminUserIDs.
func (c AppConfig) IsAdmin(userID string) bool {
	if userID == "" {
		return false
	}
	for _, id := range c.AdminUserIDs {
		if strings.TrimSpace(id) == userID {
			return true
		}
	}
	return false
}
