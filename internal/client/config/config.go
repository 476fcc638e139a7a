package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/filex"
)

const appName = "gophchat"

const (
	ChangeSourceMongo = "mongo"
	ChangeSourceRedis = "redis"

	ObjectStoreS3         = "s3"
	ObjectStoreCloudinary = "cloudinary"
)

type S3 struct {
	Region        string
	Bucket        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

type Cloudinary struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Config holds runtime settings for the gophchat client.
type Config struct {
	LocalDBPath string
	LogLevel    string

	MongoURI       string
	MongoDatabase  string
	ConnectTimeout time.Duration

	// ChangeSource selects how live queries learn about changes: MongoDB
	// change streams (replica sets only) or Redis pub/sub.
	ChangeSource string
	RedisURL     string

	ObjectStore string
	S3          S3
	Cloudinary  Cloudinary

	SessionSecret     string
	SessionTTL        time.Duration
	RecentLoginWindow time.Duration
	GoogleIDSecret    string
	GitHubIDSecret    string

	CleanupInterval    time.Duration
	CleanupConcurrency int
	TaskTimeout        time.Duration

	FeedRecheckInterval time.Duration
	FeedRetryDelay      time.Duration

	MaxImageBytes int64
	MaxVideoBytes int64

	TimeLayout string
	TimeZone   string
	Avatars    []string
}

// LoadDefaults populates c with defaults for a local setup.
func (c *Config) LoadDefaults() {
	c.LocalDBPath = filex.DataPath(appName, "gophchat.db")
	c.LogLevel = "info"

	c.MongoURI = "mongodb://127.0.0.1:27017"
	c.MongoDatabase = "gophchat"
	c.ConnectTimeout = 10 * time.Second

	c.ChangeSource = ChangeSourceMongo
	c.RedisURL = "redis://127.0.0.1:6379/0"

	c.ObjectStore = ObjectStoreS3
	c.S3 = S3{Region: "us-east-1", Bucket: "gophchat", Endpoint: "http://127.0.0.1:9000"}

	c.SessionTTL = 30 * 24 * time.Hour
	c.RecentLoginWindow = 5 * time.Minute

	c.CleanupInterval = 24 * time.Hour
	c.CleanupConcurrency = 4
	c.TaskTimeout = 30 * time.Second

	c.FeedRecheckInterval = time.Minute
	c.FeedRetryDelay = 5 * time.Second

	c.MaxImageBytes = 5 << 20
	c.MaxVideoBytes = 25 << 20

	c.TimeLayout = "15:04"
	c.Avatars = []string{
		"https://picsum.photos/seed/gopher/64",
		"https://picsum.photos/seed/otter/64",
		"https://picsum.photos/seed/heron/64",
		"https://picsum.photos/seed/lynx/64",
	}
}

// Location resolves TimeZone; empty means the local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("%w: time zone %q: %v", common.ErrValidation, c.TimeZone, err)
	}
	return loc, nil
}

// FederatedSecrets maps provider name to ID-token secret for the providers
// that are configured.
func (c *Config) FederatedSecrets() map[string]string {
	m := map[string]string{}
	if c.GoogleIDSecret != "" {
		m["google.com"] = c.GoogleIDSecret
	}
	if c.GitHubIDSecret != "" {
		m["github.com"] = c.GitHubIDSecret
	}
	return m
}

func (c *Config) Validate() error {
	switch c.ChangeSource {
	case ChangeSourceMongo:
	case ChangeSourceRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%w: redis url is required for change source %q", common.ErrValidation, c.ChangeSource)
		}
	default:
		return fmt.Errorf("%w: unknown change source %q", common.ErrValidation, c.ChangeSource)
	}

	switch c.ObjectStore {
	case ObjectStoreS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("%w: s3 bucket is required", common.ErrValidation)
		}
	case ObjectStoreCloudinary:
		if c.Cloudinary.CloudName == "" {
			return fmt.Errorf("%w: cloudinary cloud name is required", common.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown object store %q", common.ErrValidation, c.ObjectStore)
	}

	if c.SessionSecret == "" {
		return fmt.Errorf("%w: session secret is required (GOPHCHAT_SESSION_SECRET)", common.ErrValidation)
	}
	if c.MongoURI == "" || c.MongoDatabase == "" {
		return fmt.Errorf("%w: mongo uri and database are required", common.ErrValidation)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// LoadConfig builds a Config from defaults, the environment, the JSON file
// and flags, in that order, and validates it.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseJson(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
