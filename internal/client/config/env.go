package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "GOPHCHAT_"

// parseEnv loads the optional .env file and overlays GOPHCHAT_* variables.
func parseEnv(cfg *Config) error {
	envFile := os.Getenv(envPrefix + "ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	return applyEnv(cfg, os.LookupEnv)
}

type lookupFunc func(string) (string, bool)

// applyEnv copies every set variable into cfg. Malformed values are collected
// and reported together.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	var errs []error

	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(envPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	num := func(name string, dst *int64) {
		if v, ok := lookup(envPrefix + name); ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}

	str("LOCAL_DB", &cfg.LocalDBPath)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("MONGO_URI", &cfg.MongoURI)
	str("MONGO_DATABASE", &cfg.MongoDatabase)
	dur("CONNECT_TIMEOUT", &cfg.ConnectTimeout)
	str("CHANGE_SOURCE", &cfg.ChangeSource)
	str("REDIS_URL", &cfg.RedisURL)

	str("OBJECT_STORE", &cfg.ObjectStore)
	str("S3_REGION", &cfg.S3.Region)
	str("S3_BUCKET", &cfg.S3.Bucket)
	str("S3_ENDPOINT", &cfg.S3.Endpoint)
	str("S3_ACCESS_KEY", &cfg.S3.AccessKey)
	str("S3_SECRET_KEY", &cfg.S3.SecretKey)
	str("S3_PUBLIC_BASE_URL", &cfg.S3.PublicBaseURL)
	str("CLOUDINARY_CLOUD_NAME", &cfg.Cloudinary.CloudName)
	str("CLOUDINARY_API_KEY", &cfg.Cloudinary.APIKey)
	str("CLOUDINARY_API_SECRET", &cfg.Cloudinary.APISecret)
	str("CLOUDINARY_FOLDER", &cfg.Cloudinary.Folder)

	str("SESSION_SECRET", &cfg.SessionSecret)
	dur("SESSION_TTL", &cfg.SessionTTL)
	dur("RECENT_LOGIN_WINDOW", &cfg.RecentLoginWindow)
	str("GOOGLE_ID_SECRET", &cfg.GoogleIDSecret)
	str("GITHUB_ID_SECRET", &cfg.GitHubIDSecret)

	dur("CLEANUP_INTERVAL", &cfg.CleanupInterval)
	dur("TASK_TIMEOUT", &cfg.TaskTimeout)
	dur("FEED_RECHECK_INTERVAL", &cfg.FeedRecheckInterval)
	dur("FEED_RETRY_DELAY", &cfg.FeedRetryDelay)
	num("MAX_IMAGE_BYTES", &cfg.MaxImageBytes)
	num("MAX_VIDEO_BYTES", &cfg.MaxVideoBytes)

	conc := int64(cfg.CleanupConcurrency)
	num("CLEANUP_CONCURRENCY", &conc)
	cfg.CleanupConcurrency = int(conc)

	str("TIME_LAYOUT", &cfg.TimeLayout)
	str("TIME_ZONE", &cfg.TimeZone)
	if v, ok := lookup(envPrefix + "AVATARS"); ok {
		cfg.Avatars = splitList(v)
	}

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
